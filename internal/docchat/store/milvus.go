package store

import (
	"context"
	"fmt"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/component/milvus"
)

// MilvusStore 基于 Milvus 的向量存储实现。
// 每个会话对应一个独立集合，集合名由会话 ID 经字符清洗后拼接前缀得到，
// 避免跨会话键冲突和对命名规则的注入。
type MilvusStore struct {
	client           *milvus.Client
	collectionPrefix string
	dimension        int
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, collectionPrefix string, dimension int) *MilvusStore {
	return &MilvusStore{
		client:           client,
		collectionPrefix: collectionPrefix,
		dimension:        dimension,
	}
}

// Name 实现 VectorStore。
func (s *MilvusStore) Name() string {
	return "milvus"
}

func (s *MilvusStore) collectionName(sessionID string) string {
	return s.collectionPrefix + textutil.SanitizeIdentifier(sessionID)
}

// AddDocuments 实现 VectorStore。
func (s *MilvusStore) AddDocuments(ctx context.Context, sessionID, documentID, fileName string, chunks []model.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	collection := s.collectionName(sessionID)
	dim := s.dimension
	if dim <= 0 {
		dim = len(chunks[0].Embedding)
	}
	if err := s.client.EnsureCollection(ctx, &milvus.ChunkSchema{
		Name:        collection,
		Description: "session-scoped document chunks",
		Dimension:   dim,
	}); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	rows := make([]milvus.ChunkRow, len(chunks))
	for i, chunk := range chunks {
		rows[i] = milvus.ChunkRow{
			DocumentID: documentID,
			ChunkIndex: int64(chunk.Index),
			Text:       chunk.Text,
			FileName:   fileName,
			Embedding:  textutil.Normalize(chunk.Embedding),
		}
	}

	if err := s.client.InsertChunks(ctx, collection, rows); err != nil {
		return fmt.Errorf("insert chunks into %s: %w", collection, err)
	}
	return nil
}

// ClearSession 实现 VectorStore。
func (s *MilvusStore) ClearSession(ctx context.Context, sessionID string) error {
	collection := s.collectionName(sessionID)
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.client.DropCollection(ctx, collection)
}

// Query 实现 VectorStore。
// Milvus 按内积排序返回，插入时已归一化，内积即余弦相似度。
// 阈值过滤在客户端完成。
func (s *MilvusStore) Query(ctx context.Context, sessionID string, embedding []float32, topK int, threshold float64) ([]model.QueryResult, error) {
	collection := s.collectionName(sessionID)
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists || topK <= 0 {
		return []model.QueryResult{}, nil
	}

	rows, err := s.client.SearchChunks(ctx, collection, textutil.Normalize(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	results := make([]model.QueryResult, 0, len(rows))
	for _, row := range rows {
		score := float64(row.Score)
		if score < threshold {
			continue
		}
		results = append(results, model.QueryResult{
			Chunk: model.StoredChunk{
				SessionID:  sessionID,
				DocumentID: row.DocumentID,
				Index:      int(row.ChunkIndex),
				Text:       row.Text,
				FileName:   row.FileName,
			},
			Score: score,
		})
	}
	return results, nil
}

// ChunkCount 实现 VectorStore。
func (s *MilvusStore) ChunkCount(ctx context.Context, sessionID string) (int, error) {
	collection := s.collectionName(sessionID)
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close 实现 VectorStore。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
