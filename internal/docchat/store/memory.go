package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
)

// sessionDocument 保存单个文档的块序列，追加写入。
type sessionDocument struct {
	fileName string
	chunks   []model.StoredChunk
}

// sessionData 保存单个会话的数据，持有自己的锁以避免不同会话互相阻塞。
type sessionData struct {
	mu        sync.RWMutex
	documents map[string]*sessionDocument
	docOrder  []string
}

// MemoryStore 基于内存的向量存储实现，线性扫描检索。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存向量存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionData),
	}
}

// Name 实现 VectorStore。
func (s *MemoryStore) Name() string {
	return "memory"
}

// getSession 返回会话数据，不存在时返回 nil。
func (s *MemoryStore) getSession(sessionID string) *sessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// getOrCreateSession 返回会话数据，不存在时创建。
func (s *MemoryStore) getOrCreateSession(sessionID string) *sessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &sessionData{documents: make(map[string]*sessionDocument)}
		s.sessions[sessionID] = sess
	}
	return sess
}

// AddDocuments 实现 VectorStore。
func (s *MemoryStore) AddDocuments(ctx context.Context, sessionID, documentID, fileName string, chunks []model.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stored := make([]model.StoredChunk, len(chunks))
	for i, chunk := range chunks {
		chunk.SessionID = sessionID
		chunk.DocumentID = documentID
		chunk.FileName = fileName
		chunk.Embedding = textutil.Normalize(chunk.Embedding)
		stored[i] = chunk
	}

	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	doc, ok := sess.documents[documentID]
	if !ok {
		doc = &sessionDocument{fileName: fileName}
		sess.documents[documentID] = doc
		sess.docOrder = append(sess.docOrder, documentID)
	} else if fileName != "" {
		doc.fileName = fileName
	}
	doc.chunks = append(doc.chunks, stored...)
	return nil
}

// ClearSession 实现 VectorStore。
func (s *MemoryStore) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if sess != nil {
		// 与进行中的同会话读写串行化，避免撕裂读。
		sess.mu.Lock()
		sess.documents = make(map[string]*sessionDocument)
		sess.docOrder = nil
		sess.mu.Unlock()
	}
	return nil
}

// Query 实现 VectorStore。
func (s *MemoryStore) Query(ctx context.Context, sessionID string, embedding []float32, topK int, threshold float64) ([]model.QueryResult, error) {
	sess := s.getSession(sessionID)
	if sess == nil {
		return []model.QueryResult{}, nil
	}

	normalized := textutil.Normalize(embedding)

	sess.mu.RLock()
	// 按插入顺序收集候选，保证同分结果的稳定排序。
	var scored []model.QueryResult
	for _, docID := range sess.docOrder {
		doc := sess.documents[docID]
		for _, chunk := range doc.chunks {
			score := textutil.CosineSimilarity(normalized, chunk.Embedding)
			if score >= threshold {
				scored = append(scored, model.QueryResult{Chunk: chunk, Score: score})
			}
		}
	}
	sess.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	if scored == nil {
		scored = []model.QueryResult{}
	}
	return scored, nil
}

// ChunkCount 实现 VectorStore。
func (s *MemoryStore) ChunkCount(ctx context.Context, sessionID string) (int, error) {
	sess := s.getSession(sessionID)
	if sess == nil {
		return 0, nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()
	total := 0
	for _, doc := range sess.documents {
		total += len(doc.chunks)
	}
	return total, nil
}

// Close 实现 VectorStore。内存实现无需释放资源。
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
