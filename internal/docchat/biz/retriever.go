package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

// Retriever 在会话范围内执行向量检索。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider

	defaultTopK      int
	defaultThreshold float64
}

// NewRetriever 创建检索器。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, topK int, threshold float64) *Retriever {
	if topK <= 0 {
		topK = store.DefaultTopK
	}
	return &Retriever{
		store:            vectorStore,
		embedder:         embedder,
		defaultTopK:      topK,
		defaultThreshold: threshold,
	}
}

// Retrieve 将问题向量化后检索相似块，按得分降序返回。
// topK 和 threshold 为 nil 时使用默认值。
// 向量化失败直接上抛，不构造回退向量；零结果是正常返回而非错误。
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, topK *int, threshold *float64) ([]model.QueryResult, error) {
	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	k := r.defaultTopK
	if topK != nil {
		k = *topK
	}
	t := r.defaultThreshold
	if threshold != nil {
		t = *threshold
	}

	results, err := r.store.Query(ctx, sessionID, embedding, k, t)
	if err != nil {
		return nil, fmt.Errorf("vector store query failed: %w", err)
	}

	logger.Debugw("retrieval completed",
		"session_id", sessionID,
		"top_k", k,
		"threshold", t,
		"retrieved", len(results),
	)
	return results, nil
}
