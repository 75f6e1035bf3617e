// Package store 提供会话级向量存储的抽象与实现。
package store

import (
	"context"

	"github.com/kart-io/docchat/internal/model"
)

// 检索默认值，调用方省略参数时使用。
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.4
)

// VectorStore 定义会话级向量存储接口。
// 内存实现和 Milvus 实现在启动时二选一，行为可互换。
type VectorStore interface {
	// AddDocuments 将文档块追加到会话内指定文档。
	// 会话和文档不存在时自动创建；chunks 为空时不做任何事。
	// 向量在写入时做 L2 归一化。
	AddDocuments(ctx context.Context, sessionID, documentID, fileName string, chunks []model.StoredChunk) error

	// ClearSession 清除会话的全部数据。会话不存在时为无害的空操作。
	ClearSession(ctx context.Context, sessionID string) error

	// Query 在会话内检索与 embedding 最相似的块。
	// 返回至多 topK 条、得分不低于 threshold 的结果，按得分降序排列。
	// 会话不存在或无结果时返回空切片，不报错。
	Query(ctx context.Context, sessionID string, embedding []float32, topK int, threshold float64) ([]model.QueryResult, error)

	// ChunkCount 返回会话内存储的块总数。
	ChunkCount(ctx context.Context, sessionID string) (int, error)

	// Name 返回实现名称，用于日志与统计。
	Name() string

	// Close 释放底层资源。
	Close(ctx context.Context) error
}
