package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

// Chunker 将文档文本切分为重叠块并生成向量。
type Chunker struct {
	embedder llm.EmbeddingProvider

	defaultChunkSize    int
	defaultChunkOverlap int
}

// NewChunker 创建分块器。
func NewChunker(embedder llm.EmbeddingProvider, chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validateChunking(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		embedder:            embedder,
		defaultChunkSize:    chunkSize,
		defaultChunkOverlap: chunkOverlap,
	}, nil
}

func validateChunking(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, chunkSize)
	}
	if chunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidChunking, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be strictly less than chunk size %d", ErrInvalidChunking, chunkOverlap, chunkSize)
	}
	return nil
}

// resolve 将请求级覆盖参数与默认值合并并校验。
func (c *Chunker) resolve(chunkSize, chunkOverlap int) (int, int, error) {
	if chunkSize <= 0 {
		chunkSize = c.defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = c.defaultChunkOverlap
	}
	if err := validateChunking(chunkSize, chunkOverlap); err != nil {
		return 0, 0, err
	}
	return chunkSize, chunkOverlap, nil
}

// Split 按固定大小和重叠切分文本。
// 先去除首尾空白，空文本返回零个块。
// 下一块起点为上一块终点减去重叠量，无法前进时直接从终点开始。
func Split(text string, chunkSize, chunkOverlap int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	length := len(runes)

	var chunks []string
	start := 0
	for start < length {
		end := start + chunkSize
		if end > length {
			end = length
		}
		chunks = append(chunks, string(runes[start:end]))

		if end == length {
			break
		}
		next := end - chunkOverlap
		if next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// ChunkAndEmbed 切分文本并为每个块生成向量。
// 空白文本返回空结果且不调用向量化服务。
func (c *Chunker) ChunkAndEmbed(ctx context.Context, sessionID, documentID, text string, chunkSize, chunkOverlap int) ([]model.StoredChunk, error) {
	size, overlap, err := c.resolve(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}

	pieces := Split(text, size, overlap)
	if len(pieces) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingUnavailable, len(vectors), len(pieces))
	}

	chunks := make([]model.StoredChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.StoredChunk{
			SessionID:  sessionID,
			DocumentID: documentID,
			Index:      i,
			Text:       piece,
			Embedding:  vectors[i],
		}
	}
	return chunks, nil
}
