// Package biz 实现文档问答的核心业务逻辑：
// 上传分块入库、会话级检索、护栏装配与回答生成。
package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/extract"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/llm"
)

// UploadInput 上传请求的输入。ChunkSize/ChunkOverlap 为 0 时使用默认配置。
type UploadInput struct {
	FileName     string
	ContentType  string
	Data         []byte
	ChunkSize    int
	ChunkOverlap int
}

// Service 文档问答服务接口。
type Service interface {
	// Upload 提取文档文本、分块向量化并入库。
	// 提取或向量化失败时返回 chunkCount 为 0 的成功结果，不报错。
	Upload(ctx context.Context, sessionID string, input *UploadInput) (*model.UploadResult, error)

	// Query 执行一次检索问答。
	Query(ctx context.Context, sessionID string, req *model.QueryRequest) (*model.QueryResponse, error)

	// Reset 清除会话的全部存储数据和缓存。
	Reset(ctx context.Context, sessionID string) (*model.ResetResult, error)

	// Stats 返回会话当前的存储状态。
	Stats(ctx context.Context, sessionID string) (*model.SessionStats, error)
}

// Config 服务行为配置。
type Config struct {
	// MaxQueryChars 问题长度上限（去除首尾空白后）。
	MaxQueryChars int
}

type service struct {
	store     store.VectorStore
	chunker   *Chunker
	retriever *Retriever
	assembler *Assembler
	generator llm.ChatProvider
	cache     *AnswerCache
	config    *Config
}

// NewService 创建文档问答服务。cache 可为 nil 表示禁用缓存。
func NewService(
	vectorStore store.VectorStore,
	chunker *Chunker,
	retriever *Retriever,
	assembler *Assembler,
	generator llm.ChatProvider,
	cache *AnswerCache,
	config *Config,
) Service {
	if config == nil {
		config = &Config{MaxQueryChars: 500}
	}
	if cache == nil {
		cache = NewAnswerCache(nil, nil)
	}
	return &service{
		store:     vectorStore,
		chunker:   chunker,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cache:     cache,
		config:    config,
	}
}

// Upload 实现 Service。
func (s *service) Upload(ctx context.Context, sessionID string, input *UploadInput) (*model.UploadResult, error) {
	if input == nil || len(input.Data) == 0 || input.FileName == "" {
		return nil, ErrNoFile
	}
	if !extract.IsSupported(input.FileName, input.ContentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, input.FileName)
	}

	result := &model.UploadResult{
		SessionID:     sessionID,
		FileName:      input.FileName,
		FileSizeBytes: int64(len(input.Data)),
		FileType:      extract.FileType(input.FileName, input.ContentType),
	}

	extracted, err := extract.FromFile(input.FileName, input.ContentType, input.Data)
	if err != nil {
		// 提取失败不阻塞上传，按零块文档处理。
		logger.Warnw("document extraction failed",
			"session_id", sessionID,
			"file_name", input.FileName,
			"error", err.Error(),
		)
		return result, nil
	}

	result.CharCount = utf8.RuneCountInString(extracted.Text)
	result.WordCount = textutil.CountWords(extracted.Text)
	result.PageCount = extracted.PageCount

	documentID := uuid.NewString()
	chunks, err := s.chunker.ChunkAndEmbed(ctx, sessionID, documentID, extracted.Text, input.ChunkSize, input.ChunkOverlap)
	if err != nil {
		// 分块参数错误属于请求校验问题，必须上抛。
		if isValidationError(err) {
			return nil, err
		}
		// 向量化失败同样不阻塞上传。
		logger.Warnw("chunk embedding failed",
			"session_id", sessionID,
			"document_id", documentID,
			"error", err.Error(),
		)
		return result, nil
	}

	if len(chunks) == 0 {
		return result, nil
	}

	if err := s.store.AddDocuments(ctx, sessionID, documentID, input.FileName, chunks); err != nil {
		return nil, fmt.Errorf("store documents: %w", err)
	}

	// 新文档让已缓存的回答过期。
	s.cache.ClearSession(ctx, sessionID)

	result.ChunkCount = len(chunks)
	logger.Infow("document indexed",
		"session_id", sessionID,
		"document_id", documentID,
		"file_name", input.FileName,
		"chunk_count", len(chunks),
		"char_count", result.CharCount,
		"page_count", result.PageCount,
	)
	return result, nil
}

// Query 实现 Service。
func (s *service) Query(ctx context.Context, sessionID string, req *model.QueryRequest) (*model.QueryResponse, error) {
	if req == nil {
		return nil, ErrEmptyQuery
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return nil, ErrEmptyQuery
	}
	// 超长问题在向量化之前拒绝，避免无谓的外部调用。
	if utf8.RuneCountInString(question) > s.config.MaxQueryChars {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrQueryTooLong, s.config.MaxQueryChars)
	}

	if cached := s.cache.Get(ctx, sessionID, question); cached != nil {
		return cached, nil
	}

	results, err := s.retriever.Retrieve(ctx, sessionID, question, req.TopK, req.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	totalChunks, err := s.store.ChunkCount(ctx, sessionID)
	if err != nil {
		logger.Warnw("failed to read session chunk count", "session_id", sessionID, "error", err.Error())
	}

	resp := &model.QueryResponse{
		Results: results,
		Debug: model.QueryDebug{
			TotalStoredChunks: totalChunks,
			RetrievedChunks:   len(results),
		},
	}
	if len(results) > 0 {
		resp.Debug.TopScore = results[0].Score
	}

	if len(results) == 0 {
		// 应用层护栏：无相关上下文时直接拒答，完全绕过生成模型。
		resp.Answer = RefusalAnswer
		logger.Infow("query refused, no relevant context",
			"session_id", sessionID,
			"total_stored_chunks", totalChunks,
		)
		s.cache.Set(ctx, sessionID, question, resp)
		return resp, nil
	}

	prompt := s.assembler.BuildPrompt(question, results, req.History)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	resp.Answer = answer

	logger.Infow("query answered",
		"session_id", sessionID,
		"retrieved_chunks", len(results),
		"top_score", resp.Debug.TopScore,
		"answer_length", len(answer),
	)

	s.cache.Set(ctx, sessionID, question, resp)
	return resp, nil
}

// Reset 实现 Service。对空会话重置是无害操作。
func (s *service) Reset(ctx context.Context, sessionID string) (*model.ResetResult, error) {
	if err := s.store.ClearSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("clear session: %w", err)
	}
	s.cache.ClearSession(ctx, sessionID)

	logger.Infow("session reset", "session_id", sessionID)
	return &model.ResetResult{Status: "reset", SessionID: sessionID}, nil
}

// Stats 实现 Service。
func (s *service) Stats(ctx context.Context, sessionID string) (*model.SessionStats, error) {
	count, err := s.store.ChunkCount(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chunk count: %w", err)
	}
	return &model.SessionStats{
		SessionID:   sessionID,
		ChunkCount:  count,
		StoreName:   s.store.Name(),
		CacheActive: s.cache.Active(),
	}, nil
}

// isValidationError 判断错误是否属于请求校验类。
func isValidationError(err error) bool {
	for _, sentinel := range []error{ErrInvalidChunking, ErrNoFile, ErrUnsupportedFileType, ErrEmptyQuery, ErrQueryTooLong} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
