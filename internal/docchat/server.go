// Package docchat provides the document chat server implementation.
package docchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docchat/pkg/llm/gemini"
	cacheopts "github.com/kart-io/docchat/pkg/options/cache"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	ragopts "github.com/kart-io/docchat/pkg/options/rag"
	httpopts "github.com/kart-io/docchat/pkg/options/server/http"
)

// Name is the name of the application.
const Name = "docchat"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the document chat server.
type Server struct {
	httpServer *http.Server
	shutdown   time.Duration

	storeClose func()
	redisClose func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document chat service...")

	// 2. 初始化向量存储
	vectorStore, storeClose, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", vectorStore.Name())

	// 3. 初始化 Redis 回答缓存（可选）
	answerCache, redisClose := cfg.newAnswerCache(ctx)

	// 4. 初始化 LLM 供应商。
	// 延迟构造：缺少 API Key 不阻止启动，首次调用时才报错。
	if cfg.EmbeddingOptions.APIKey == "" {
		logger.Warn("Embedding API key is not configured; uploads will index zero chunks and queries will fail until it is set")
	}
	embedProvider := llm.NewLazyEmbedding(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	chatProvider := llm.NewLazyChat(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	logger.Infow("LLM providers configured",
		"embedding.provider", cfg.EmbeddingOptions.Provider,
		"embedding.model", cfg.EmbeddingOptions.Model,
		"chat.provider", cfg.ChatOptions.Provider,
		"chat.model", cfg.ChatOptions.Model,
	)

	// 5. 初始化 Biz 层
	chunker, err := biz.NewChunker(embedProvider, cfg.RAGOptions.ChunkSize, cfg.RAGOptions.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	retriever := biz.NewRetriever(vectorStore, embedProvider, cfg.RAGOptions.TopK, cfg.RAGOptions.SimilarityThreshold)
	assembler := biz.NewAssembler(cfg.RAGOptions.MaxContextChars, cfg.RAGOptions.MaxHistoryMessages, cfg.RAGOptions.MaxHistoryChars)
	svc := biz.NewService(vectorStore, chunker, retriever, assembler, chatProvider, answerCache, &biz.Config{
		MaxQueryChars: cfg.RAGOptions.MaxQueryChars,
	})
	logger.Infow("Document chat service initialized",
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"chunk_overlap", cfg.RAGOptions.ChunkOverlap,
		"top_k", cfg.RAGOptions.TopK,
		"similarity_threshold", cfg.RAGOptions.SimilarityThreshold,
	)

	// 6. 初始化 HTTP 层
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = cfg.HTTPOptions.MaxUploadBytes
	router.Register(engine, handler.New(svc))

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Infow("Document chat service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{
		httpServer: httpServer,
		shutdown:   cfg.ShutdownTimeout,
		storeClose: storeClose,
		redisClose: redisClose,
	}, nil
}

// newVectorStore 按配置选择存储后端。
func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, func(), error) {
	switch cfg.RAGOptions.Backend {
	case ragopts.BackendMilvus:
		milvusClient, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		s := store.NewMilvusStore(milvusClient, cfg.RAGOptions.CollectionPrefix, cfg.RAGOptions.EmbeddingDim)
		return s, func() { _ = s.Close(context.Background()) }, nil
	case ragopts.BackendMemory:
		return store.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.RAGOptions.Backend)
	}
}

// newAnswerCache 初始化 Redis 回答缓存，连接失败时降级为禁用。
func (cfg *Config) newAnswerCache(ctx context.Context) (*biz.AnswerCache, func()) {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Answer cache is disabled")
		return nil, nil
	}
	redisOpts := cfg.CacheOptions.Redis
	if redisOpts == nil {
		logger.Warn("Cache is enabled but no Redis configuration provided")
		return nil, nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         redisOpts.Addr(),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
		DialTimeout:  redisOpts.DialTimeout,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, answer cache will be disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil, nil
	}

	cache := biz.NewAnswerCache(redisClient, &biz.AnswerCacheConfig{
		Enabled:   true,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})
	logger.Infow("Redis answer cache initialized",
		"addr", redisOpts.Addr(),
		"ttl", cfg.CacheOptions.TTL,
	)
	return cache, func() { _ = redisClient.Close() }
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.storeClose != nil {
			s.storeClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down document chat service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
