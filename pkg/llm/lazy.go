package llm

import (
	"context"
	"sync"
)

// LazyEmbedding 延迟构造的 Embedding 供应商。
// 配置错误（如缺少 API Key）在首次调用时返回，而不是在服务启动时。
// 构造只执行一次，失败后的结果会被缓存并在后续调用中重复返回。
type LazyEmbedding struct {
	name   string
	config map[string]any

	once     sync.Once
	provider EmbeddingProvider
	err      error
}

// NewLazyEmbedding 创建延迟构造的 Embedding 供应商。
func NewLazyEmbedding(name string, config map[string]any) *LazyEmbedding {
	return &LazyEmbedding{name: name, config: config}
}

func (l *LazyEmbedding) get() (EmbeddingProvider, error) {
	l.once.Do(func() {
		l.provider, l.err = NewEmbeddingProvider(l.name, l.config)
	})
	return l.provider, l.err
}

// Embed 实现 EmbeddingProvider。
func (l *LazyEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, texts)
}

// EmbedSingle 实现 EmbeddingProvider。
func (l *LazyEmbedding) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedSingle(ctx, text)
}

// Name 实现 EmbeddingProvider。
func (l *LazyEmbedding) Name() string {
	return l.name
}

// LazyChat 延迟构造的 Chat 供应商，语义与 LazyEmbedding 相同。
type LazyChat struct {
	name   string
	config map[string]any

	once     sync.Once
	provider ChatProvider
	err      error
}

// NewLazyChat 创建延迟构造的 Chat 供应商。
func NewLazyChat(name string, config map[string]any) *LazyChat {
	return &LazyChat{name: name, config: config}
}

func (l *LazyChat) get() (ChatProvider, error) {
	l.once.Do(func() {
		l.provider, l.err = NewChatProvider(l.name, l.config)
	})
	return l.provider, l.err
}

// Generate 实现 ChatProvider。
func (l *LazyChat) Generate(ctx context.Context, prompt string) (string, error) {
	p, err := l.get()
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, prompt)
}

// Name 实现 ChatProvider。
func (l *LazyChat) Name() string {
	return l.name
}
