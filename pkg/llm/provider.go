// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding 和 Chat 可以分别配置不同供应商的模型。
package llm

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，返回顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// EmbeddingFactory Embedding 供应商工厂函数类型。
type EmbeddingFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatFactory Chat 供应商工厂函数类型。
type ChatFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	embeddings: make(map[string]EmbeddingFactory),
	chats:      make(map[string]ChatFactory),
}

type providerRegistry struct {
	mu         sync.RWMutex
	embeddings map[string]EmbeddingFactory
	chats      map[string]ChatFactory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddings[name] = factory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chats[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.embeddings[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.chats[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}
	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for name := range registry.embeddings {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.chats {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
