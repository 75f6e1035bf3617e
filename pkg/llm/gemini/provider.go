// Package gemini 提供 Google Gemini LLM 供应商实现。
// 通过 REST API 调用 batchEmbedContents 和 generateContent。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kart-io/docchat/pkg/llm"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, newEmbeddingProvider)
	llm.RegisterChatProvider(ProviderName, newChatProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey Google AI API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于生成回答的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 服务器错误时的最大重试次数，0 表示只请求一次。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Temperature 生成温度，检索问答默认为 0 以保证确定性。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel:  "gemini-embedding-001",
		ChatModel:   "gemini-2.5-flash",
		Timeout:     120 * time.Second,
		MaxRetries:  0,
		Temperature: 0,
	}
}

// Provider Gemini 供应商实现，同时满足 EmbeddingProvider 和 ChatProvider。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

var (
	_ llm.EmbeddingProvider = (*Provider)(nil)
	_ llm.ChatProvider      = (*Provider)(nil)
)

func newEmbeddingProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	return NewProvider(configMap)
}

func newChatProvider(configMap map[string]any) (llm.ChatProvider, error) {
	return NewProvider(configMap)
}

// NewProvider 从配置 map 创建 Gemini 供应商。
// 缺少 api_key 时返回错误，由调用方决定失败时机。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["temperature"].(float64); ok && v > 0 {
		cfg.Temperature = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// embedRequest Gemini batchEmbedContents API 请求体。
type embedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type embedContentRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]embedContentRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedContentRequest{
			Model: fmt.Sprintf("models/%s", p.config.EmbedModel),
			Content: embedContent{
				Parts: []embedPart{{Text: text}},
			},
		}
	}

	body, err := json.Marshal(embedRequest{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s",
		p.config.BaseURL, p.config.EmbedModel, p.config.APIKey)

	respBody, err := p.postJSON(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var embedResp embedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d 实际 %d", len(texts), len(embedResp.Embeddings))
	}

	embeddings := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

// chatRequest Gemini generateContent API 请求体。
type chatRequest struct {
	Contents         []chatContent     `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type chatContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []chatPart `json:"parts"`
}

type chatPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Contents: []chatContent{
			{
				Role:  "user",
				Parts: []chatPart{{Text: prompt}},
			},
		},
		GenerationConfig: &generationConfig{
			Temperature: p.config.Temperature,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.config.BaseURL, p.config.ChatModel, p.config.APIKey)

	respBody, err := p.postJSON(ctx, url, body)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	if len(chatResp.Candidates) == 0 || len(chatResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("未返回响应内容")
	}
	return chatResp.Candidates[0].Content.Parts[0].Text, nil
}

// postJSON 发送请求并读取响应，服务器错误时按配置重试。
// 每次重试重建请求体，避免复用已消费的 Body。
func (p *Provider) postJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for i := 0; i <= p.config.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("请求失败: %w", err)
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("读取响应失败: %w", readErr)
			} else if resp.StatusCode == http.StatusOK {
				return respBody, nil
			} else if resp.StatusCode < 500 {
				return nil, fmt.Errorf("请求失败，状态码 %d: %s", resp.StatusCode, string(respBody))
			} else {
				lastErr = fmt.Errorf("服务器错误，状态码 %d: %s", resp.StatusCode, string(respBody))
			}
		}

		if i < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return nil, lastErr
}
