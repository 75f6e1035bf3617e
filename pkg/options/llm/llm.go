// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/kart-io/docchat/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（gemini 等）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大额外重试次数。0 表示失败立即返回，不重试。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Temperature 采样温度。接地问答要求 0。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "gemini",
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Timeout:     120 * time.Second,
		MaxRetries:  0,
		Temperature: 0,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gemini-embedding-001"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gemini-2.5-flash"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
		"temperature": o.Temperature,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"provider", o.Provider, "LLM provider (gemini).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, options.Join(prefixes...)+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"max-retries", o.MaxRetries, "LLM maximum number of extra retries.")
	fs.Float64Var(&o.Temperature, options.Join(prefixes...)+"temperature", o.Temperature, "LLM sampling temperature.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
// The API key is deliberately not validated here: a missing key must
// fail the first embedding/generation call, not process startup.
func (o *ProviderOptions) Complete() error {
	if o.BaseURL == "" {
		o.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return nil
}
