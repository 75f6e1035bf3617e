// Package rag provides retrieval and guardrail configuration options.
package rag

import (
	"fmt"

	"github.com/kart-io/docchat/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Store backends selectable at startup.
const (
	BackendMemory = "memory"
	BackendMilvus = "milvus"
)

// Options contains retrieval pipeline configuration.
type Options struct {
	// ChunkSize is the maximum size of a text chunk in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters re-included at the start
	// of the next chunk. Must be strictly less than ChunkSize.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of results returned by similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SimilarityThreshold is the default minimum cosine similarity for a
	// chunk to be considered relevant.
	SimilarityThreshold float64 `json:"similarity-threshold" mapstructure:"similarity-threshold"`

	// MaxQueryChars rejects questions longer than this many characters
	// (after trimming) before any retrieval work is done.
	MaxQueryChars int `json:"max-query-chars" mapstructure:"max-query-chars"`

	// MaxContextChars caps the concatenated retrieved context.
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`

	// MaxHistoryMessages keeps only the most recent N conversation messages.
	MaxHistoryMessages int `json:"max-history-messages" mapstructure:"max-history-messages"`

	// MaxHistoryChars caps the rendered conversation transcript.
	MaxHistoryChars int `json:"max-history-chars" mapstructure:"max-history-chars"`

	// Backend selects the vector store implementation (memory|milvus).
	Backend string `json:"backend" mapstructure:"backend"`

	// CollectionPrefix prefixes per-session Milvus collection names.
	CollectionPrefix string `json:"collection-prefix" mapstructure:"collection-prefix"`

	// EmbeddingDim is the embedding vector dimension (Milvus backend only).
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		TopK:                5,
		SimilarityThreshold: 0.4,
		MaxQueryChars:       500,
		MaxContextChars:     8000,
		MaxHistoryMessages:  6,
		MaxHistoryChars:     2000,
		Backend:             BackendMemory,
		CollectionPrefix:    "session_",
		EmbeddingDim:        3072,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Maximum size of text chunks in characters.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in characters.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Default number of results from similarity search.")
	fs.Float64Var(&o.SimilarityThreshold, options.Join(prefixes...)+"rag.similarity-threshold", o.SimilarityThreshold, "Default minimum similarity score for retrieval.")
	fs.IntVar(&o.MaxQueryChars, options.Join(prefixes...)+"rag.max-query-chars", o.MaxQueryChars, "Maximum accepted question length in characters.")
	fs.IntVar(&o.MaxContextChars, options.Join(prefixes...)+"rag.max-context-chars", o.MaxContextChars, "Maximum retrieved context length in characters.")
	fs.IntVar(&o.MaxHistoryMessages, options.Join(prefixes...)+"rag.max-history-messages", o.MaxHistoryMessages, "Number of recent conversation messages kept.")
	fs.IntVar(&o.MaxHistoryChars, options.Join(prefixes...)+"rag.max-history-chars", o.MaxHistoryChars, "Maximum conversation transcript length in characters.")
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"rag.backend", o.Backend, "Vector store backend (memory|milvus).")
	fs.StringVar(&o.CollectionPrefix, options.Join(prefixes...)+"rag.collection-prefix", o.CollectionPrefix, "Prefix for per-session Milvus collections.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension (milvus backend).")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must not be negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be strictly less than rag.chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MaxQueryChars <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-query-chars must be positive"))
	}
	if o.Backend != BackendMemory && o.Backend != BackendMilvus {
		errs = append(errs, fmt.Errorf("rag.backend must be %q or %q", BackendMemory, BackendMilvus))
	}
	if o.Backend == BackendMilvus && o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive for the milvus backend"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.CollectionPrefix == "" {
		o.CollectionPrefix = "session_"
	}
	return nil
}
