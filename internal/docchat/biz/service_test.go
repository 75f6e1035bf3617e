package biz

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
)

// fakeEmbedder 记录调用次数，返回固定方向的向量。
type fakeEmbedder struct {
	embedCalls  int
	singleCalls int
	failEmbed   bool
	failSingle  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.failEmbed {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.singleCalls++
	if f.failSingle {
		return nil, fmt.Errorf("embedding backend down")
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

// fakeGenerator 记录收到的提示词。
type fakeGenerator struct {
	calls   int
	prompt  string
	answer  string
	failGen bool
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.failGen {
		return "", fmt.Errorf("model overloaded")
	}
	if f.answer == "" {
		return "generated answer", nil
	}
	return f.answer, nil
}

func (f *fakeGenerator) Name() string { return "fake" }

func newTestService(t *testing.T, embedder *fakeEmbedder, generator *fakeGenerator) Service {
	t.Helper()
	memStore := store.NewMemoryStore()
	chunker, err := NewChunker(embedder, 1000, 200)
	require.NoError(t, err)
	retriever := NewRetriever(memStore, embedder, store.DefaultTopK, store.DefaultSimilarityThreshold)
	assembler := NewAssembler(8000, 6, 2000)
	return NewService(memStore, chunker, retriever, assembler, generator, nil, &Config{MaxQueryChars: 500})
}

func TestUpload_TxtEndToEnd(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(t, embedder, &fakeGenerator{})

	var sb strings.Builder
	for sb.Len() < 2500 {
		sb.WriteByte(byte('a' + sb.Len()%26))
	}
	input := &UploadInput{
		FileName:     "doc.txt",
		Data:         []byte(sb.String()[:2500]),
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}

	result, err := svc.Upload(context.Background(), "s1", input)
	require.NoError(t, err)

	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, "doc.txt", result.FileName)
	assert.Equal(t, int64(2500), result.FileSizeBytes)
	assert.Equal(t, "txt", result.FileType)
	assert.Equal(t, 2500, result.CharCount)
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, 3, result.ChunkCount)
}

func TestUpload_MissingFile(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Upload(context.Background(), "s1", nil)
	require.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Upload(context.Background(), "s1", &UploadInput{FileName: "a.txt"})
	require.ErrorIs(t, err, ErrNoFile)
}

func TestUpload_UnsupportedType(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "image.png",
		Data:     []byte("bytes"),
	})
	require.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestUpload_PlainTextContentType(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	result, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName:    "pasted-notes",
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte("notes without a file extension"),
	})
	require.NoError(t, err)

	assert.Equal(t, "txt", result.FileType)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestUpload_EmbeddingFailureReturnsZeroChunks(t *testing.T) {
	embedder := &fakeEmbedder{failEmbed: true}
	svc := newTestService(t, embedder, &fakeGenerator{})

	result, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("some document content"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 21, result.CharCount)
}

func TestUpload_ExtractionFailureReturnsZeroChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(t, embedder, &fakeGenerator{})

	result, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "broken.pdf",
		Data:     []byte("not actually a pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 0, result.CharCount)
	assert.Equal(t, 0, embedder.embedCalls)
}

func TestUpload_InvalidChunkOverrides(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName:     "doc.txt",
		Data:         []byte("content"),
		ChunkSize:    100,
		ChunkOverlap: 100,
	})
	require.ErrorIs(t, err, ErrInvalidChunking)
}

func TestQuery_GuardrailOnEmptySession(t *testing.T) {
	generator := &fakeGenerator{}
	svc := newTestService(t, &fakeEmbedder{}, generator)

	resp, err := svc.Query(context.Background(), "empty-session", &model.QueryRequest{
		Query: "What is the capital of France?",
	})
	require.NoError(t, err)

	assert.Equal(t, RefusalAnswer, resp.Answer)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Debug.TotalStoredChunks)
	assert.Equal(t, 0, resp.Debug.RetrievedChunks)
	assert.Zero(t, resp.Debug.TopScore)
	assert.Equal(t, 0, generator.calls, "generator must not be invoked for a refusal")
}

func TestQuery_AnswersFromUploadedDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{answer: "the document says hello"}
	svc := newTestService(t, embedder, generator)

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("hello from the document"),
	})
	require.NoError(t, err)

	resp, err := svc.Query(context.Background(), "s1", &model.QueryRequest{Query: "what does it say?"})
	require.NoError(t, err)

	assert.Equal(t, "the document says hello", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Debug.TotalStoredChunks)
	assert.Equal(t, 1, resp.Debug.RetrievedChunks)
	assert.InDelta(t, 1.0, resp.Debug.TopScore, 1e-6)
	assert.Contains(t, generator.prompt, "hello from the document")
	assert.Contains(t, generator.prompt, "Current Question:\nwhat does it say?")
}

func TestQuery_EmptyQuery(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	_, err := svc.Query(context.Background(), "s1", &model.QueryRequest{Query: "   "})
	require.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Query(context.Background(), "s1", nil)
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQuery_OversizedQueryRejectedBeforeEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(t, embedder, &fakeGenerator{})

	_, err := svc.Query(context.Background(), "s1", &model.QueryRequest{
		Query: strings.Repeat("q", 501),
	})
	require.ErrorIs(t, err, ErrQueryTooLong)
	assert.Equal(t, 0, embedder.singleCalls, "no embedding call for rejected query")
}

func TestQuery_ExactLimitAccepted(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	resp, err := svc.Query(context.Background(), "s1", &model.QueryRequest{
		Query: strings.Repeat("q", 500),
	})
	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, resp.Answer)
}

func TestQuery_EmbeddingFailureIsError(t *testing.T) {
	embedder := &fakeEmbedder{failSingle: true}
	svc := newTestService(t, embedder, &fakeGenerator{})

	_, err := svc.Query(context.Background(), "s1", &model.QueryRequest{Query: "anything"})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestQuery_GenerationFailureIsError(t *testing.T) {
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{failGen: true}
	svc := newTestService(t, embedder, generator)

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("document body"),
	})
	require.NoError(t, err)

	_, err = svc.Query(context.Background(), "s1", &model.QueryRequest{Query: "summarize"})
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestQuery_ThresholdOverride(t *testing.T) {
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{}
	svc := newTestService(t, embedder, generator)

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("document body"),
	})
	require.NoError(t, err)

	// A threshold above the perfect score filters everything out.
	threshold := 1.5
	resp, err := svc.Query(context.Background(), "s1", &model.QueryRequest{
		Query:               "anything",
		SimilarityThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, resp.Answer)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1, resp.Debug.TotalStoredChunks)
}

func TestQuery_TopKOverride(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(t, embedder, &fakeGenerator{})

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName:     "doc.txt",
		Data:         []byte(strings.Repeat("n", 50)),
		ChunkSize:    10,
		ChunkOverlap: 0,
	})
	require.NoError(t, err)

	topK := 2
	resp, err := svc.Query(context.Background(), "s1", &model.QueryRequest{
		Query: "anything",
		TopK:  &topK,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 5, resp.Debug.TotalStoredChunks)
}

func TestQuery_HistoryInjectedIntoPrompt(t *testing.T) {
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{}
	svc := newTestService(t, embedder, generator)

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("document body"),
	})
	require.NoError(t, err)

	_, err = svc.Query(context.Background(), "s1", &model.QueryRequest{
		Query: "follow-up",
		History: []model.ChatMessage{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer", Status: "success"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, generator.prompt, "User: first question")
	assert.Contains(t, generator.prompt, "Assistant: first answer")
}

func TestReset_Idempotent(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(t, embedder, &fakeGenerator{})

	_, err := svc.Upload(context.Background(), "s1", &UploadInput{
		FileName: "doc.txt",
		Data:     []byte("document body"),
	})
	require.NoError(t, err)

	result, err := svc.Reset(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "reset", result.Status)
	assert.Equal(t, "s1", result.SessionID)

	// Resetting again, and resetting a session that never existed, are
	// both harmless.
	_, err = svc.Reset(context.Background(), "s1")
	require.NoError(t, err)
	_, err = svc.Reset(context.Background(), "never-existed")
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunkCount)
}

func TestStats(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, &fakeGenerator{})

	stats, err := svc.Stats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", stats.SessionID)
	assert.Equal(t, 0, stats.ChunkCount)
	assert.Equal(t, "memory", stats.StoreName)
	assert.False(t, stats.CacheActive)
}
