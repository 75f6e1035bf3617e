package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
)

func result(text string, score float64) model.QueryResult {
	return model.QueryResult{
		Chunk: model.StoredChunk{Text: text},
		Score: score,
	}
}

func newTestAssembler() *Assembler {
	return NewAssembler(8000, 6, 2000)
}

func TestBuildContext_JoinsWithSeparator(t *testing.T) {
	a := newTestAssembler()
	ctx := a.BuildContext([]model.QueryResult{
		result("first chunk", 0.9),
		result("second chunk", 0.8),
	})
	assert.Equal(t, "first chunk\n---\nsecond chunk", ctx)
}

func TestBuildContext_TruncatesLongContext(t *testing.T) {
	a := newTestAssembler()
	big := strings.Repeat("a", 9000)
	ctx := a.BuildContext([]model.QueryResult{result(big, 0.9)})

	assert.True(t, strings.HasSuffix(ctx, "\n... [Remaining context truncated for length]"))
	assert.Equal(t, strings.Repeat("a", 8000), strings.TrimSuffix(ctx, "\n... [Remaining context truncated for length]"))
}

func TestBuildContext_NoTruncationAtLimit(t *testing.T) {
	a := newTestAssembler()
	exact := strings.Repeat("b", 8000)
	ctx := a.BuildContext([]model.QueryResult{result(exact, 0.9)})
	assert.Equal(t, exact, ctx)
}

func TestBuildHistoryTranscript_Empty(t *testing.T) {
	a := newTestAssembler()
	assert.Equal(t, "No previous context.", a.BuildHistoryTranscript(nil))
	assert.Equal(t, "No previous context.", a.BuildHistoryTranscript([]model.ChatMessage{}))
}

func TestBuildHistoryTranscript_Labels(t *testing.T) {
	a := newTestAssembler()
	transcript := a.BuildHistoryTranscript([]model.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello", Status: "success"},
	})
	assert.Equal(t, "User: hi\n\nAssistant: hello", transcript)
}

func TestBuildHistoryTranscript_DropsFailedAssistantMessages(t *testing.T) {
	a := newTestAssembler()
	transcript := a.BuildHistoryTranscript([]model.ChatMessage{
		{Role: "user", Content: "question one"},
		{Role: "assistant", Content: "searching...", Status: "pending"},
		{Role: "assistant", Content: "errored", Status: "error"},
		{Role: "assistant", Content: "real answer", Status: "success"},
	})
	assert.Equal(t, "User: question one\n\nAssistant: real answer", transcript)
}

func TestBuildHistoryTranscript_KeepsLastSixMessages(t *testing.T) {
	a := newTestAssembler()
	var history []model.ChatMessage
	for i := 0; i < 10; i++ {
		history = append(history, model.ChatMessage{Role: "user", Content: string(rune('a' + i))})
	}
	transcript := a.BuildHistoryTranscript(history)

	// Messages a-d fall out of the six-message window.
	assert.NotContains(t, transcript, "User: a")
	assert.NotContains(t, transcript, "User: d")
	assert.Contains(t, transcript, "User: e")
	assert.Contains(t, transcript, "User: j")
}

func TestBuildHistoryTranscript_TruncatesTail(t *testing.T) {
	a := newTestAssembler()
	long := strings.Repeat("m", 3000)
	transcript := a.BuildHistoryTranscript([]model.ChatMessage{
		{Role: "user", Content: long},
	})

	assert.True(t, strings.HasPrefix(transcript, "... [Oldest messages truncated]\n"))
	body := strings.TrimPrefix(transcript, "... [Oldest messages truncated]\n")
	assert.Len(t, body, 2000)
}

func TestBuildPrompt_ContainsAllSections(t *testing.T) {
	a := newTestAssembler()
	prompt := a.BuildPrompt("what is the plan?", []model.QueryResult{
		result("the plan is to ship", 0.95),
	}, []model.ChatMessage{
		{Role: "user", Content: "earlier question"},
	})

	require.Contains(t, prompt, "Answer ONLY using the context below.")
	assert.Contains(t, prompt, RefusalAnswer)
	assert.Contains(t, prompt, "Context:\nthe plan is to ship")
	assert.Contains(t, prompt, "User: earlier question")
	assert.True(t, strings.HasSuffix(prompt, "Current Question:\nwhat is the plan?"))
}
