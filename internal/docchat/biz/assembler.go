package biz

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
)

// RefusalAnswer 检索为空时返回的固定回复，同时写入提示词指令中，
// 保证模型拒答与应用层拒答逐字节一致。
const RefusalAnswer = "This question is outside the scope of uploaded documents."

const (
	// chunkSeparator 上下文中相邻块之间的分隔符。
	chunkSeparator = "\n---\n"

	// contextTruncationMarker 上下文被截断时附加的标记。
	contextTruncationMarker = "\n... [Remaining context truncated for length]"

	// historyTruncationPrefix 历史被截断时附加的前缀。
	historyTruncationPrefix = "... [Oldest messages truncated]\n"

	// emptyHistoryTranscript 无历史时注入的占位文本。
	emptyHistoryTranscript = "No previous context."
)

// qaPromptTemplate 约束模型只依据上下文作答的提示词模板。
const qaPromptTemplate = `You are a document-based assistant.
Answer ONLY using the context below.
If the answer is not in the context, say:
"%s"

Context:
%s

Previous Conversation History:
%s

Current Question:
%s`

// Assembler 将检索结果和对话历史装配为最终提示词，并执行长度护栏。
type Assembler struct {
	// MaxContextChars 上下文最大字符数，超出部分截断。
	MaxContextChars int

	// MaxHistoryMessages 注入历史的最大消息条数，保留最近的。
	MaxHistoryMessages int

	// MaxHistoryChars 历史转写的最大字符数，超出时保留尾部。
	MaxHistoryChars int
}

// NewAssembler 创建提示词装配器。
func NewAssembler(maxContextChars, maxHistoryMessages, maxHistoryChars int) *Assembler {
	return &Assembler{
		MaxContextChars:    maxContextChars,
		MaxHistoryMessages: maxHistoryMessages,
		MaxHistoryChars:    maxHistoryChars,
	}
}

// BuildContext 拼接检索到的块文本并应用长度上限。
func (a *Assembler) BuildContext(results []model.QueryResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	raw := strings.Join(texts, chunkSeparator)

	if utf8.RuneCountInString(raw) > a.MaxContextChars {
		return textutil.TruncateString(raw, a.MaxContextChars) + contextTruncationMarker
	}
	return raw
}

// BuildHistoryTranscript 将对话历史转写为文本。
// 只保留最近 MaxHistoryMessages 条，丢弃未成功的助手消息，
// 超长时保留尾部并加截断前缀。
func (a *Assembler) BuildHistoryTranscript(history []model.ChatMessage) string {
	if len(history) == 0 {
		return emptyHistoryTranscript
	}

	recent := history
	if len(recent) > a.MaxHistoryMessages {
		recent = recent[len(recent)-a.MaxHistoryMessages:]
	}

	var lines []string
	for _, msg := range recent {
		if msg.Role == "assistant" && msg.Status != "success" {
			continue
		}
		label := "Assistant"
		if msg.Role == "user" {
			label = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}

	transcript := strings.Join(lines, "\n\n")
	if utf8.RuneCountInString(transcript) > a.MaxHistoryChars {
		transcript = historyTruncationPrefix + textutil.TruncateTail(transcript, a.MaxHistoryChars)
	}
	return transcript
}

// BuildPrompt 生成最终提示词。
func (a *Assembler) BuildPrompt(query string, results []model.QueryResult, history []model.ChatMessage) string {
	return fmt.Sprintf(qaPromptTemplate,
		RefusalAnswer,
		a.BuildContext(results),
		a.BuildHistoryTranscript(history),
		query,
	)
}
