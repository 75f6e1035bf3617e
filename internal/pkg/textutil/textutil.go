// Package textutil 提供检索问答相关的文本与向量工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 维度不一致或任一向量为零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize 返回向量的 L2 归一化副本。
// 零向量返回副本本身，不做除法。
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// DotProduct 计算两个向量的点积。
// 对已归一化的向量，点积即余弦相似度。
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// HashString 计算字符串的 SHA-256 哈希值（十六进制）。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateTail 保留字符串末尾最多 maxLen 个 Unicode 字符。
func TruncateTail(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[len(runes)-maxLen:])
}

// CountWords 统计按空白分割的单词数。
func CountWords(s string) int {
	return len(strings.Fields(s))
}

var identifierRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeIdentifier 将任意字符串转换为只包含字母、数字和下划线的标识符，
// 用于构造 Milvus 集合名等受限命名。
func SanitizeIdentifier(s string) string {
	return identifierRegex.ReplaceAllString(s, "_")
}
