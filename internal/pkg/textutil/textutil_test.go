package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "length mismatch",
			a:        []float32{1, 2},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 1e-9)
		})
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float32{0.3, 0.7, 1.2}
	b := []float32{0.6, 1.4, 2.4}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalize_DotProductEqualsCosine(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	cos := CosineSimilarity(a, b)
	dot := DotProduct(Normalize(a), Normalize(b))
	assert.InDelta(t, cos, dot, 1e-6)
}

func TestHashString(t *testing.T) {
	h1 := HashString("hello")
	h2 := HashString("hello")
	h3 := HashString("world")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hel", TruncateString("hello", 3))
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "", TruncateString("hello", 0))
	assert.Equal(t, "你好", TruncateString("你好世界", 2))
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "llo", TruncateTail("hello", 3))
	assert.Equal(t, "hello", TruncateTail("hello", 10))
	assert.Equal(t, "", TruncateTail("hello", 0))
	assert.Equal(t, "世界", TruncateTail("你好世界", 2))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("   \n\t"))
	assert.Equal(t, 3, CountWords("one two three"))
	assert.Equal(t, 2, CountWords("  leading   spaces  "))
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "abc_123", SanitizeIdentifier("abc-123"))
	assert.Equal(t, "session_a_b_c", SanitizeIdentifier("session_a.b/c"))
	assert.Equal(t, "already_valid_1", SanitizeIdentifier("already_valid_1"))
}
