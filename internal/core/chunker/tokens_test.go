package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"two words", "hello world", 5},
		{"single long word", strings.Repeat("a", 40), 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokens_NeverBelowWordCount(t *testing.T) {
	inputs := []string{
		"a b c d e f g h i j",
		"x",
		"I a I a I a",
		strings.Repeat("word ", 500),
		mixedDoc,
	}
	for _, in := range inputs {
		assert.GreaterOrEqual(t, EstimateTokens(in), WordCount(in))
	}
}

func TestTruncateToTokens(t *testing.T) {
	text := strings.Repeat("The cat sat on the mat. ", 100)

	t.Run("within budget unchanged", func(t *testing.T) {
		assert.Equal(t, "Short text.", TruncateToTokens("Short text.", 100))
	})

	t.Run("cuts at sentence boundary", func(t *testing.T) {
		got := TruncateToTokens(text, 200)
		assert.LessOrEqual(t, EstimateTokens(got), 200)
		assert.True(t, strings.HasPrefix(text, got))
		assert.True(t, strings.HasSuffix(got, "mat."), "got %q", got[max(0, len(got)-20):])
	})

	t.Run("falls back to word boundary", func(t *testing.T) {
		words := strings.Repeat("lorem ipsum dolor ", 200)
		got := TruncateToTokens(words, 150)
		assert.LessOrEqual(t, EstimateTokens(got), 150)
		assert.True(t, strings.HasPrefix(words, got))
		assert.False(t, strings.HasSuffix(got, " "))
	})

	t.Run("stops at floor", func(t *testing.T) {
		got := TruncateToTokens(text, 5)
		assert.LessOrEqual(t, len(got), truncateFloor)
		assert.NotEmpty(t, got)
	})

	t.Run("zero budget", func(t *testing.T) {
		assert.Equal(t, "", TruncateToTokens(text, 0))
	})
}
