package chunker

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	charsPerToken    = 3.5
	truncateFloor    = 100
	sentenceLookback = 200
)

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens approximates the model token count of text. The result is
// never below the word count.
func EstimateTokens(text string) int {
	words := WordCount(text)
	chars := utf8.RuneCountInString(text)
	est := int(math.Round(float64(words)*1.3 + float64(chars)*0.25))
	return max(words, est)
}

// TruncateToTokens shortens text until EstimateTokens fits maxTokens, cutting
// at a sentence boundary when one is near, else at a word boundary. It stops
// shrinking once the text is at or below a 100 character floor.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if EstimateTokens(text) <= maxTokens {
		return text
	}

	cut := int(float64(maxTokens) * charsPerToken)
	for {
		if cut >= len(text) {
			cut = len(text) - 1
		}
		cut = max(alignBack(text, cut), 1)

		candidate := backOff(text[:cut])
		est := EstimateTokens(candidate)
		if est <= maxTokens || len(candidate) <= truncateFloor {
			return strings.TrimSpace(candidate)
		}

		next := int(float64(len(candidate)) * float64(maxTokens) / float64(est))
		if next >= len(candidate) {
			next = len(candidate) - 1
		}
		cut = max(next, truncateFloor)
	}
}

// backOff trims s to the last sentence end within the lookback window, or
// to the last word boundary.
func backOff(s string) string {
	lo := max(0, len(s)-sentenceLookback)
	for i := len(s) - 1; i >= lo; i-- {
		if !isTerminator(s[i]) {
			continue
		}
		if i+1 == len(s) || isSpaceByte(s[i+1]) {
			return s[:i+1]
		}
	}
	if i := strings.LastIndexFunc(s, unicode.IsSpace); i > 0 {
		return s[:i]
	}
	return s
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}

// alignBack moves i back to the nearest rune start.
func alignBack(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// forwardRunes returns the byte offset k runes after from, capped at len(s).
func forwardRunes(s string, from, k int) int {
	i := from
	for ; k > 0 && i < len(s); k-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// backRunes returns the byte offset k runes before to, floored at 0.
func backRunes(s string, to, k int) int {
	i := to
	for ; k > 0 && i > 0; k-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
