package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Anything outside letters, digits, whitespace and the punctuation used by
	// prose, markdown and code is dropped.
	disallowedChars = regexp.MustCompile("[^\\p{L}\\p{M}\\p{N}_\\s.!?,;:\\-()\\[\\]{}\"'/#*+=%&@`<>|~]")
	spaceRun        = regexp.MustCompile(` {2,}`)
)

// Normalize collapses whitespace inside each line (leading indentation is
// kept except on the first line, tabs become four spaces), strips unsupported
// characters and reduces blank-line runs to a single blank line. The result
// never starts or ends with whitespace. Chunk offsets index into its output.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, text)
	text = disallowedChars.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	prevBlank := true
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", "    ")
		body := strings.TrimLeft(line, " ")
		indent := len(line) - len(body)
		body = strings.TrimRight(spaceRun.ReplaceAllString(body, " "), " ")

		if body == "" {
			if !prevBlank {
				out = append(out, "")
			}
			prevBlank = true
			continue
		}
		if len(out) == 0 {
			indent = 0
		}
		out = append(out, strings.Repeat(" ", indent)+body)
		prevBlank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// span is a half-open byte range into normalized text.
type span struct {
	start, end int
}

// splitSections splits normalized text on blank lines.
func splitSections(n string) []span {
	if n == "" {
		return nil
	}
	var out []span
	start := 0
	for {
		i := strings.Index(n[start:], "\n\n")
		if i < 0 {
			out = append(out, span{start, len(n)})
			return out
		}
		out = append(out, span{start, start + i})
		start += i + 2
	}
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// sentenceSpans splits a section into sentences. Each span ends right after
// its terminator run; trailing text without a terminator forms the last span.
func sentenceSpans(n string, s span) []span {
	text := n[s.start:s.end]
	var out []span
	cur := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		j := loc[0]
		for j < loc[1] && isTerminator(text[j]) {
			j++
		}
		out = append(out, span{s.start + cur, s.start + j})
		cur = loc[1]
	}
	if rest := strings.TrimSpace(text[cur:]); rest != "" {
		out = append(out, span{s.start + cur, s.end})
	}
	return out
}

// CountSentences counts terminator runs followed by whitespace or the end of text.
func CountSentences(text string) int {
	return len(sentenceEnd.FindAllStringIndex(text, -1))
}
