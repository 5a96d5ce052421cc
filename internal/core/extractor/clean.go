package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// CleanPageText collapses whitespace in each line, drops non-blank lines of
// three characters or fewer and keeps at most one blank line in a row.
func CleanPageText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		if utf8.RuneCountInString(line) <= 3 {
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// The UI patterns are English-only.
var uiLine = []*regexp.Regexp{
	regexp.MustCompile(`^(click|tap|press)\s+(here|this|button)\b`),
	regexp.MustCompile(`^(home|about|contact|menu|search|login|log in|sign in|sign up|register)\b`),
	regexp.MustCompile(`^(previous|next|back|forward|continue)\b`),
	regexp.MustCompile(`^(skip to|jump to|go to)\b`),
	regexp.MustCompile(`^(share|like|follow|subscribe)\b`),
	regexp.MustCompile(`^(cookie|cookies|privacy|terms|policy)\b`),
	regexp.MustCompile(`^\d+\s+(comments?|replies|reply|likes?)\b`),
	regexp.MustCompile(`^(loading|please wait|redirecting)\b`),
	regexp.MustCompile(`^(error|warning|success|info):`),
	regexp.MustCompile(`^\w+\s+\|\s+\w+`),
}

var navWords = []string{"menu", "nav", "link", "button", "tab", "page", "section"}

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	ellipsisRun  = regexp.MustCompile(`\.{4,}`)
	dashRun      = regexp.MustCompile(`-{4,}`)
	symbolAlone  = regexp.MustCompile(`\s+[|•→←↑↓]\s+`)
	sentenceEnd  = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	onlySymbols  = regexp.MustCompile(`^[^\p{L}\p{N}]*$`)
)

const (
	minSentence   = 10
	shortNavLimit = 30
)

// IsNavigationText reports whether a sentence looks like site chrome.
func IsNavigationText(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, re := range uiLine {
		if re.MatchString(lower) {
			return true
		}
	}
	if utf8.RuneCountInString(lower) < shortNavLimit {
		for _, w := range navWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

// ScrubArtifacts removes emails, URLs, phone numbers and stray symbols.
func ScrubArtifacts(s string) string {
	s = emailPattern.ReplaceAllString(s, "")
	s = urlPattern.ReplaceAllString(s, "")
	s = phonePattern.ReplaceAllString(s, "")
	s = ellipsisRun.ReplaceAllString(s, "...")
	s = dashRun.ReplaceAllString(s, "---")
	s = symbolAlone.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// CleanWebText filters main-content text line by line. Each line is scrubbed,
// then navigation sentences and fragments shorter than ten characters are
// dropped. Paragraph breaks survive as single blank lines.
func CleanWebText(text string) string {
	var paras []string
	for _, para := range strings.Split(text, "\n\n") {
		var lines []string
		for _, line := range strings.Split(para, "\n") {
			if cleaned := cleanWebLine(line); cleaned != "" {
				lines = append(lines, cleaned)
			}
		}
		if len(lines) > 0 {
			paras = append(paras, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(paras, "\n\n")
}

func cleanWebLine(line string) string {
	var kept []string
	for _, sentence := range splitSentences(ScrubArtifacts(line)) {
		if utf8.RuneCountInString(sentence) < minSentence || IsNavigationText(sentence) {
			continue
		}
		kept = append(kept, sentence)
	}
	out := strings.Join(kept, " ")
	if out == "" || onlySymbols.MatchString(out) {
		return ""
	}
	if last, _ := utf8.DecodeLastRuneInString(out); last != '.' && last != '!' && last != '?' {
		out += "."
	}
	return out
}

// splitSentences cuts after terminator runs that are followed by whitespace.
func splitSentences(line string) []string {
	var out []string
	cur := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		if s := strings.TrimSpace(line[cur:loc[1]]); s != "" {
			out = append(out, s)
		}
		cur = loc[1]
	}
	if s := strings.TrimSpace(line[cur:]); s != "" {
		out = append(out, s)
	}
	return out
}
