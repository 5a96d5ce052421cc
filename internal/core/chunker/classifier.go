package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Classifier decides the structural kind of a section and spots title lines.
type Classifier interface {
	Classify(section string) models.StructuralKind
	IsTitleLine(line string) bool
}

var (
	headingLine  = regexp.MustCompile(`^#{1,6}\s+\S`)
	listLine     = regexp.MustCompile(`^\s*(?:[-*+•]|\d{1,3}[.)]|[a-zA-Z][.)])\s+\S`)
	indentedLine = regexp.MustCompile(`^(?: {4}|\t)\S`)
)

const (
	maxTitleRunes = 80
	maxTitleWords = 10
)

// PatternClassifier is the default English-oriented heuristic classifier.
type PatternClassifier struct{}

var _ Classifier = PatternClassifier{}

func (PatternClassifier) Classify(section string) models.StructuralKind {
	lines := strings.Split(section, "\n")
	first := lines[0]

	if strings.HasPrefix(strings.TrimSpace(first), "```") {
		return models.KindCode
	}
	if headingLine.MatchString(first) || isShortTitle(first) {
		return models.KindTitle
	}
	for _, l := range lines {
		if listLine.MatchString(l) {
			return models.KindList
		}
	}
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") || indentedLine.MatchString(l) {
			return models.KindCode
		}
	}
	return models.KindParagraph
}

func (PatternClassifier) IsTitleLine(line string) bool {
	return headingLine.MatchString(line) || isShortTitle(line)
}

// isShortTitle matches a short capitalized line with no closing punctuation
// other than an optional colon. Indented and list lines never qualify.
func isShortTitle(line string) bool {
	line = strings.TrimRight(line, " ")
	if line == "" || utf8.RuneCountInString(line) > maxTitleRunes || listLine.MatchString(line) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) {
		return false
	}
	if len(strings.Fields(line)) > maxTitleWords {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	switch last {
	case '.', '!', '?', ',', ';':
		return false
	}
	return true
}
