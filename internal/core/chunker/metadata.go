package chunker

import (
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Metadata describes one chunk.
type Metadata struct {
	TokenEstimate  int
	SentenceCount  int
	HasTitle       bool
	StructuralKind models.StructuralKind
	QualityScore   float64
}

// Chunk is a slice of the normalized text with its metadata.
// Start and End are byte offsets into Normalize(input).
type Chunk struct {
	Index    int
	Text     string
	Start    int
	End      int
	Metadata Metadata
}

// buildMetadata is shared by both chunking modes and the merge step.
func (c *Chunker) buildMetadata(text string) Metadata {
	sentences := CountSentences(text)
	hasTitle := c.hasTitle(text)
	return Metadata{
		TokenEstimate:  EstimateTokens(text),
		SentenceCount:  sentences,
		HasTitle:       hasTitle,
		StructuralKind: c.dominantKind(text),
		QualityScore:   qualityScore(text, sentences, hasTitle, c.cfg),
	}
}

func (c *Chunker) hasTitle(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if c.classifier.IsTitleLine(line) {
			return true
		}
	}
	return false
}

// dominantKind is the kind of the chunk's longest section.
func (c *Chunker) dominantKind(text string) models.StructuralKind {
	var (
		best    string
		bestLen = -1
	)
	for _, sec := range strings.Split(text, "\n\n") {
		if l := runeLen(sec); l > bestLen {
			best, bestLen = sec, l
		}
	}
	return c.classifier.Classify(best)
}

func qualityScore(text string, sentences int, hasTitle bool, cfg Config) float64 {
	score := 0.5
	length := runeLen(text)

	if length >= cfg.MinChunkSize && length <= cfg.TargetSize {
		score += 0.2
	}
	if length > cfg.mergeLimit() {
		score -= 0.1
	}

	switch {
	case sentences >= 2:
		score += 0.2
	case sentences == 0:
		score -= 0.2
	}

	if hasTitle {
		score += 0.1
	}
	if endsOnTerminator(text) {
		score += 0.1
	}

	if words := strings.Fields(strings.ToLower(text)); len(words) > 0 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < 0.3 {
			score -= 0.2
		}
	}

	return min(max(score, 0), 1)
}

func endsOnTerminator(text string) bool {
	t := strings.TrimRight(text, " \n\"')]")
	return t != "" && isTerminator(t[len(t)-1])
}
