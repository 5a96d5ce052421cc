package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Chunker splits normalized text into overlapping chunks. It holds no
// mutable state and is safe for concurrent use.
type Chunker struct {
	cfg        Config
	classifier Classifier
}

type Option func(*Chunker)

// WithClassifier swaps the structural classifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Chunker) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

func New(cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{cfg: cfg, classifier: PatternClassifier{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Chunker) Config() Config { return c.cfg }

// Chunk normalizes text and splits it. Whitespace-only input yields no chunks.
// Identical input and config always produce identical output.
func (c *Chunker) Chunk(text string) []Chunk {
	n := Normalize(text)
	if strings.TrimSpace(n) == "" {
		return nil
	}

	var spans []span
	if c.cfg.PreserveStructure {
		spans = c.mergeSmall(n, c.semantic(n))
	} else {
		spans = c.window(n)
	}

	chunks := make([]Chunk, 0, len(spans))
	for _, s := range spans {
		text := n[s.start:s.end]
		chunks = append(chunks, Chunk{
			Index:    len(chunks),
			Text:     text,
			Start:    s.start,
			End:      s.end,
			Metadata: c.buildMetadata(text),
		})
	}
	return chunks
}

// semantic accumulates sections greedily up to TargetSize, seeding each new
// buffer with a sentence-aligned overlap from the chunk just closed.
func (c *Chunker) semantic(n string) []span {
	var (
		out      []span
		bufStart = -1
		bufEnd   = -1
	)
	for _, u := range c.units(n) {
		if bufStart < 0 {
			bufStart, bufEnd = u.start, u.end
			continue
		}
		if runeLen(n[bufStart:u.end]) <= c.cfg.TargetSize {
			bufEnd = u.end
			continue
		}

		out = append(out, span{bufStart, bufEnd})
		next := u.start
		if ov, ok := c.overlapStart(n, bufStart, bufEnd); ok {
			next = ov
		}
		bufStart, bufEnd = next, u.end
	}
	if bufStart >= 0 {
		out = append(out, span{bufStart, bufEnd})
	}
	return out
}

// units are the pieces the semantic mode accumulates: whole sections, except
// that prose sections longer than TargetSize are split into sentences. List
// and code sections are never split.
func (c *Chunker) units(n string) []span {
	var out []span
	for _, s := range splitSections(n) {
		if runeLen(n[s.start:s.end]) <= c.cfg.TargetSize {
			out = append(out, s)
			continue
		}
		switch c.classifier.Classify(n[s.start:s.end]) {
		case models.KindParagraph, models.KindTitle:
			out = append(out, sentenceSpans(n, s)...)
		default:
			out = append(out, s)
		}
	}
	return out
}

var sentenceBreak = regexp.MustCompile(`[.!?]+\s+`)

// overlapStart takes the last OverlapSize characters of [start, end) and
// moves forward past the first sentence break so the seed starts a sentence.
// ok is false when there is no such break.
func (c *Chunker) overlapStart(n string, start, end int) (int, bool) {
	if c.cfg.OverlapSize <= 0 {
		return 0, false
	}
	from := max(backRunes(n, end, c.cfg.OverlapSize), start)
	loc := sentenceBreak.FindStringIndex(n[from:end])
	if loc == nil || from+loc[1] >= end {
		return 0, false
	}
	return from + loc[1], true
}

// mergeSmall folds an under-sized chunk into its successor when the result
// stays within TargetSize*1.2. The last chunk has no successor and is kept.
func (c *Chunker) mergeSmall(n string, spans []span) []span {
	limit := c.cfg.mergeLimit()
	for i := 0; i < len(spans)-1; {
		cur, next := spans[i], spans[i+1]
		if runeLen(n[cur.start:cur.end]) < c.cfg.MinChunkSize && runeLen(n[cur.start:next.end]) <= limit {
			spans[i] = span{cur.start, next.end}
			spans = append(spans[:i+1], spans[i+2:]...)
			continue
		}
		i++
	}
	return spans
}

// window slides a TargetSize window, preferring to cut after a sentence
// terminator near the window end, and drops chunks below MinChunkSize.
func (c *Chunker) window(n string) []span {
	var out []span
	start := 0
	for start < len(n) {
		end := forwardRunes(n, start, c.cfg.TargetSize)
		if end < len(n) && midWord(n, end) {
			if cut := c.cutPoint(n, start, end); cut > start {
				end = cut
			}
		}

		if s := trimSpan(n, span{start, end}); s.end > s.start && runeLen(n[s.start:s.end]) >= c.cfg.MinChunkSize {
			out = append(out, s)
		}
		if end >= len(n) {
			break
		}

		next := backRunes(n, end, c.cfg.OverlapSize)
		if next <= start {
			next = end
		}
		for next < end && !isSpaceByte(n[next-1]) {
			next++
		}
		start = next
	}
	return out
}

// cutPoint finds the sentence terminator nearest to end within
// [start+TargetSize/2, end+100) that is followed by whitespace or an
// uppercase letter, falling back to the last whitespace before end.
func (c *Chunker) cutPoint(n string, start, end int) int {
	lo := forwardRunes(n, start, c.cfg.TargetSize/2)
	hi := min(end+100, len(n))

	best := -1
	for i := lo; i < hi; i++ {
		if !isTerminator(n[i]) {
			continue
		}
		j := i + 1
		for j < len(n) && isTerminator(n[j]) {
			j++
		}
		if j < len(n) {
			r, _ := utf8.DecodeRuneInString(n[j:])
			if !unicode.IsSpace(r) && !unicode.IsUpper(r) {
				i = j - 1
				continue
			}
		}
		if best < 0 || abs(j-end) < abs(best-end) {
			best = j
		}
		i = j - 1
	}
	if best > 0 {
		return best
	}
	if ws := strings.LastIndexAny(n[start:end], " \n"); ws > 0 {
		return start + ws
	}
	return -1
}

func midWord(n string, i int) bool {
	before, _ := utf8.DecodeLastRuneInString(n[:i])
	after, _ := utf8.DecodeRuneInString(n[i:])
	return !unicode.IsSpace(before) && !unicode.IsSpace(after)
}

func trimSpan(n string, s span) span {
	for s.start < s.end && isSpaceByte(n[s.start]) {
		s.start++
	}
	for s.end > s.start && isSpaceByte(n[s.end-1]) {
		s.end--
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
