package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"code.sajari.com/docconv"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

var _ core.BoilerplateRemover = DocconvRemover{}

// DocconvRemover implements core.BoilerplateRemover on top of docconv.
// FavorPrecision runs the justext readability filter over the raw page;
// otherwise the whole body is cleaned and converted to text. Both passes
// work on the bytes in memory, so the external tidy binary is never needed.
// docconv emits plain text: links and images never survive.
type DocconvRemover struct{}

var readabilityOnce sync.Once

// configureReadability installs the docd defaults unless the process has
// already set its own.
func configureReadability() {
	readabilityOnce.Do(func() {
		if docconv.HTMLReadabilityOptionsValues.ReadabilityUseClasses != "" {
			return
		}
		docconv.HTMLReadabilityOptionsValues = docconv.HTMLReadabilityOptions{
			LengthLow:             70,
			LengthHigh:            200,
			StopwordsLow:          0.2,
			StopwordsHigh:         0.3,
			MaxLinkDensity:        0.2,
			MaxHeadingDistance:    200,
			ReadabilityUseClasses: "good,neargood",
		}
	})
}

func (DocconvRemover) ExtractMain(ctx context.Context, page []byte, opts core.ExtractOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cleaned, err := cleanBody(page, opts.IncludeTables)
	if err != nil {
		return "", fmt.Errorf("clean html: %w", err)
	}

	var text string
	if opts.FavorPrecision {
		configureReadability()
		text = string(docconv.HTMLReadability(bytes.NewReader(cleaned)))
	} else {
		text = docconv.HTMLToText(bytes.NewReader(cleaned))
	}

	text = tidyLines(text)
	if opts.Deduplicate {
		text = DedupeBlocks(text)
	}
	return strings.TrimSpace(text), nil
}

// Elements whose content is never page text.
var junkElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Math: true, atom.Iframe: true, atom.Object: true, atom.Canvas: true,
	atom.Head: true, atom.Select: true, atom.Button: true, atom.Form: true,
	atom.Img: true, atom.Picture: true, atom.Video: true, atom.Audio: true,
}

var tableElements = map[atom.Atom]bool{atom.Table: true, atom.Caption: true}

// Elements followed by a line break in the cleaned markup. docconv only
// breaks on p, br and h1-h4.
var blockElements = map[atom.Atom]bool{
	atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Header: true, atom.Footer: true, atom.Aside: true, atom.Nav: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Tr: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
	atom.H5: true, atom.H6: true, atom.Figcaption: true, atom.Hr: true,
}

// cleanBody parses page with the forgiving HTML5 parser and re-renders the
// body as attribute-free, well-formed markup that both justext and docconv's
// XML reader accept.
func cleanBody(page []byte, includeTables bool) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("<html><body>")
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(html.EscapeString(n.Data))
			return
		case html.ElementNode:
			if junkElements[n.DataAtom] || (!includeTables && tableElements[n.DataAtom]) {
				return
			}
			if n.DataAtom == atom.Body || n.DataAtom == atom.Html {
				break
			}
			name := n.DataAtom.String()
			if name == "" {
				// Unknown or namespaced tags: keep the text, drop the tag.
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				return
			}
			if n.FirstChild == nil {
				buf.WriteString("<" + name + "/>")
			} else {
				buf.WriteString("<" + name + ">")
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				buf.WriteString("</" + name + ">")
			}
			switch {
			case blockElements[n.DataAtom]:
				buf.WriteString("\n")
			case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
				buf.WriteString(" ")
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	buf.WriteString("</body></html>")
	return buf.Bytes(), nil
}

// tidyLines collapses intra-line whitespace and runs of blank lines.
func tidyLines(text string) string {
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
		out = append(out, line)
		blank = false
	}
	return strings.Join(out, "\n")
}

// DedupeBlocks drops repeated non-blank lines, keeping the first occurrence.
func DedupeBlocks(text string) string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0]
	for _, line := range lines {
		key := strings.TrimSpace(line)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
