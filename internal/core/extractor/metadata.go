package extractor

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// metaKeys maps <meta> name/property values to metadata keys. The first
// non-empty value for a key wins.
var metaKeys = map[string]string{
	"description":            "description",
	"og:description":         "description",
	"author":                 "author",
	"article:author":         "author",
	"og:site_name":           "sitename",
	"article:published_time": "date",
	"date":                   "date",
	"og:title":               "title",
}

// ReadHTMLMetadata collects title, author, description, sitename and date
// from a page head. The url key is always set.
func ReadHTMLMetadata(page []byte, pageURL string) map[string]string {
	meta := map[string]string{"url": pageURL}
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return meta
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			case "meta":
				readMeta(n, meta)
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if title != "" {
		meta["title"] = title
	}
	return meta
}

func readMeta(n *html.Node, meta map[string]string) {
	var name, content string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name", "property":
			if name == "" {
				name = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	key, ok := metaKeys[name]
	if !ok || content == "" {
		return
	}
	if _, set := meta[key]; !set {
		meta[key] = content
	}
}
