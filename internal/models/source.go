package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSource = errors.New("invalid source")

// SourceDescriptor is the immutable input to extraction. Exactly one
// payload field is meaningful for each Kind:
//
// SourceText: Content.
// SourcePDF:  URL (remote) or Data (local bytes).
// SourceWeb:  URL.
type SourceDescriptor struct {
	Kind    SourceKind `json:"kind"`
	Content string     `json:"content,omitempty"`
	URL     string     `json:"url,omitempty"`
	Data    []byte     `json:"-"`
	Name    string     `json:"name,omitempty"` // file name for local PDF bytes
}

func TextSource(content string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceText, Content: content}
}

func PDFURLSource(url string) SourceDescriptor {
	return SourceDescriptor{Kind: SourcePDF, URL: url}
}

func PDFBytesSource(name string, data []byte) SourceDescriptor {
	return SourceDescriptor{Kind: SourcePDF, Name: name, Data: data}
}

func WebSource(url string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceWeb, URL: url}
}

// IsRemote reports whether extraction needs a network fetch.
func (s SourceDescriptor) IsRemote() bool {
	return s.Kind != SourceText && len(s.Data) == 0
}

// Validate checks the payload matches the kind.
func (s SourceDescriptor) Validate() error {
	switch s.Kind {
	case SourceText:
		if strings.TrimSpace(s.Content) == "" {
			return fmt.Errorf("%w: content is required for text sources", ErrInvalidSource)
		}
	case SourcePDF:
		if len(s.Data) == 0 && s.URL == "" {
			return fmt.Errorf("%w: url or data is required for pdf sources", ErrInvalidSource)
		}
	case SourceWeb:
		if s.URL == "" {
			return fmt.Errorf("%w: url is required for url sources", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: unsupported source type %q", ErrInvalidSource, s.Kind)
	}
	return nil
}

// ParseSourceKind accepts the wire names used by the API and CLI.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return SourceText, nil
	case "pdf":
		return SourcePDF, nil
	case "url", "web":
		return SourceWeb, nil
	}
	return "", fmt.Errorf("%w: unsupported source type %q", ErrInvalidSource, s)
}
