package worker

import (
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// IngestPayload is the message body published on the ingest topic.
type IngestPayload struct {
	RequestID string            `json:"request_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	Type      string            `json:"type"`
	Content   string            `json:"content,omitempty"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Request converts the payload into a validated ingestion request.
func (p IngestPayload) Request() (models.IngestRequest, error) {
	kind, err := models.ParseSourceKind(p.Type)
	if err != nil {
		return models.IngestRequest{}, err
	}
	req := models.IngestRequest{
		Title:    p.Title,
		Source:   models.SourceDescriptor{Kind: kind, Content: p.Content, URL: p.URL},
		Metadata: p.Metadata,
	}
	if err := req.Source.Validate(); err != nil {
		return models.IngestRequest{}, err
	}
	return req, nil
}
