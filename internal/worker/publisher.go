package worker

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

// Publisher puts ingest requests on the topic consumed by IngestConsumer.
type Publisher struct {
	producer *nsq.Producer
	topic    string
}

func NewPublisher(nsqdAddr, topic string, l *slog.Logger) (*Publisher, error) {
	producer, err := nsq.NewProducer(nsqdAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	producer.SetLogger(nsqLogger{logger.WithComponent(l, "publisher")}, nsq.LogLevelWarning)
	return &Publisher{producer: producer, topic: topic}, nil
}

func (p *Publisher) Publish(payload IngestPayload) error {
	if _, err := payload.Request(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.producer.Publish(p.topic, body); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Stop() { p.producer.Stop() }
