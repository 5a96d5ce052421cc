package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

const defaultIngestTimeout = 10 * time.Minute

// Ingester runs one synchronous ingestion.
type Ingester interface {
	Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResult, error)
}

// IngestConsumer handles messages from the ingest topic. Malformed messages
// and permanent failures are acknowledged; transient failures are returned
// so NSQ requeues the message.
type IngestConsumer struct {
	ingester Ingester
	timeout  time.Duration
	logger   *slog.Logger
}

func NewIngestConsumer(ing Ingester, timeout time.Duration, l *slog.Logger) *IngestConsumer {
	if timeout <= 0 {
		timeout = defaultIngestTimeout
	}
	return &IngestConsumer{ingester: ing, timeout: timeout, logger: logger.WithComponent(l, "ingest_consumer")}
}

func (c *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		c.logger.Error("poison pill: invalid json", "error", err)
		return nil
	}

	id := payload.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	ctx := logger.WithRequestID(context.Background(), id)

	req, err := payload.Request()
	if err != nil {
		c.logger.WarnContext(ctx, "dropping invalid ingest request", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.ingester.Ingest(ctx, req)
	if err != nil {
		if permanent(err) {
			c.logger.WarnContext(ctx, "ingest request failed permanently", "attempts", m.Attempts, "error", err)
			return nil
		}
		c.logger.ErrorContext(ctx, "ingest request failed, requeueing", "attempts", m.Attempts, "error", err)
		return err
	}

	c.logger.InfoContext(ctx, "ingest request done",
		"document_id", res.Document.ID, "chunks", res.ChunkCount, "duplicate", res.Duplicate)
	return nil
}

// permanent reports failures a retry cannot fix.
func permanent(err error) bool {
	var ingErr *core.IngestionError
	if !errors.As(err, &ingErr) {
		return false
	}
	switch ingErr.Kind {
	case core.KindInvalidSource, core.KindExtraction, core.KindChunking:
		return true
	}
	return false
}

// ConsumerConfig locates the topic to consume.
type ConsumerConfig struct {
	Lookupd     string
	Topic       string
	Channel     string
	MaxInFlight int
}

// Run consumes until ctx is done, then stops the consumer and waits for
// in-flight messages.
func (c *IngestConsumer) Run(ctx context.Context, cfg ConsumerConfig) error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = max(cfg.MaxInFlight, 1)
	// Leave room for a slow provider before NSQ redelivers.
	nsqCfg.MsgTimeout = c.timeout + time.Minute

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return fmt.Errorf("create nsq consumer: %w", err)
	}
	consumer.SetLogger(nsqLogger{c.logger}, nsq.LogLevelWarning)
	consumer.AddConcurrentHandlers(c, nsqCfg.MaxInFlight)

	if err := consumer.ConnectToNSQLookupd(cfg.Lookupd); err != nil {
		return fmt.Errorf("connect to nsqlookupd %s: %w", cfg.Lookupd, err)
	}
	c.logger.Info("nsq consumer connected", "topic", cfg.Topic, "channel", cfg.Channel)

	<-ctx.Done()
	consumer.Stop()
	<-consumer.StopChan
	return nil
}

// nsqLogger routes go-nsq's log lines into slog.
type nsqLogger struct {
	l *slog.Logger
}

func (n nsqLogger) Output(_ int, s string) error {
	n.l.Info(s, "source", "nsq")
	return nil
}
