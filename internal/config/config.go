package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/markdave123-py/contexta-ingest/internal/core/chunker"
	"github.com/markdave123-py/contexta-ingest/internal/core/embedding"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

// Embedding providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SslCertPath    string `envconfig:"SSL_CERT_PATH"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`

	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Embeddings
	EmbedProvider       string  `envconfig:"EMBED_PROVIDER" default:"gemini"`
	GeminiAPIKey        string  `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbedModel          string  `envconfig:"EMBED_MODEL"`
	EmbedDim            int     `envconfig:"EMBED_DIM" default:"768"`
	EmbedBatchSize      int     `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	EmbedRPS            float64 `envconfig:"EMBED_RPS" default:"0"`
	EmbedMaxInputTokens int     `envconfig:"EMBED_MAX_INPUT_TOKENS" default:"2048"`

	// Chunking
	ChunkTargetSize        int  `envconfig:"CHUNK_TARGET_SIZE" default:"1000"`
	ChunkOverlap           int  `envconfig:"CHUNK_OVERLAP" default:"200"`
	ChunkMinSize           int  `envconfig:"CHUNK_MIN_SIZE" default:"100"`
	ChunkPreserveStructure bool `envconfig:"CHUNK_PRESERVE_STRUCTURE" default:"true"`

	// Ingestion
	PersistBatchSize int `envconfig:"PERSIST_BATCH_SIZE" default:"16"`
	MinContentLength int `envconfig:"MIN_CONTENT_LENGTH" default:"50"`
	IngestWorkers    int `envconfig:"INGEST_WORKERS" default:"4"`

	// Async job statuses
	JobRetention    time.Duration `envconfig:"JOB_RETENTION" default:"1h"`
	MaxFinishedJobs int           `envconfig:"MAX_FINISHED_JOBS" default:"1000"`

	// Fetching
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchMaxRetries  int           `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	FetchBackoffUnit time.Duration `envconfig:"FETCH_BACKOFF_UNIT" default:"1s"`
	FetchMaxBodyMB   int64         `envconfig:"FETCH_MAX_BODY_MB" default:"50"`
	FetchUserAgent   string        `envconfig:"FETCH_USER_AGENT"`

	// Source archive; an empty bucket disables it.
	AwsRegion    string `envconfig:"AWS_REGION" default:"us-east-2"`
	AwsAccessKey string `envconfig:"AWS_ACCESS_KEY"`
	AwsSecretKey string `envconfig:"AWS_SECRET_KEY"`
	BucketName   string `envconfig:"BUCKET_NAME"`
	AwsEndpoint  string `envconfig:"AWS_ENDPOINT"` // S3-compatible stores such as MinIO

	// Queue
	EnableNSQWorker bool   `envconfig:"ENABLE_NSQ_WORKER" default:"false"`
	NSQLookupd      string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQD            string `envconfig:"NSQD_ADDRESS" default:"nsqd:4150"` // producer side, used by ingestctl enqueue
	NSQTopic        string `envconfig:"NSQ_TOPIC" default:"ingest.request"`
	NSQChannel      string `envconfig:"NSQ_CHANNEL" default:"ingestor"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingRequired)
	}
	switch c.EmbedProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY or OPENAI_BASE_URL", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER %q", ErrInvalid, c.EmbedProvider)
	}
	if c.EmbedDim <= 0 || c.EmbedBatchSize <= 0 || c.PersistBatchSize <= 0 || c.IngestWorkers <= 0 {
		return fmt.Errorf("%w: EMBED_DIM, EMBED_BATCH_SIZE, PERSIST_BATCH_SIZE and INGEST_WORKERS must be positive", ErrInvalid)
	}
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.EnableNSQWorker && c.NSQLookupd == "" {
		return fmt.Errorf("%w: NSQ_LOOKUPD", ErrMissingRequired)
	}
	return nil
}

func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		TargetSize:        c.ChunkTargetSize,
		OverlapSize:       c.ChunkOverlap,
		MinChunkSize:      c.ChunkMinSize,
		PreserveStructure: c.ChunkPreserveStructure,
	}
}

func (c *Config) FetcherOptions() fetcher.Options {
	opts := fetcher.DefaultOptions()
	opts.Timeout = c.FetchTimeout
	opts.MaxRetries = c.FetchMaxRetries
	opts.BackoffUnit = c.FetchBackoffUnit
	opts.MaxBodyBytes = c.FetchMaxBodyMB << 20
	if c.FetchUserAgent != "" {
		opts.UserAgent = c.FetchUserAgent
	}
	return opts
}

func (c *Config) EmbeddingOptions() embedding.Options {
	return embedding.Options{
		BatchSize:         c.EmbedBatchSize,
		MaxInputTokens:    c.EmbedMaxInputTokens,
		RequestsPerSecond: c.EmbedRPS,
	}
}

// ArchiveEnabled reports whether raw sources are archived to S3.
func (c *Config) ArchiveEnabled() bool { return c.BucketName != "" }
