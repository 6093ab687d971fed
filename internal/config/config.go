package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	// API keys
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	NewsAPIKey   string `envconfig:"NEWS_API_KEY"`

	// Vector database
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Models
	EmbeddingModel       string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	LLMModel             string `envconfig:"LLM_MODEL" default:"gpt-4o"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`

	// Ingestion
	NewsAPIEndpoint      string   `envconfig:"NEWSAPI_ENDPOINT" default:"https://newsapi.org/v2/everything"`
	FetchIntervalSeconds int      `envconfig:"FETCH_INTERVAL_SECONDS" default:"120"`
	ErrorBackoffSeconds  int      `envconfig:"ERROR_BACKOFF_SECONDS" default:"30"`
	InitialFetchHours    int      `envconfig:"INITIAL_FETCH_HOURS" default:"24"`
	OngoingFetchHours    int      `envconfig:"ONGOING_FETCH_HOURS" default:"2"`
	NewsKeywords         []string `envconfig:"NEWS_KEYWORDS" default:"crypto,web3,blockchain,cryptocurrency,bitcoin"`
	RSSFeeds             []string `envconfig:"RSS_FEEDS" default:"https://www.dlnews.com/arc/outboundfeeds/rss/,https://cointelegraph.com/rss"`

	// Retrieval & streaming
	MaxRetrievalResults int `envconfig:"MAX_RETRIEVAL_RESULTS" default:"10"`
	StreamChunkSize     int `envconfig:"STREAM_CHUNK_SIZE" default:"50"`
	StreamDelayMs       int `envconfig:"STREAM_DELAY_MS" default:"100"`

	// Server
	ServerPort            int `envconfig:"SERVER_PORT" default:"8000"`
	RequestTimeoutSeconds int `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Best-effort: env vars may already be set in the shell.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
	}
	if c.NewsAPIKey == "" {
		return fmt.Errorf("%w: NEWS_API_KEY", ErrMissingRequired)
	}
	if c.FetchIntervalSeconds <= 0 {
		return fmt.Errorf("FETCH_INTERVAL_SECONDS must be positive, got %d", c.FetchIntervalSeconds)
	}
	return nil
}
