package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"OP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"OP_DB_MAX_CONNS" default:"8"`

	MapsAPIKey       string        `envconfig:"MAPS_API_KEY" default:""`
	MapsAPIToken     string        `envconfig:"MAPS_API_TOKEN" default:""`
	MapsAPIBaseURL   string        `envconfig:"MAPS_API_BASE_URL" default:"https://public-api.reviews.2gis.com/3.0"`
	SocialAPIToken   string        `envconfig:"SOCIAL_API_TOKEN" default:""`
	SocialAPIBaseURL string        `envconfig:"SOCIAL_API_BASE_URL" default:"https://api.vk.com/method"`
	MessagingToken   string        `envconfig:"MESSAGING_API_TOKEN" default:""`
	MessagingBaseURL string        `envconfig:"MESSAGING_API_BASE_URL" default:""`
	ScrapeUserAgent  string        `envconfig:"SCRAPE_USER_AGENT" default:"OpinioImporter/1.0 (+https://horse.fit/opinio)"`
	SourceCallDelay  time.Duration `envconfig:"SOURCE_CALL_DELAY" default:"1s"`
	SourceTimeout    time.Duration `envconfig:"SOURCE_TIMEOUT" default:"15s"`

	EmbeddingEndpoint string `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	SentimentEndpoint string `envconfig:"SENTIMENT_ENDPOINT" default:"http://127.0.0.1:8845/predict"`
	AspectEndpoint    string `envconfig:"ASPECT_ENDPOINT" default:"http://127.0.0.1:8846/extract"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY" default:""`

	EnrichWorkers int `envconfig:"ENRICH_WORKERS" default:"4"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("OP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("OP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("OP_DB_MIN_CONNS (%d) cannot exceed OP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SourceCallDelay < 0 {
		return fmt.Errorf("SOURCE_CALL_DELAY must be >= 0")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be > 0")
	}
	if c.EnrichWorkers < 1 {
		return fmt.Errorf("ENRICH_WORKERS must be >= 1")
	}
	return nil
}
