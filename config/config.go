package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a required API key is not set.
var ErrMissingCredential = errors.New("missing required credential")

// Config holds all configuration for the assistant.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Agent     AgentConfig     `yaml:"agent"`
	News      NewsConfig      `yaml:"news"`
	FMP       FMPConfig       `yaml:"fmp"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the OpenAI-compatible chat model.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	Model       string        `yaml:"model" validate:"required"`
	APIKeyEnv   string        `yaml:"api_key_env" validate:"required"` // Environment variable for API key
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`

	APIKey string `yaml:"-"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	Model     string        `yaml:"model" validate:"required"` // e.g., "text-embedding-3-small"
	APIKeyEnv string        `yaml:"api_key_env" validate:"required"`
	BatchSize int           `yaml:"batch_size" validate:"gte=1,lte=2048"`
	CacheSize int           `yaml:"cache_size" validate:"gte=0"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`

	APIKey string `yaml:"-"`
}

// CrawlConfig controls how the knowledge base site is scraped.
type CrawlConfig struct {
	SitemapURL  string        `yaml:"sitemap_url" validate:"required,url"`
	UserAgent   string        `yaml:"user_agent" validate:"required"`
	Includes    []string      `yaml:"includes"` // doublestar patterns matched against the URL path
	Excludes    []string      `yaml:"excludes"`
	MaxPages    int           `yaml:"max_pages" validate:"gte=0"` // 0 = no limit
	Concurrency int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	RateLimit   float64       `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 = unlimited
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxPageSize int64         `yaml:"max_page_bytes" validate:"gt=0"`
}

// IndexConfig holds chunking configuration. Sizes are counted in characters (runes).
type IndexConfig struct {
	ChunkSize    int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k" validate:"gte=1"`
	CacheSize int           `yaml:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// AgentConfig bounds the routing agent loop and the context it sends.
type AgentConfig struct {
	MaxIterations      int  `yaml:"max_iterations" validate:"gte=1,lte=50"`
	HistoryWindow      int  `yaml:"history_window" validate:"gte=0"` // turns replayed to the model, 0 = all
	MaxToolOutputChars int  `yaml:"max_tool_output_chars" validate:"gte=0"`
	Parallel           bool `yaml:"parallel_tools"`
}

// NewsConfig configures the Yahoo Finance news lookup.
type NewsConfig struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	UserAgent string        `yaml:"user_agent" validate:"required"`
	Count     int           `yaml:"count" validate:"gte=1,lte=50"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
}

// FMPConfig configures the Financial Modeling Prep client.
type FMPConfig struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	APIKeyEnv string        `yaml:"api_key_env" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`

	APIKey string `yaml:"-"`
}

// ServerConfig holds HTTP server settings for "finbot serve".
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=0,lte=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0,
			MaxTokens:   0,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 100,
			CacheSize: 1000,
			Timeout:   60 * time.Second,
		},
		Crawl: CrawlConfig{
			SitemapURL:  "https://zerodha.com/varsity/chapter-sitemap2.xml",
			UserAgent:   "Mozilla/5.0",
			MaxPages:    0,
			Concurrency: 4,
			RateLimit:   4,
			Timeout:     30 * time.Second,
			MaxPageSize: 4 << 20,
		},
		Index: IndexConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieve: RetrieveConfig{
			TopK:      4,
			CacheSize: 100,
			CacheTTL:  5 * time.Minute,
		},
		Agent: AgentConfig{
			MaxIterations:      5,
			HistoryWindow:      20,
			MaxToolOutputChars: 8000,
			Parallel:           true,
		},
		News: NewsConfig{
			BaseURL:   "https://query2.finance.yahoo.com",
			UserAgent: "Mozilla/5.0",
			Count:     5,
			Timeout:   30 * time.Second,
		},
		FMP: FMPConfig{
			BaseURL:   "https://financialmodelingprep.com/api/v3",
			APIKeyEnv: "FMP_API_KEY",
			Timeout:   30 * time.Second,
		},
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			RequestTimeout: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for finbot.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "finbot.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".finbot", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadDotEnv loads a .env file from dir if it exists. Variables already set in the
// process environment are not overridden.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
}

// ApplyEnv overrides selected settings from the environment.
func (c *Config) ApplyEnv() {
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.Embedding.BaseURL = getEnv("OPENAI_BASE_URL", c.Embedding.BaseURL)
	c.LLM.Model = getEnv("FINBOT_MODEL", c.LLM.Model)
	c.Crawl.SitemapURL = getEnv("FINBOT_SITEMAP_URL", c.Crawl.SitemapURL)
	c.Crawl.MaxPages = getEnvAsInt("FINBOT_MAX_PAGES", c.Crawl.MaxPages)
	c.Logging.Level = getEnv("FINBOT_LOG_LEVEL", c.Logging.Level)
}

var validate = validator.New()

// Validate checks value ranges. It does not look at credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveCredentials reads the API keys named by the *_api_key_env settings.
// Both the language-model key and the financial-data key are required.
func (c *Config) ResolveCredentials() error {
	var err error
	if c.LLM.APIKey, err = requireEnv(c.LLM.APIKeyEnv); err != nil {
		return err
	}
	if c.Embedding.APIKey, err = requireEnv(c.Embedding.APIKeyEnv); err != nil {
		return err
	}
	if c.FMP.APIKey, err = requireEnv(c.FMP.APIKeyEnv); err != nil {
		return err
	}
	return nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%w: set %s in the environment or .env", ErrMissingCredential, name)
	}
	return v, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
