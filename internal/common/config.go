package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Catalog     CatalogConfig    `toml:"catalog"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	PDF         PDFConfig        `toml:"pdf"`
	LLM         LLMConfig        `toml:"llm"`
	Vault       VaultConfig      `toml:"vault"`
	Workers     WorkersConfig    `toml:"workers"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
	Retry       RetryConfig      `toml:"retry"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port      int    `toml:"port"`
	Host      string `toml:"host"`
	AuthToken string `toml:"auth_token"` // bearer token for the ingress API; empty disables the check
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig configures the graph store database
type SQLiteConfig struct {
	Path string `toml:"path" validate:"required"` // Database file path (DB_URL)
}

// BadgerConfig configures the PDF blob cache
type BadgerConfig struct {
	Path    string `toml:"path"`    // Cache directory path; empty disables the cache
	Enabled bool   `toml:"enabled"` // Cache fetched PDFs by content hash
}

type QueueConfig struct {
	Path              string `toml:"path"`               // Broker database path (QUEUE_URL); empty shares the graph store file
	PollInterval      string `toml:"poll_interval"`      // e.g. "2s" - worker poll cadence when the broker is quiet
	Lease             string `toml:"lease"`              // e.g. "30m" - running items older than this are reclaimed
	Retention         string `toml:"retention"`          // e.g. "720h" - terminal rows older than this are purged
	BrokerEnabled     bool   `toml:"broker_enabled"`     // goqite wake-up hints; the table stays authoritative
	VisibilityTimeout string `toml:"visibility_timeout"` // broker message visibility, e.g. "10s"
}

// CatalogConfig configures the bibliographic catalog client
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url" validate:"required,url"`
	APIKey            string  `toml:"api_key"` // CATALOG_API_KEY
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	Timeout           string  `toml:"timeout"`        // per-request timeout, e.g. "30s"
	NeighborLimit     int     `toml:"neighbor_limit"` // per-call citations/references page size
}

type CrawlerConfig struct {
	MaxDepth           int    `toml:"max_depth" validate:"min=0"` // MAX_CRAWL_DEPTH
	DelaySeconds       int    `toml:"delay_seconds"`              // CRAWL_DELAY_SECONDS - min interval between catalog calls per worker
	StalenessWindow    string `toml:"staleness_window"`           // completed crawls younger than this are reused, e.g. "168h"
	FollowupReferences int    `toml:"followup_references"`        // max placeholder references re-enqueued by generate
}

type PDFConfig struct {
	MaxBodySize  int64  `toml:"max_body_size"` // bytes; larger downloads are rejected
	MaxRedirects int    `toml:"max_redirects"`
	Timeout      string `toml:"timeout"`
	MinTextChars int    `toml:"min_text_chars"` // extracted text shorter than this is a failure
}

// LLMConfig selects and configures the summarizer provider
type LLMConfig struct {
	Provider    string  `toml:"provider" validate:"oneof=openai anthropic gemini"` // AI_PROVIDER
	Model       string  `toml:"model"`                                             // AI_MODEL
	APIKey      string  `toml:"api_key"`                                           // LLM_API_KEY
	MaxTokens   int     `toml:"max_tokens"`                                        // AI_MAX_TOKENS
	Temperature float32 `toml:"temperature"`                                       // AI_TEMPERATURE
	Timeout     string  `toml:"timeout"`
}

type VaultConfig struct {
	Path string `toml:"path" validate:"required"` // VAULT_PATH
}

type WorkersConfig struct {
	CrawlConcurrency     int `toml:"crawl_concurrency"`     // WORKER_CONCURRENCY_CRAWL
	SummarizeConcurrency int `toml:"summarize_concurrency"` // WORKER_CONCURRENCY_SUMMARIZE
	GenerateConcurrency  int `toml:"generate_concurrency"`  // WORKER_CONCURRENCY_GENERATE

	// Soft per-job deadlines; hard-limit death is covered by queue reclaim
	CrawlTimeout     string `toml:"crawl_timeout"`
	SummarizeTimeout string `toml:"summarize_timeout"`
	GenerateTimeout  string `toml:"generate_timeout"`
}

type DispatcherConfig struct {
	Enabled         bool   `toml:"enabled"`
	PendingSchedule string `toml:"pending_schedule"` // cron spec for pending-paper sweeps
	ReclaimSchedule string `toml:"reclaim_schedule"` // cron spec for stale-job reclaim
	PurgeSchedule   string `toml:"purge_schedule"`   // cron spec for terminal-row purge
	StatsSchedule   string `toml:"stats_schedule"`   // cron spec for aggregate stats recompute
	PendingLimit    int    `toml:"pending_limit"`    // max papers repaired per sweep per stage
}

// RetryConfig is the explicit retry policy applied to catalog and LLM calls
type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts"` // RETRY_MAX
	BackoffBase string `toml:"backoff_base"` // BACKOFF_BASE_MS, e.g. "500ms"
	BackoffMax  string `toml:"backoff_max"`  // BACKOFF_MAX_MS, e.g. "30s"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns the configuration defaults applied before any
// file or environment override.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{Path: "./data/refnet.db"},
			Badger: BadgerConfig{Path: "./data/pdfcache", Enabled: true},
		},
		Queue: QueueConfig{
			PollInterval:      "2s",
			Lease:             "30m",
			Retention:         "720h",
			BrokerEnabled:     true,
			VisibilityTimeout: "10s",
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://api.semanticscholar.org/graph/v1",
			RequestsPerSecond: 1.0,
			Burst:             2,
			Timeout:           "30s",
			NeighborLimit:     100,
		},
		Crawler: CrawlerConfig{
			MaxDepth:           2,
			DelaySeconds:       1,
			StalenessWindow:    "168h",
			FollowupReferences: 5,
		},
		PDF: PDFConfig{
			MaxBodySize:  50 * 1024 * 1024,
			MaxRedirects: 5,
			Timeout:      "120s",
			MinTextChars: 100,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			MaxTokens:   1024,
			Temperature: 0.3,
			Timeout:     "120s",
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Workers: WorkersConfig{
			CrawlConcurrency:     4,
			SummarizeConcurrency: 2,
			GenerateConcurrency:  4,
			CrawlTimeout:         "55m",
			SummarizeTimeout:     "25m",
			GenerateTimeout:      "9m",
		},
		Dispatcher: DispatcherConfig{
			Enabled:         true,
			PendingSchedule: "@every 1m",
			ReclaimSchedule: "@every 5m",
			PurgeSchedule:   "@every 12h",
			StatsSchedule:   "@every 10m",
			PendingLimit:    100,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffBase: "500ms",
			BackoffMax:  "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with layered precedence:
// defaults -> file1 -> file2 -> ... -> environment. Later files override
// earlier ones; environment variables override everything.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration with struct tags plus cross-field rules.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, spec := range map[string]string{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.lease":              c.Queue.Lease,
		"queue.retention":          c.Queue.Retention,
		"catalog.timeout":          c.Catalog.Timeout,
		"crawler.staleness_window": c.Crawler.StalenessWindow,
		"pdf.timeout":              c.PDF.Timeout,
		"llm.timeout":              c.LLM.Timeout,
		"retry.backoff_base":       c.Retry.BackoffBase,
		"retry.backoff_max":        c.Retry.BackoffMax,
	} {
		if _, err := time.ParseDuration(spec); err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", name, spec, err)
		}
	}

	return nil
}

// Duration parses a config duration that has already passed validation.
func Duration(spec string) time.Duration {
	d, _ := time.ParseDuration(spec)
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REFNET_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("REFNET_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REFNET_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if token := os.Getenv("REFNET_AUTH_TOKEN"); token != "" {
		config.Server.AuthToken = token
	}

	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		config.Storage.SQLite.Path = dbURL
	}
	if queueURL := os.Getenv("QUEUE_URL"); queueURL != "" {
		config.Queue.Path = queueURL
	}
	if vaultPath := os.Getenv("VAULT_PATH"); vaultPath != "" {
		config.Vault.Path = vaultPath
	}

	if depth := os.Getenv("MAX_CRAWL_DEPTH"); depth != "" {
		if d, err := strconv.Atoi(depth); err == nil {
			config.Crawler.MaxDepth = d
		}
	}
	if delay := os.Getenv("CRAWL_DELAY_SECONDS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			config.Crawler.DelaySeconds = d
		}
	}

	if apiKey := os.Getenv("CATALOG_API_KEY"); apiKey != "" {
		config.Catalog.APIKey = apiKey
	}

	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.LLM.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if maxTokens := os.Getenv("AI_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.LLM.MaxTokens = mt
		}
	}
	if temp := os.Getenv("AI_TEMPERATURE"); temp != "" {
		if t, err := strconv.ParseFloat(temp, 32); err == nil {
			config.LLM.Temperature = float32(t)
		}
	}
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}

	if c := os.Getenv("WORKER_CONCURRENCY_CRAWL"); c != "" {
		if n, err := strconv.Atoi(c); err == nil {
			config.Workers.CrawlConcurrency = n
		}
	}
	if c := os.Getenv("WORKER_CONCURRENCY_SUMMARIZE"); c != "" {
		if n, err := strconv.Atoi(c); err == nil {
			config.Workers.SummarizeConcurrency = n
		}
	}
	if c := os.Getenv("WORKER_CONCURRENCY_GENERATE"); c != "" {
		if n, err := strconv.Atoi(c); err == nil {
			config.Workers.GenerateConcurrency = n
		}
	}

	if max := os.Getenv("RETRY_MAX"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			config.Retry.MaxAttempts = n
		}
	}
	if base := os.Getenv("BACKOFF_BASE_MS"); base != "" {
		if ms, err := strconv.Atoi(base); err == nil {
			config.Retry.BackoffBase = fmt.Sprintf("%dms", ms)
		}
	}
	if max := os.Getenv("BACKOFF_MAX_MS"); max != "" {
		if ms, err := strconv.Atoi(max); err == nil {
			config.Retry.BackoffMax = fmt.Sprintf("%dms", ms)
		}
	}

	if level := os.Getenv("REFNET_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("REFNET_LOG_OUTPUT"); output != "" {
		parts := strings.Split(output, ",")
		outputs := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
