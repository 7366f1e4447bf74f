package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/venator/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Queue        QueueConfig        `toml:"queue"`
	Discovery    DiscoveryConfig    `toml:"discovery"`
	Verification VerificationConfig `toml:"verification"`
	Drafts       DraftsConfig       `toml:"drafts"`
	Logging      LoggingConfig      `toml:"logging"`
	WebSocket    WebSocketConfig    `toml:"websocket"`
}

type ServerConfig struct {
	Port            int    `toml:"port"`
	Host            string `toml:"host"`
	ShutdownTimeout string `toml:"shutdown_timeout"` // e.g. "30s" - bound on worker drain at shutdown
}

type StorageConfig struct {
	Type   string       `toml:"type"` // "badger", "memory", or "fallback" (durable first, in-memory on transport failure)
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig holds transport-wide settings plus a retry/worker policy per
// named queue. Retry policy is explicit configuration, not library defaults.
type QueueConfig struct {
	PollInterval       string `toml:"poll_interval"`       // e.g. "250ms" - how often workers poll for messages
	VisibilityTimeout  string `toml:"visibility_timeout"`  // e.g. "2m" - lease window before redelivery
	SweepSchedule      string `toml:"sweep_schedule"`      // cron expression for retention sweeps
	CompletedRetention int    `toml:"completed_retention"` // bounded completed-set size per queue
	FailedRetention    int    `toml:"failed_retention"`    // bounded failed-set size per queue

	Discovery       WorkerConfig `toml:"discovery"`
	Verification    WorkerConfig `toml:"verification"`
	Enrichment      WorkerConfig `toml:"enrichment"`
	DraftGeneration WorkerConfig `toml:"draft_generation"`
}

// WorkerConfig is the per-queue worker pool size and retry policy.
type WorkerConfig struct {
	Concurrency int    `toml:"concurrency"`
	MaxAttempts int    `toml:"max_attempts"`
	BackoffBase string `toml:"backoff_base"` // e.g. "2s" - delay doubles per attempt
	BackoffKind string `toml:"backoff_kind"` // "exponential" (only kind implemented)
}

// ForQueue returns the worker config for a named queue.
func (q *QueueConfig) ForQueue(name models.QueueName) WorkerConfig {
	switch name {
	case models.QueueVerification:
		return q.Verification
	case models.QueueEnrichment:
		return q.Enrichment
	case models.QueueDraftGeneration:
		return q.DraftGeneration
	default:
		return q.Discovery
	}
}

// DefaultDiscoveryProviders is the provider set registered when config names
// none. The team-page scraper is opt-in: it makes outbound HTTP requests.
var DefaultDiscoveryProviders = []string{"pattern"}

// DiscoveryConfig controls the discovery executor and its providers.
type DiscoveryConfig struct {
	Providers      []string       `toml:"providers"`       // provider names registered at the composition root: "pattern", "teampage"
	DefaultLimit   int            `toml:"default_limit"`   // truncation when the request carries none
	RequestTimeout string         `toml:"request_timeout"` // per-provider HTTP timeout
	TeamPage       TeamPageConfig `toml:"teampage"`
}

// TeamPageConfig controls the team-page scraping provider.
type TeamPageConfig struct {
	Paths         []string `toml:"paths"`          // page paths probed on the target domain
	RateInterval  string   `toml:"rate_interval"`  // e.g. "500ms" - minimum spacing between page fetches
	MaxCandidates int      `toml:"max_candidates"` // cap on contacts extracted per page
}

// VerificationConfig selects the email verifier.
type VerificationConfig struct {
	Provider string `toml:"provider"` // "heuristic"
}

// DraftsConfig selects the draft model.
type DraftsConfig struct {
	Provider  string `toml:"provider"` // "anthropic" when an API key is configured, otherwise "template"
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// WebSocketConfig controls the job event stream.
type WebSocketConfig struct {
	ThrottleInterval string `toml:"throttle_interval"` // e.g. "250ms" - rate limit for broadcast events
}

// NewDefaultConfig returns the configuration defaults applied before any file
// or environment override.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            8085,
			Host:            "localhost",
			ShutdownTimeout: "30s",
		},
		Storage: StorageConfig{
			Type: "fallback",
			Badger: BadgerConfig{
				Path: "./data/venator",
			},
		},
		Queue: QueueConfig{
			PollInterval:       "250ms",
			VisibilityTimeout:  "2m",
			SweepSchedule:      "*/5 * * * *",
			CompletedRetention: 100,
			FailedRetention:    50,
			Discovery:          WorkerConfig{Concurrency: 2, MaxAttempts: 3, BackoffBase: "2s", BackoffKind: "exponential"},
			Verification:       WorkerConfig{Concurrency: 5, MaxAttempts: 3, BackoffBase: "1s", BackoffKind: "exponential"},
			Enrichment:         WorkerConfig{Concurrency: 3, MaxAttempts: 3, BackoffBase: "2s", BackoffKind: "exponential"},
			// Draft generation is serialized: the model endpoint is a shared resource.
			DraftGeneration: WorkerConfig{Concurrency: 1, MaxAttempts: 2, BackoffBase: "5s", BackoffKind: "exponential"},
		},
		Discovery: DiscoveryConfig{
			Providers:      DefaultDiscoveryProviders,
			DefaultLimit:   25,
			RequestTimeout: "15s",
			TeamPage: TeamPageConfig{
				Paths:         []string{"/about", "/team", "/about-us", "/contact"},
				RateInterval:  "500ms",
				MaxCandidates: 20,
			},
		},
		Verification: VerificationConfig{
			Provider: "heuristic",
		},
		Drafts: DraftsConfig{
			Provider:  "template",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: "250ms",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2
// -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VENATOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VENATOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VENATOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("VENATOR_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if st := os.Getenv("VENATOR_STORAGE_TYPE"); st != "" {
		config.Storage.Type = st
	}
	if level := os.Getenv("VENATOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if key := os.Getenv("VENATOR_ANTHROPIC_API_KEY"); key != "" {
		config.Drafts.APIKey = key
		config.Drafts.Provider = "anthropic"
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDuration parses a config duration string with a fallback default.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
