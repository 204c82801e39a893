package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the ainsight pipeline
type Config struct {
	Environment string         `toml:"environment"`
	Storage     StorageConfig  `toml:"storage"`
	GitHub      GitHubConfig   `toml:"github"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Search      SearchConfig   `toml:"search"`
	Readme      ReadmeConfig   `toml:"readme"`
	Classify    ClassifyConfig `toml:"classify"`
	Logging     LoggingConfig  `toml:"logging"`
}

// StorageConfig holds SurrealDB connection configuration
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// GitHubConfig holds GitHub API configuration. Tokens are indexed by
// worker id so parallel README workers can each ride their own rate limit;
// when the token list is empty and an app id is set, App installation
// auth is used instead.
type GitHubConfig struct {
	Tokens         []string `toml:"tokens"`
	AppID          int64    `toml:"app_id"`
	InstallationID int64    `toml:"installation_id"`
	PrivateKeyPath string   `toml:"private_key_path"`
	RateLimit      int      `toml:"rate_limit"` // requests per minute
	Timeout        string   `toml:"timeout"`
}

// GetTimeout parses and returns the per-request timeout
func (c *GitHubConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TokenForWorker returns the token assigned to a worker id (1-based).
// The list wraps when there are more workers than tokens.
func (c *GitHubConfig) TokenForWorker(workerID int) string {
	if len(c.Tokens) == 0 || workerID < 1 {
		return ""
	}
	return c.Tokens[(workerID-1)%len(c.Tokens)]
}

// UseAppAuth reports whether GitHub App installation auth should be used.
func (c *GitHubConfig) UseAppAuth() bool {
	return len(c.Tokens) == 0 && c.AppID > 0 && c.PrivateKeyPath != ""
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// PipelineConfig holds settings shared by every stage worker
type PipelineConfig struct {
	Version         string `toml:"version"`
	WorkerID        int    `toml:"worker_id"`
	TotalWorkers    int    `toml:"total_workers"`
	MaxAttempts     int    `toml:"max_attempts"`
	PollInterval    string `toml:"poll_interval"`
	AutoExit        bool   `toml:"auto_exit"`
	StartupGrace    int    `toml:"startup_grace"`
	MonitorInterval string `toml:"monitor_interval"`
}

// GetPollInterval parses and returns the idle poll interval
func (c *PipelineConfig) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetMonitorInterval parses and returns the status monitor interval.
// Zero disables the monitor.
func (c *PipelineConfig) GetMonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.MonitorInterval)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// SearchConfig holds the search stage backfill parameters
type SearchConfig struct {
	BucketPrefix  string `toml:"bucket_prefix"`
	QueryTemplate string `toml:"query_template"`
	StartDate     string `toml:"start_date"`
	EndDate       string `toml:"end_date"`
	WindowDays    int    `toml:"window_days"`
}

// ReadmeConfig holds the README stage parameters
type ReadmeConfig struct {
	BatchSize int `toml:"batch_size"`
}

// ClassifyConfig holds the classify stage parameters
type ClassifyConfig struct {
	BatchSize int `toml:"batch_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Namespace: "ainsight",
			Database:  "ainsight",
			Username:  "root",
			Password:  "root",
		},
		GitHub: GitHubConfig{
			RateLimit: 30,
			Timeout:   "30s",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Pipeline: PipelineConfig{
			Version:         "v1",
			WorkerID:        1,
			TotalWorkers:    1,
			MaxAttempts:     3,
			PollInterval:    "5s",
			AutoExit:        false,
			StartupGrace:    5,
			MonitorInterval: "10m",
		},
		Search: SearchConfig{
			BucketPrefix:  "github",
			QueryTemplate: "stars:>100 created:{from_date}..{to_date}",
			StartDate:     "2020-01-01",
			EndDate:       "2020-12-31",
			WindowDays:    6,
		},
		Readme: ReadmeConfig{
			BatchSize: 10000,
		},
		Classify: ClassifyConfig{
			BatchSize: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AINSIGHT_ENV"); env != "" {
		config.Environment = env
	}

	if v := os.Getenv("AINSIGHT_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("AINSIGHT_STORAGE_NAMESPACE"); v != "" {
		config.Storage.Namespace = v
	}
	if v := os.Getenv("AINSIGHT_STORAGE_DATABASE"); v != "" {
		config.Storage.Database = v
	}
	if v := os.Getenv("AINSIGHT_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("AINSIGHT_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// A single GITHUB_TOKEN replaces the token table (every worker shares it)
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		config.GitHub.Tokens = []string{v}
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}

	if v := os.Getenv("WORKER_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Pipeline.WorkerID = n
		}
	}
	if v := os.Getenv("TOTAL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Pipeline.TotalWorkers = n
		}
	}
	if v := os.Getenv("PIPELINE_VERSION"); v != "" {
		config.Pipeline.Version = v
	}
	if v := os.Getenv("AUTO_EXIT"); v != "" {
		config.Pipeline.AutoExit = v == "true" || v == "1"
	}

	if v := os.Getenv("BUCKET_PREFIX"); v != "" {
		config.Search.BucketPrefix = v
	}
	if v := os.Getenv("QUERY_TEMPLATE"); v != "" {
		config.Search.QueryTemplate = v
	}
	if v := os.Getenv("START_DATE"); v != "" {
		config.Search.StartDate = v
	}
	if v := os.Getenv("END_DATE"); v != "" {
		config.Search.EndDate = v
	}
	if v := os.Getenv("WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Search.WindowDays = n
		}
	}

	if level := os.Getenv("AINSIGHT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate checks invariants that must hold before any stage starts.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.TotalWorkers < 1 {
		return fmt.Errorf("invalid pipeline config: total_workers must be >= 1, got %d", p.TotalWorkers)
	}
	if p.WorkerID < 1 || p.WorkerID > p.TotalWorkers {
		return fmt.Errorf("invalid pipeline config: worker_id must be in [1, %d], got %d", p.TotalWorkers, p.WorkerID)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("invalid pipeline config: max_attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if c.Search.WindowDays < 0 {
		return fmt.Errorf("invalid search config: window_days must be >= 0, got %d", c.Search.WindowDays)
	}
	for _, d := range []struct{ name, value string }{
		{"start_date", c.Search.StartDate},
		{"end_date", c.Search.EndDate},
	} {
		if _, err := time.Parse("2006-01-02", d.value); err != nil {
			return fmt.Errorf("invalid search config: %s %q is not YYYY-MM-DD", d.name, d.value)
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
