// Package app assembles the shared core a stage binary runs on: config,
// logger, storage, and the API clients. Each cmd/ainsight-* main wires its
// own stage service and worker on top.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/clients/gemini"
	"github.com/orange-taco/ainsight-backend/internal/clients/github"
	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/storage/surrealdb"
)

// App holds the initialized core shared by every stage binary.
type App struct {
	Stage       string
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: an explicit path, AINSIGHT_CONFIG,
// a file next to the binary, then the working directory for development.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("AINSIGHT_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "ainsight.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "ainsight.toml"
		}
	}
	return configPath
}

// New loads configuration, connects storage, and prints the startup banner.
// configPath may be empty, in which case the default resolution is used.
func New(stage, configPath string) (*App, error) {
	startupTime := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)
	common.PrintBanner(config, stage, logger)

	storage, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &App{
		Stage:       stage,
		Config:      config,
		Logger:      logger,
		Storage:     storage,
		StartupTime: startupTime,
	}, nil
}

// GitHubClient builds the GitHub client for this worker: its own token from
// the token table, or App installation auth when no tokens are configured.
func (a *App) GitHubClient() (interfaces.GitHubClient, error) {
	opts := []github.ClientOption{
		github.WithLogger(a.Logger),
		github.WithRateLimit(a.Config.GitHub.RateLimit),
		github.WithTimeout(a.Config.GitHub.GetTimeout()),
	}

	if a.Config.GitHub.UseAppAuth() {
		ts, err := github.AppTokenSource(a.Config.GitHub.AppID, a.Config.GitHub.InstallationID, a.Config.GitHub.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to configure GitHub App auth: %w", err)
		}
		a.Logger.Info().Int64("app_id", a.Config.GitHub.AppID).Msg("Using GitHub App installation auth")
		return github.NewClient("", append(opts, github.WithTokenSource(ts))...), nil
	}

	token := a.Config.GitHub.TokenForWorker(a.Config.Pipeline.WorkerID)
	if token == "" {
		a.Logger.Warn().Msg("No GitHub token configured; search quota will be minimal")
	}
	return github.NewClient(token, opts...), nil
}

// GeminiClient builds the classify stage's LLM client. The API key is
// required; there is no unauthenticated mode.
func (a *App) GeminiClient(ctx context.Context) (interfaces.GeminiClient, error) {
	if a.Config.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required (set GEMINI_API_KEY)")
	}
	return gemini.NewClient(ctx, a.Config.Gemini.APIKey,
		gemini.WithModel(a.Config.Gemini.Model),
		gemini.WithLogger(a.Logger),
	)
}

// Close releases the storage connection.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
