package app

import (
	"context"
	"strings"
	"testing"

	"github.com/orange-taco/ainsight-backend/internal/common"
)

func testApp(mutate func(*common.Config)) *App {
	config := common.NewDefaultConfig()
	if mutate != nil {
		mutate(config)
	}
	return &App{
		Stage:  "search",
		Config: config,
		Logger: common.NewSilentLogger(),
	}
}

// --- Tests ---

func TestResolveConfigPath_ExplicitPathWins(t *testing.T) {
	t.Setenv("AINSIGHT_CONFIG", "/etc/ainsight/from-env.toml")

	got := resolveConfigPath("/opt/custom.toml")
	if got != "/opt/custom.toml" {
		t.Errorf("resolveConfigPath = %q, want explicit path", got)
	}
}

func TestResolveConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("AINSIGHT_CONFIG", "/etc/ainsight/from-env.toml")

	got := resolveConfigPath("")
	if got != "/etc/ainsight/from-env.toml" {
		t.Errorf("resolveConfigPath = %q, want env path", got)
	}
}

func TestResolveConfigPath_FallsBackToWorkingDir(t *testing.T) {
	t.Setenv("AINSIGHT_CONFIG", "")

	// The test binary's directory has no ainsight.toml, so resolution
	// lands on the working-directory fallback.
	got := resolveConfigPath("")
	if got != "ainsight.toml" {
		t.Errorf("resolveConfigPath = %q, want ainsight.toml", got)
	}
}

func TestGitHubClient_TokenAuth(t *testing.T) {
	a := testApp(func(c *common.Config) {
		c.GitHub.Tokens = []string{"ghp_one", "ghp_two"}
		c.Pipeline.WorkerID = 2
	})

	client, err := a.GitHubClient()
	if err != nil {
		t.Fatalf("GitHubClient failed: %v", err)
	}
	if client == nil {
		t.Fatal("GitHubClient returned nil client")
	}
}

func TestGitHubClient_NoTokenStillBuilds(t *testing.T) {
	a := testApp(func(c *common.Config) {
		c.GitHub.Tokens = nil
		c.Pipeline.WorkerID = 1
	})

	client, err := a.GitHubClient()
	if err != nil {
		t.Fatalf("GitHubClient failed: %v", err)
	}
	if client == nil {
		t.Fatal("GitHubClient returned nil client")
	}
}

func TestGitHubClient_AppAuthFailsWithoutKeyFile(t *testing.T) {
	a := testApp(func(c *common.Config) {
		c.GitHub.Tokens = nil
		c.GitHub.AppID = 12345
		c.GitHub.InstallationID = 678
		c.GitHub.PrivateKeyPath = "/nonexistent/app-key.pem"
	})

	_, err := a.GitHubClient()
	if err == nil {
		t.Fatal("expected error for missing private key file")
	}
	if !strings.Contains(err.Error(), "failed to configure GitHub App auth") {
		t.Errorf("error = %v, want App auth failure", err)
	}
}

func TestGeminiClient_RequiresAPIKey(t *testing.T) {
	a := testApp(func(c *common.Config) {
		c.Gemini.APIKey = ""
	})

	_, err := a.GeminiClient(context.Background())
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error = %v, want api_key requirement", err)
	}
}
