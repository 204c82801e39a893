package interfaces

import (
	"context"

	"github.com/orange-taco/ainsight-backend/internal/models"
)

// GitHubClient provides the two GitHub API surfaces the pipeline consumes.
type GitHubClient interface {
	// SearchRepositories runs a repository search and follows pagination
	// until the API stops returning pages (search caps at 1000 results).
	SearchRepositories(ctx context.Context, query string) ([]*models.RepoSnapshot, error)

	// GetReadme fetches and decodes a repository's README.
	// A repository without a README returns found=false with a nil error.
	GetReadme(ctx context.Context, fullName string) (content string, found bool, err error)
}

// GeminiClient provides access to the Gemini LLM API
type GeminiClient interface {
	// GenerateContent sends a prompt and returns the response text
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
