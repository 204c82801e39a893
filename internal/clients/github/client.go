// Package github provides a client for the GitHub REST API
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 30 // requests per minute (authenticated search allowance)

	searchPageSize = 50
	searchMaxHits  = 1000 // the search API stops serving results past this
)

// Client implements the GitHubClient interface over go-github
type Client struct {
	gh          *gogithub.Client
	logger      *common.Logger
	limiter     *rate.Limiter
	timeout     time.Duration
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	baseURL     string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the client-side request budget in requests per minute
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		if requestsPerMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTokenSource sets a token source (GitHub App installation auth)
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithHTTPClient sets the HTTP client directly, bypassing auth setup
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a different API root (tests, proxies)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new GitHub client. An empty token yields an
// unauthenticated client (useful only for tests; the API allows it a far
// smaller search budget).
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRateLimit), 1),
		timeout: DefaultTimeout,
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		if c.tokenSource == nil && token != "" {
			c.tokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		}
		if c.tokenSource != nil {
			c.httpClient = oauth2.NewClient(context.Background(), c.tokenSource)
		} else {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = c.timeout
	}

	c.gh = gogithub.NewClient(c.httpClient)
	if c.baseURL != "" {
		if u, err := url.Parse(c.baseURL); err == nil {
			c.gh.BaseURL = u
		}
	}

	return c
}

var _ interfaces.GitHubClient = (*Client)(nil)

// SearchRepositories runs a repository search sorted by stars descending and
// follows pagination until the API stops returning pages.
func (c *Client) SearchRepositories(ctx context.Context, query string) ([]*models.RepoSnapshot, error) {
	opts := &gogithub.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gogithub.ListOptions{PerPage: searchPageSize},
	}

	var snapshots []*models.RepoSnapshot
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
		if err != nil {
			return nil, translateError(err, resp)
		}

		for _, r := range result.Repositories {
			snapshots = append(snapshots, convertRepo(r))
		}

		c.logger.Debug().
			Str("query", query).
			Int("page", opts.Page).
			Int("collected", len(snapshots)).
			Int("total_count", result.GetTotal()).
			Msg("GitHub search page")

		if resp.NextPage == 0 || len(snapshots) >= searchMaxHits {
			break
		}
		opts.Page = resp.NextPage
	}

	return snapshots, nil
}

// GetReadme fetches and decodes the README for "owner/name".
// Missing READMEs are (content="", found=false, err=nil).
func (c *Client) GetReadme(ctx context.Context, fullName string) (string, bool, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return "", false, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limit wait: %w", err)
	}

	readme, resp, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, translateError(err, resp)
	}

	content, err := readme.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("failed to decode README for %s: %w", fullName, err)
	}

	return content, true, nil
}

func splitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository full name %q", fullName)
	}
	return owner, repo, nil
}

func convertRepo(r *gogithub.Repository) *models.RepoSnapshot {
	return &models.RepoSnapshot{
		RepoID:        r.GetID(),
		FullName:      r.GetFullName(),
		Name:          r.GetName(),
		Owner:         r.GetOwner().GetLogin(),
		URL:           r.GetHTMLURL(),
		Description:   r.GetDescription(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		Language:      r.GetLanguage(),
		IsFork:        r.GetFork(),
		SizeKB:        r.GetSize(),
		Topics:        r.Topics,
		License:       r.GetLicense().GetSPDXID(),
		OpenIssues:    r.GetOpenIssuesCount(),
		Watchers:      r.GetWatchersCount(),
		DefaultBranch: r.GetDefaultBranch(),
		Archived:      r.GetArchived(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		PushedAt:      r.GetPushedAt().Time,
	}
}
