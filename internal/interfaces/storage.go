// Package interfaces defines service contracts for the ainsight pipeline
package interfaces

import (
	"context"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	// Store accessors
	RepositoryStore() RepositoryStore
	SearchJobs() SearchJobQueue
	ReadmeJobs() RepoJobQueue
	ClassifyJobs() RepoJobQueue

	// Ping verifies store connectivity; stages abort at bootstrap when it fails.
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SearchJobQueue manages the stage-1 date-window job table.
type SearchJobQueue interface {
	// InsertNew creates pending jobs, skipping those whose natural key
	// (bucket, window) already exists. Re-runs are no-ops.
	InsertNew(ctx context.Context, jobs []*models.SearchJob) (*models.GenerateResult, error)

	// Claim atomically takes the oldest claimable job for this worker.
	// Returns nil when nothing is claimable.
	Claim(ctx context.Context) (*models.SearchJob, error)

	// MarkDone completes a held job, recording how many documents its
	// window mapped.
	MarkDone(ctx context.Context, jobID string, reposCount int) error

	// Release reverts a held job to pending without touching attempts
	// (graceful-shutdown path). Reports whether the job was actually held.
	Release(ctx context.Context, jobID string) (bool, error)

	// Throttle parks a held job behind a rate limit; the claim's attempt
	// increment is compensated so throttling never consumes a retry.
	Throttle(ctx context.Context, jobID, message string) error

	// Retry reverts a held job to pending after a failed attempt.
	Retry(ctx context.Context, jobID, message string) error

	// Fail terminally fails a held job.
	Fail(ctx context.Context, jobID, message string) error

	// ActiveCount counts pending, running, and throttled jobs.
	ActiveCount(ctx context.Context) (int, error)

	// ResetRunning sweeps stale running jobs back to pending (crash recovery).
	ResetRunning(ctx context.Context) (int, error)

	// Summary reports per-status counts and a recent-failures tail.
	Summary(ctx context.Context) (*models.QueueSummary, error)
}

// RepoJobQueue manages a per-repository job table (README or classify).
// A queue constructed with a partition claims and counts only jobs whose
// repo_id falls in that partition; generators and sweeps stay global.
type RepoJobQueue interface {
	InsertNew(ctx context.Context, jobs []*models.RepoJob) (*models.GenerateResult, error)
	Claim(ctx context.Context) (*models.RepoJob, error)

	// MarkDone completes a held job.
	MarkDone(ctx context.Context, jobID string) error

	// MarkNoReadme terminally records that the repository has no README.
	MarkNoReadme(ctx context.Context, jobID string) error

	Release(ctx context.Context, jobID string) (bool, error)
	Throttle(ctx context.Context, jobID, message string) error
	Retry(ctx context.Context, jobID, message string) error
	Fail(ctx context.Context, jobID, message string) error
	ActiveCount(ctx context.Context) (int, error)
	ResetRunning(ctx context.Context) (int, error)
	Summary(ctx context.Context) (*models.QueueSummary, error)
}

// RepositoryStore manages the enriched repository documents.
type RepositoryStore interface {
	// BulkInsert creates repository documents, counting repo_id conflicts
	// as skips (overlapping search windows are partial success, not errors).
	BulkInsert(ctx context.Context, repos []*models.Repository) (*models.GenerateResult, error)

	// GetByRepoID loads one repository document; nil when absent.
	GetByRepoID(ctx context.Context, repoID int64) (*models.Repository, error)

	// SetReadme records fetched README content.
	SetReadme(ctx context.Context, repoID int64, content string, fetchedAt time.Time) error

	// MarkReadmeMissing records that the repository has no README; the
	// fetched flag still flips so the repo is not re-queued.
	MarkReadmeMissing(ctx context.Context, repoID int64, fetchedAt time.Time) error

	// SetClassification writes the LLM verdict and flips ai_classified.
	SetClassification(ctx context.Context, repoID int64, c *models.Classification, classifiedAt time.Time) error

	// FindReadmeCandidates lists repositories whose README was never fetched.
	FindReadmeCandidates(ctx context.Context, limit int) ([]*models.RepoRef, error)

	// FindClassifyCandidates lists repositories with README content that
	// were never classified.
	FindClassifyCandidates(ctx context.Context, limit int) ([]*models.RepoRef, error)

	// Count returns the total number of repository documents.
	Count(ctx context.Context) (int, error)
}
