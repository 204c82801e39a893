// Package jobengine drives the claim/execute/complete lifecycle shared by
// every pipeline stage. A Worker polls one job queue and hands claimed jobs
// to a stage executor; the Orchestrator covers bootstrap (crash recovery,
// job generation) and periodic status reporting.
package jobengine

import (
	"context"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/models"
)

// Job constrains the engine to the pipeline's job documents. Claimed jobs
// are pointers, so the zero value doubles as the empty-queue marker.
type Job interface {
	models.QueueJob
	comparable
}

// Queue is the slice of a job store the worker loop needs.
type Queue[J Job] interface {
	// Claim atomically takes the oldest claimable job; zero when none.
	Claim(ctx context.Context) (J, error)

	// Release reverts a held job to pending without touching attempts.
	Release(ctx context.Context, jobID string) (bool, error)

	// Throttle parks a held job behind a rate limit without consuming a retry.
	Throttle(ctx context.Context, jobID, message string) error

	// Retry reverts a held job to pending after a failed attempt.
	Retry(ctx context.Context, jobID, message string) error

	// Fail terminally fails a held job.
	Fail(ctx context.Context, jobID, message string) error

	// ActiveCount counts jobs this worker could still be asked to run.
	ActiveCount(ctx context.Context) (int, error)
}

// Executor runs one claimed job. A successful execution records its own
// terminal status (done, no_readme); the worker only handles failures.
type Executor[J Job] interface {
	Execute(ctx context.Context, job J) error
}

// Admin is the slice of a job store the orchestrator needs: global sweeps
// and status, never partition-scoped.
type Admin interface {
	ResetRunning(ctx context.Context) (int, error)
	Summary(ctx context.Context) (*models.QueueSummary, error)
}

// GenerateFunc seeds a queue with new jobs. Generators are idempotent:
// re-running one skips jobs that already exist.
type GenerateFunc func(ctx context.Context) (*models.GenerateResult, error)

// RateLimited is matched via errors.As against executor errors that carry an
// upstream rate-limit reset time. The worker parks the job and sleeps
// instead of burning retries.
type RateLimited interface {
	error
	ResetAt() time.Time
}

// Config holds the worker loop settings for one stage process.
type Config struct {
	Stage        string
	WorkerID     int
	PollInterval time.Duration

	// AutoExit stops the worker once its queue has no active jobs left,
	// letting batch deployments run to completion and terminate.
	AutoExit bool

	// StartupGrace is the number of empty polls to tolerate before AutoExit
	// may trigger, covering the gap while bootstrap generation lands.
	StartupGrace int
}
