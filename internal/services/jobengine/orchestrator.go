package jobengine

import (
	"context"
	"fmt"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

// Orchestrator runs the bootstrap sequence a stage process performs before
// its worker loop starts, and the periodic status monitor after it does.
type Orchestrator struct {
	stage    string
	storage  interfaces.StorageManager
	queue    Admin
	generate GenerateFunc // nil when this process never seeds jobs
	logger   *common.Logger
}

// NewOrchestrator wires the bootstrap/monitor pair for one stage.
func NewOrchestrator(stage string, storage interfaces.StorageManager, queue Admin, generate GenerateFunc, logger *common.Logger) *Orchestrator {
	return &Orchestrator{
		stage:    stage,
		storage:  storage,
		queue:    queue,
		generate: generate,
		logger:   logger,
	}
}

// Bootstrap verifies the store, recovers jobs orphaned by a crash, and seeds
// the queue when it has no active work. Any error aborts the stage before
// the worker loop starts.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	if err := o.storage.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	swept, err := o.queue.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset orphaned running jobs: %w", err)
	}
	if swept > 0 {
		o.logger.Info().Str("stage", o.stage).Int("count", swept).Msg("Reset orphaned running jobs to pending")
	}

	summary, err := o.queue.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue status: %w", err)
	}

	active := summary.Count(models.JobStatusPending) +
		summary.Count(models.JobStatusRunning) +
		summary.Count(models.JobStatusThrottled)

	switch {
	case o.generate == nil:
		// another process owns generation for this queue
	case active > 0:
		o.logger.Info().Str("stage", o.stage).Int("active", active).Msg("Found active jobs. Continuing with existing jobs")
	default:
		if summary.Total > 0 {
			o.logger.Info().Str("stage", o.stage).Msg("All previous jobs completed. Checking for new work...")
		} else {
			o.logger.Info().Str("stage", o.stage).Msg("No jobs found. Creating initial jobs...")
		}

		result, err := o.generate(ctx)
		if err != nil {
			return fmt.Errorf("job generation failed: %w", err)
		}
		o.logger.Info().
			Str("stage", o.stage).
			Int("inserted", result.Inserted).
			Int("skipped", result.Skipped).
			Msg("Job generation finished")

		if summary, err = o.queue.Summary(ctx); err != nil {
			return fmt.Errorf("failed to read queue status: %w", err)
		}
	}

	o.logSummary(summary)
	return nil
}

// Monitor logs the queue status every interval until the context is
// cancelled. Run it in its own goroutine alongside the worker loop.
func (o *Orchestrator) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := o.queue.Summary(ctx)
			if err != nil {
				o.logger.Warn().Str("stage", o.stage).Err(err).Msg("Queue status check failed")
				continue
			}
			o.logSummary(summary)
		}
	}
}

func (o *Orchestrator) logSummary(summary *models.QueueSummary) {
	o.logger.Info().
		Str("stage", o.stage).
		Int("total", summary.Total).
		Int("pending", summary.Count(models.JobStatusPending)).
		Int("running", summary.Count(models.JobStatusRunning)).
		Int("throttled", summary.Count(models.JobStatusThrottled)).
		Int("done", summary.Count(models.JobStatusDone)).
		Int("no_readme", summary.Count(models.JobStatusNoReadme)).
		Int("failed", summary.Count(models.JobStatusFailed)).
		Msg("Queue status")

	for _, failure := range summary.RecentFailures {
		o.logger.Warn().
			Str("stage", o.stage).
			Str("job", failure.Label).
			Int("attempts", failure.Attempts).
			Str("error", failure.Error).
			Msg("Recent failure")
	}
}
