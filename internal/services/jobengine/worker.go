package jobengine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
)

// rateLimitSlack pads the upstream reset time so the first request after a
// rate-limit pause doesn't land a moment too early.
const rateLimitSlack = 2 * time.Second

// releaseTimeout bounds the shutdown release of a held job.
const releaseTimeout = 5 * time.Second

// Worker polls one queue and runs claimed jobs through the stage executor.
// One worker processes one job at a time; parallelism comes from running
// more worker processes against the same queue.
type Worker[J Job] struct {
	queue    Queue[J]
	executor Executor[J]
	logger   *common.Logger
	config   Config

	current J // job held by this worker; zero when none
}

// NewWorker wires a worker loop for one stage.
func NewWorker[J Job](queue Queue[J], executor Executor[J], logger *common.Logger, config Config) *Worker[J] {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	return &Worker[J]{
		queue:    queue,
		executor: executor,
		logger:   logger,
		config:   config,
	}
}

// Run polls until the context is cancelled or, with AutoExit, until the
// queue drains. Cancellation is graceful: a job already claimed is executed
// to completion on a detached context, and a job held when Run returns is
// restored to pending.
func (w *Worker[J]) Run(ctx context.Context) {
	defer w.cleanup()

	var zero J
	// Claimed work always drains, even when the run context is cancelled
	// mid-execution; only the idle sleeps watch the run context.
	workCtx := context.WithoutCancel(ctx)

	grace := w.config.StartupGrace
	emptyPolls := 0

	w.logger.Info().
		Str("stage", w.config.Stage).
		Int("worker_id", w.config.WorkerID).
		Dur("poll_interval", w.config.PollInterval).
		Bool("auto_exit", w.config.AutoExit).
		Msg("Worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info().Str("stage", w.config.Stage).Msg("Worker stopping on shutdown signal")
			return
		}

		job, err := w.queue.Claim(workCtx)
		if err != nil {
			w.logger.Warn().Str("stage", w.config.Stage).Err(err).Msg("Claim failed")
			if !w.sleep(ctx, w.config.PollInterval) {
				return
			}
			continue
		}

		if job != zero {
			emptyPolls = 0
			grace = 0
			w.current = job
			// A signal that lands during the claim round-trip stops the
			// job before execution starts; cleanup puts it back.
			if ctx.Err() != nil {
				w.logger.Info().Str("stage", w.config.Stage).Msg("Worker stopping on shutdown signal")
				return
			}
			resumeAt := w.process(workCtx, job)
			if !resumeAt.IsZero() {
				w.logger.Info().
					Str("stage", w.config.Stage).
					Time("resume_at", resumeAt).
					Msg("Waiting for rate limit reset")
				if !w.sleep(ctx, time.Until(resumeAt)) {
					return
				}
			}
			continue
		}

		emptyPolls++
		if emptyPolls == 1 {
			w.logger.Info().Str("stage", w.config.Stage).Msg("No pending jobs. Waiting...")
		} else if emptyPolls%10 == 0 {
			w.logger.Debug().Str("stage", w.config.Stage).Int("empty_polls", emptyPolls).Msg("Still waiting for jobs")
		}

		if w.config.AutoExit && grace == 0 {
			active, err := w.queue.ActiveCount(workCtx)
			if err != nil {
				w.logger.Warn().Str("stage", w.config.Stage).Err(err).Msg("Active count failed")
			} else if active == 0 {
				w.logger.Info().Str("stage", w.config.Stage).Msg("No active jobs remain. Exiting")
				return
			}
		}
		if grace > 0 {
			grace--
		}

		if !w.sleep(ctx, w.config.PollInterval) {
			return
		}
	}
}

// process runs one claimed job and applies the failure transition if needed.
// It returns the time to resume polling when the job hit a rate limit, zero
// otherwise.
func (w *Worker[J]) process(ctx context.Context, job J) time.Time {
	var zero J
	defer func() { w.current = zero }()

	header := job.Header()
	w.logger.Info().
		Str("job_id", header.ID).
		Str("job", job.Label()).
		Int("attempt", header.Attempts).
		Int("max_attempts", header.MaxAttempts).
		Msg("Processing job")

	start := time.Now()
	err := w.execute(ctx, job)
	durationMS := time.Since(start).Milliseconds()

	if err == nil {
		w.logger.Info().
			Str("job_id", header.ID).
			Str("job", job.Label()).
			Int64("duration_ms", durationMS).
			Msg("Job completed")
		return time.Time{}
	}

	var limited RateLimited
	if errors.As(err, &limited) {
		reset := limited.ResetAt()
		message := fmt.Sprintf("Rate limit hit at %s. Reset at %s",
			time.Now().UTC().Format("15:04:05"), reset.UTC().Format("15:04:05"))
		w.logger.Warn().
			Str("job_id", header.ID).
			Str("job", job.Label()).
			Msg(message)
		if terr := w.queue.Throttle(ctx, header.ID, message); terr != nil {
			w.logger.Warn().Str("job_id", header.ID).Err(terr).Msg("Failed to park job behind rate limit")
		}
		return reset.Add(rateLimitSlack)
	}

	if header.Attempts >= header.MaxAttempts {
		w.logger.Error().
			Str("job_id", header.ID).
			Str("job", job.Label()).
			Int("attempts", header.Attempts).
			Err(err).
			Msg("Job permanently failed")
		if ferr := w.queue.Fail(ctx, header.ID, err.Error()); ferr != nil {
			w.logger.Warn().Str("job_id", header.ID).Err(ferr).Msg("Failed to record job failure")
		}
	} else {
		w.logger.Warn().
			Str("job_id", header.ID).
			Str("job", job.Label()).
			Int("attempt", header.Attempts).
			Int("max_attempts", header.MaxAttempts).
			Err(err).
			Msg("Job failed, will retry")
		if rerr := w.queue.Retry(ctx, header.ID, err.Error()); rerr != nil {
			w.logger.Warn().Str("job_id", header.ID).Err(rerr).Msg("Failed to re-queue job")
		}
	}
	return time.Time{}
}

// execute shields the loop from executor panics; a panic fails the attempt
// like any other error.
func (w *Worker[J]) execute(ctx context.Context, job J) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("job_id", job.Header().ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in job executor")
			err = fmt.Errorf("panic in executor: %v", r)
		}
	}()
	return w.executor.Execute(ctx, job)
}

// sleep waits for d or until the run context is cancelled; false means stop.
func (w *Worker[J]) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// cleanup restores a still-held job to pending so another worker can pick it
// up immediately instead of waiting for the next bootstrap sweep.
func (w *Worker[J]) cleanup() {
	var zero J
	if w.current == zero {
		return
	}
	header := w.current.Header()
	w.current = zero

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	held, err := w.queue.Release(ctx, header.ID)
	if err != nil {
		w.logger.Warn().Str("job_id", header.ID).Err(err).Msg("Failed to release held job on shutdown")
		return
	}
	if held {
		w.logger.Info().Str("job_id", header.ID).Msg("Released held job back to pending")
	}
}
