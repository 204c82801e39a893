package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// headerSelectFields lists the lifecycle fields shared by every job table,
// aliasing job_id to id for struct mapping.
const headerSelectFields = "job_id AS id, status, attempts, max_attempts, created_at, updated_at, started_at, completed_at, error_message"

// claimableWhere matches jobs a worker may take: waiting or parked behind a
// rate limit, with attempts still under the job's own budget.
const claimableWhere = "(status = $pending OR status = $throttled) AND attempts < max_attempts"

// claimBatchSize caps how many candidates one claim attempt inspects before
// reporting an empty queue.
const claimBatchSize = 5

// failureTailLimit caps the recent-failures list in a queue summary.
const failureTailLimit = 5

// jobTable implements the lifecycle transitions shared by every job store.
// Stage stores embed it and add their typed InsertNew/Claim on top.
type jobTable struct {
	db        *surrealdb.DB
	logger    *common.Logger
	table     string
	labelExpr string // projection naming a job in failure summaries
}

func (t *jobTable) rid(jobID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(t.table, jobID)
}

// claimCandidates returns ids of claimable jobs in FIFO order. extraWhere
// narrows the filter (partition scoping); extraVars supplies its parameters.
func (t *jobTable) claimCandidates(ctx context.Context, extraWhere string, extraVars map[string]any) ([]string, error) {
	sql := "SELECT job_id AS id FROM " + t.table + " WHERE " + claimableWhere + extraWhere +
		" ORDER BY created_at ASC LIMIT $batch"
	vars := map[string]any{
		"pending":   models.JobStatusPending,
		"throttled": models.JobStatusThrottled,
		"batch":     claimBatchSize,
	}
	for k, v := range extraVars {
		vars[k] = v
	}

	type idRow struct {
		ID string `json:"id"`
	}

	results, err := surrealdb.Query[[]idRow](ctx, t.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select claim candidates: %w", err)
	}

	var ids []string
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

// claimOne tries to atomically move one candidate to running. The claim
// filter is re-checked inside the UPDATE, so two workers racing on the same
// candidate cannot both win; an empty result means this worker lost.
func claimOne[J any](ctx context.Context, t *jobTable, jobID, extraWhere string, extraVars map[string]any, fields string) (*J, error) {
	sql := "UPDATE $rid SET status = $running, attempts = attempts + 1, started_at = $now, updated_at = $now" +
		" WHERE " + claimableWhere + extraWhere + " RETURN " + fields
	vars := map[string]any{
		"rid":       t.rid(jobID),
		"running":   models.JobStatusRunning,
		"pending":   models.JobStatusPending,
		"throttled": models.JobStatusThrottled,
		"now":       time.Now(),
	}
	for k, v := range extraVars {
		vars[k] = v
	}

	results, err := surrealdb.Query[[]J](ctx, t.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// claimLoop runs the two-step claim: a candidate scan, then a guarded update
// per candidate until one wins or the batch is exhausted.
func claimLoop[J any](ctx context.Context, t *jobTable, extraWhere string, extraVars map[string]any, fields string) (*J, error) {
	ids, err := t.claimCandidates(ctx, extraWhere, extraVars)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		job, err := claimOne[J](ctx, t, id, extraWhere, extraVars, fields)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		t.logger.Debug().Str("job_id", id).Str("table", t.table).Msg("Lost claim race, trying next candidate")
	}
	return nil, nil
}

// updateHeld applies a transition guarded by status = running. The returned
// bool reports whether this process still held the job.
func (t *jobTable) updateHeld(ctx context.Context, jobID, set string, vars map[string]any) (bool, error) {
	sql := "UPDATE $rid SET " + set + ", updated_at = $now WHERE status = $running RETURN VALUE job_id"
	all := map[string]any{
		"rid":     t.rid(jobID),
		"running": models.JobStatusRunning,
		"now":     time.Now(),
	}
	for k, v := range vars {
		all[k] = v
	}

	results, err := surrealdb.Query[[]string](ctx, t.db, sql, all)
	if err != nil {
		return false, err
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

// markDone completes a held job; extraSet appends stage-specific fields
// (e.g. repos_count for search jobs).
func (t *jobTable) markDone(ctx context.Context, jobID, extraSet string, extraVars map[string]any) error {
	set := "status = $done, completed_at = $now, error_message = NONE" + extraSet
	vars := map[string]any{"done": models.JobStatusDone}
	for k, v := range extraVars {
		vars[k] = v
	}
	held, err := t.updateHeld(ctx, jobID, set, vars)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", jobID, err)
	}
	if !held {
		t.logger.Warn().Str("job_id", jobID).Str("table", t.table).Msg("Completion for a job no longer running")
	}
	return nil
}

func (t *jobTable) Release(ctx context.Context, jobID string) (bool, error) {
	held, err := t.updateHeld(ctx, jobID, "status = $pending", map[string]any{
		"pending": models.JobStatusPending,
	})
	if err != nil {
		return false, fmt.Errorf("failed to release job %s: %w", jobID, err)
	}
	return held, nil
}

func (t *jobTable) Throttle(ctx context.Context, jobID, message string) error {
	// The claim charged an attempt; hand it back so a rate limit never
	// consumes a retry.
	held, err := t.updateHeld(ctx, jobID, "status = $throttled, attempts = attempts - 1, error_message = $msg", map[string]any{
		"throttled": models.JobStatusThrottled,
		"msg":       message,
	})
	if err != nil {
		return fmt.Errorf("failed to throttle job %s: %w", jobID, err)
	}
	if !held {
		t.logger.Warn().Str("job_id", jobID).Str("table", t.table).Msg("Throttle for a job no longer running")
	}
	return nil
}

func (t *jobTable) Retry(ctx context.Context, jobID, message string) error {
	held, err := t.updateHeld(ctx, jobID, "status = $pending, completed_at = NONE, error_message = $msg", map[string]any{
		"pending": models.JobStatusPending,
		"msg":     message,
	})
	if err != nil {
		return fmt.Errorf("failed to retry job %s: %w", jobID, err)
	}
	if !held {
		t.logger.Warn().Str("job_id", jobID).Str("table", t.table).Msg("Retry for a job no longer running")
	}
	return nil
}

func (t *jobTable) Fail(ctx context.Context, jobID, message string) error {
	held, err := t.updateHeld(ctx, jobID, "status = $failed, completed_at = $now, error_message = $msg", map[string]any{
		"failed": models.JobStatusFailed,
		"msg":    message,
	})
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	if !held {
		t.logger.Warn().Str("job_id", jobID).Str("table", t.table).Msg("Failure for a job no longer running")
	}
	return nil
}

// ResetRunning sweeps stale running jobs back to pending. Called at bootstrap
// to recover jobs that were in flight when a previous process died.
func (t *jobTable) ResetRunning(ctx context.Context) (int, error) {
	sql := "UPDATE " + t.table + " SET status = $pending, started_at = NONE, updated_at = $now WHERE status = $running RETURN VALUE job_id"
	results, err := surrealdb.Query[[]string](ctx, t.db, sql, map[string]any{
		"pending": models.JobStatusPending,
		"running": models.JobStatusRunning,
		"now":     time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset running jobs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// activeCount counts pending, running, and throttled jobs; extraWhere narrows
// the count to a worker's partition.
func (t *jobTable) activeCount(ctx context.Context, extraWhere string, extraVars map[string]any) (int, error) {
	sql := "SELECT count() AS cnt FROM " + t.table + " WHERE status IN [$pending, $running, $throttled]" + extraWhere + " GROUP ALL"
	vars := map[string]any{
		"pending":   models.JobStatusPending,
		"running":   models.JobStatusRunning,
		"throttled": models.JobStatusThrottled,
	}
	for k, v := range extraVars {
		vars[k] = v
	}

	type countResult struct {
		Cnt int `json:"cnt"`
	}

	results, err := surrealdb.Query[[]countResult](ctx, t.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0].Cnt, nil
	}
	return 0, nil
}

// Summary reports per-status counts and the most recent failures.
func (t *jobTable) Summary(ctx context.Context) (*models.QueueSummary, error) {
	summary := &models.QueueSummary{ByStatus: make(map[string]int)}

	type groupResult struct {
		Group string `json:"group"`
		Cnt   int    `json:"cnt"`
	}

	statusSQL := "SELECT status AS group, count() AS cnt FROM " + t.table + " GROUP BY status"
	statusResults, err := surrealdb.Query[[]groupResult](ctx, t.db, statusSQL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize job statuses: %w", err)
	}
	if statusResults != nil && len(*statusResults) > 0 {
		for _, row := range (*statusResults)[0].Result {
			summary.ByStatus[row.Group] = row.Cnt
			summary.Total += row.Cnt
		}
	}

	tailSQL := "SELECT " + t.labelExpr + " AS label, attempts, error_message AS error, updated_at FROM " + t.table +
		" WHERE status = $failed ORDER BY updated_at DESC LIMIT $limit"
	tailResults, err := surrealdb.Query[[]models.FailedJob](ctx, t.db, tailSQL, map[string]any{
		"failed": models.JobStatusFailed,
		"limit":  failureTailLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent failures: %w", err)
	}
	if tailResults != nil && len(*tailResults) > 0 {
		summary.RecentFailures = (*tailResults)[0].Result
	}

	return summary, nil
}

// isDuplicateError recognizes unique-index and record-id collisions; callers
// treat those as already-inserted rather than failures.
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists")
}
