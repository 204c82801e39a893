package surrealdb

import (
	"context"
	"fmt"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const searchJobTable = "github_search_jobs"

// searchJobFields extends the shared header with the search payload.
const searchJobFields = headerSelectFields + ", bucket, query_template, window, repos_count"

// SearchJobStore implements interfaces.SearchJobQueue over github_search_jobs.
type SearchJobStore struct {
	jobTable
}

// NewSearchJobStore creates a store for the date-window search queue.
func NewSearchJobStore(db *surrealdb.DB, logger *common.Logger) *SearchJobStore {
	return &SearchJobStore{jobTable: jobTable{
		db:     db,
		logger: logger,
		table:  searchJobTable,
		// failure summaries identify a search job by bucket and window
		labelExpr: "bucket + ' ' + window.from + '..' + window.to",
	}}
}

// InsertNew creates pending jobs, skipping windows that already have one.
// The unique index on (bucket, window) makes re-runs no-ops.
func (s *SearchJobStore) InsertNew(ctx context.Context, jobs []*models.SearchJob) (*models.GenerateResult, error) {
	result := &models.GenerateResult{}

	sql := `CREATE $rid SET
		job_id = $job_id, status = $status, attempts = $attempts, max_attempts = $max_attempts,
		created_at = $created_at, updated_at = $updated_at,
		bucket = $bucket, query_template = $query_template, window = $window, repos_count = 0`

	for _, job := range jobs {
		vars := map[string]any{
			"rid":            s.rid(job.ID),
			"job_id":         job.ID,
			"status":         job.Status,
			"attempts":       job.Attempts,
			"max_attempts":   job.MaxAttempts,
			"created_at":     job.CreatedAt,
			"updated_at":     job.UpdatedAt,
			"bucket":         job.Bucket,
			"query_template": job.QueryTemplate,
			"window":         job.Window,
		}

		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			if isDuplicateError(err) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("failed to insert search job %s: %w", job.Label(), err)
		}
		result.Inserted++
	}

	return result, nil
}

// Claim atomically takes the oldest claimable job; nil when none.
func (s *SearchJobStore) Claim(ctx context.Context) (*models.SearchJob, error) {
	return claimLoop[models.SearchJob](ctx, &s.jobTable, "", nil, searchJobFields)
}

// MarkDone completes a held job, recording how many documents its window mapped.
func (s *SearchJobStore) MarkDone(ctx context.Context, jobID string, reposCount int) error {
	return s.markDone(ctx, jobID, ", repos_count = $count", map[string]any{"count": reposCount})
}

// ActiveCount counts pending, running, and throttled search jobs.
func (s *SearchJobStore) ActiveCount(ctx context.Context) (int, error) {
	return s.activeCount(ctx, "", nil)
}

// Compile-time check
var _ interfaces.SearchJobQueue = (*SearchJobStore)(nil)
