package surrealdb

import (
	"context"
	"fmt"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// repoJobFields extends the shared header with the per-repository payload.
const repoJobFields = headerSelectFields + ", repo_id, full_name"

// RepoJobStore implements interfaces.RepoJobQueue over a per-repository job
// table (README or classify). When constructed with a partition, Claim and
// ActiveCount see only jobs whose repo_id falls in that partition; InsertNew,
// ResetRunning, and Summary stay global.
type RepoJobStore struct {
	jobTable
	partition *models.Partition
}

// NewRepoJobStore creates a store for one per-repository job table.
func NewRepoJobStore(db *surrealdb.DB, logger *common.Logger, table string, partition *models.Partition) *RepoJobStore {
	return &RepoJobStore{
		jobTable: jobTable{
			db:        db,
			logger:    logger,
			table:     table,
			labelExpr: "full_name",
		},
		partition: partition,
	}
}

// InsertNew creates pending jobs, skipping repositories that already have one.
// The unique index on repo_id makes re-runs no-ops.
func (s *RepoJobStore) InsertNew(ctx context.Context, jobs []*models.RepoJob) (*models.GenerateResult, error) {
	result := &models.GenerateResult{}

	sql := `CREATE $rid SET
		job_id = $job_id, status = $status, attempts = $attempts, max_attempts = $max_attempts,
		created_at = $created_at, updated_at = $updated_at,
		repo_id = $repo_id, full_name = $full_name`

	for _, job := range jobs {
		vars := map[string]any{
			"rid":          s.rid(job.ID),
			"job_id":       job.ID,
			"status":       job.Status,
			"attempts":     job.Attempts,
			"max_attempts": job.MaxAttempts,
			"created_at":   job.CreatedAt,
			"updated_at":   job.UpdatedAt,
			"repo_id":      job.RepoID,
			"full_name":    job.FullName,
		}

		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			if isDuplicateError(err) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("failed to insert job for %s: %w", job.FullName, err)
		}
		result.Inserted++
	}

	return result, nil
}

// Claim atomically takes the oldest claimable job in this worker's partition;
// nil when none.
func (s *RepoJobStore) Claim(ctx context.Context) (*models.RepoJob, error) {
	where, vars := s.partitionFilter()
	return claimLoop[models.RepoJob](ctx, &s.jobTable, where, vars, repoJobFields)
}

// MarkDone completes a held job.
func (s *RepoJobStore) MarkDone(ctx context.Context, jobID string) error {
	return s.markDone(ctx, jobID, "", nil)
}

// MarkNoReadme terminally records that the repository has no README.
func (s *RepoJobStore) MarkNoReadme(ctx context.Context, jobID string) error {
	held, err := s.updateHeld(ctx, jobID, "status = $no_readme, completed_at = $now, error_message = $msg", map[string]any{
		"no_readme": models.JobStatusNoReadme,
		"msg":       "No README found",
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s no_readme: %w", jobID, err)
	}
	if !held {
		s.logger.Warn().Str("job_id", jobID).Str("table", s.table).Msg("Completion for a job no longer running")
	}
	return nil
}

// ActiveCount counts pending, running, and throttled jobs in this worker's
// partition.
func (s *RepoJobStore) ActiveCount(ctx context.Context) (int, error) {
	where, vars := s.partitionFilter()
	return s.activeCount(ctx, where, vars)
}

func (s *RepoJobStore) partitionFilter() (string, map[string]any) {
	if s.partition == nil {
		return "", nil
	}
	return " AND repo_id % $total_workers = $remainder", map[string]any{
		"total_workers": s.partition.TotalWorkers,
		"remainder":     s.partition.Remainder(),
	}
}

// Compile-time check
var _ interfaces.RepoJobQueue = (*RepoJobStore)(nil)
