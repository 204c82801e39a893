package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusDone      = "done"
	JobStatusFailed    = "failed"
	JobStatusNoReadme  = "no_readme" // terminal, README jobs only
	JobStatusThrottled = "throttled" // rate-limit revert, claimable like pending
)

// ActiveStatuses are the statuses that keep a worker alive: jobs that are
// waiting, held, or parked behind a rate limit.
var ActiveStatuses = []string{JobStatusPending, JobStatusRunning, JobStatusThrottled}

// IsTerminalStatus reports whether a status ends a job's lifecycle.
func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusDone, JobStatusFailed, JobStatusNoReadme:
		return true
	default:
		return false
	}
}

// JobHeader is the lifecycle state shared by every job kind.
// Claimed jobs are held by exactly one worker; attempts counts claims
// (rate-limit reverts compensate the increment so throttling never
// consumes a retry).
type JobHeader struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Header returns the embedded header; lets stage-specific jobs satisfy QueueJob.
func (h *JobHeader) Header() *JobHeader { return h }

// QueueJob is implemented by every job document the engine can process.
type QueueJob interface {
	Header() *JobHeader
	Label() string
}

// DateWindow is an inclusive date range in "YYYY-MM-DD" form.
type DateWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SearchJob is a stage-1 job: run one repository search for one date window.
type SearchJob struct {
	JobHeader
	Bucket        string     `json:"bucket"`         // e.g. "github_2023_q2"
	QueryTemplate string     `json:"query_template"` // contains {from_date} and {to_date}
	Window        DateWindow `json:"window"`
	ReposCount    int        `json:"repos_count"` // mapped documents, set when done
}

// Label identifies the job in logs and failure summaries.
func (j *SearchJob) Label() string {
	return fmt.Sprintf("%s %s..%s", j.Bucket, j.Window.From, j.Window.To)
}

// RepoJob is a stage-2/3 job: enrich one repository (README fetch or
// classification, depending on the table it lives in).
type RepoJob struct {
	JobHeader
	RepoID   int64  `json:"repo_id"`
	FullName string `json:"full_name"`
}

// Label identifies the job in logs and failure summaries.
func (j *RepoJob) Label() string { return j.FullName }

func newJobID() string {
	return uuid.New().String()[:8]
}

func newJobHeader(maxAttempts int, now time.Time) JobHeader {
	return JobHeader{
		ID:          newJobID(),
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewSearchJob builds a pending search job for one window.
func NewSearchJob(bucket, queryTemplate string, window DateWindow, maxAttempts int, now time.Time) *SearchJob {
	return &SearchJob{
		JobHeader:     newJobHeader(maxAttempts, now),
		Bucket:        bucket,
		QueryTemplate: queryTemplate,
		Window:        window,
	}
}

// NewRepoJob builds a pending repo job.
func NewRepoJob(repoID int64, fullName string, maxAttempts int, now time.Time) *RepoJob {
	return &RepoJob{
		JobHeader: newJobHeader(maxAttempts, now),
		RepoID:    repoID,
		FullName:  fullName,
	}
}

// Partition assigns repositories to workers: a worker owns repo ids where
// repo_id mod total_workers == worker_id - 1. Worker ids are 1-based.
type Partition struct {
	WorkerID     int
	TotalWorkers int
}

// NewPartition validates worker identity and returns the partition.
func NewPartition(workerID, totalWorkers int) (Partition, error) {
	if totalWorkers < 1 {
		return Partition{}, fmt.Errorf("total workers must be >= 1, got %d", totalWorkers)
	}
	if workerID < 1 || workerID > totalWorkers {
		return Partition{}, fmt.Errorf("worker id must be in [1, %d], got %d", totalWorkers, workerID)
	}
	return Partition{WorkerID: workerID, TotalWorkers: totalWorkers}, nil
}

// Remainder is the modulus class this worker owns.
func (p Partition) Remainder() int64 {
	return int64(p.WorkerID - 1)
}

// Matches reports whether a repo id belongs to this worker's partition.
func (p Partition) Matches(repoID int64) bool {
	return repoID%int64(p.TotalWorkers) == p.Remainder()
}

// GenerateResult reports what a job generator did.
type GenerateResult struct {
	Inserted int
	Skipped  int
}

// FailedJob is one entry in the recent-failures tail of a queue summary.
type FailedJob struct {
	Label     string    `json:"label"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueSummary is a point-in-time census of one job table.
type QueueSummary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	RecentFailures []FailedJob    `json:"recent_failures"`
}

// Count returns the number of jobs in a given status.
func (s *QueueSummary) Count(status string) int {
	if s.ByStatus == nil {
		return 0
	}
	return s.ByStatus[status]
}
