// Package search implements the first pipeline stage: windowed GitHub
// repository searches that seed the repository collection.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

const (
	// minSizeKB drops empty shells and single-file gists-as-repos.
	minSizeKB = 50

	// maxPushedAge drops repositories with no recent activity. A repository
	// that never reported pushed_at passes (the API omits it on some mirrors).
	maxPushedAge = 30 * 24 * time.Hour
)

// Service executes search jobs and generates the backfill job set.
type Service struct {
	client          interfaces.GitHubClient
	repos           interfaces.RepositoryStore
	jobs            interfaces.SearchJobQueue
	logger          *common.Logger
	search          common.SearchConfig
	pipelineVersion string
	maxAttempts     int
	now             func() time.Time // injectable clock for testing
}

// NewService creates a search stage service.
func NewService(client interfaces.GitHubClient, repos interfaces.RepositoryStore, jobs interfaces.SearchJobQueue, config *common.Config, logger *common.Logger) *Service {
	return &Service{
		client:          client,
		repos:           repos,
		jobs:            jobs,
		logger:          logger,
		search:          config.Search,
		pipelineVersion: config.Pipeline.Version,
		maxAttempts:     config.Pipeline.MaxAttempts,
		now:             time.Now,
	}
}

// Execute runs one date-window search: render the query, collect and filter
// the hits, store the survivors, and complete the job with the mapped count.
// The count records how many documents the window produced, not how many
// inserts were new; overlapping windows stay honest on re-runs.
func (s *Service) Execute(ctx context.Context, job *models.SearchJob) error {
	query := renderQuery(job.QueryTemplate, job.Window)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("bucket", job.Bucket).
		Str("query", query).
		Msg("Searching repositories")

	snapshots, err := s.client.SearchRepositories(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to search repositories: %w", err)
	}

	now := s.now().UTC()
	docs := make([]*models.Repository, 0, len(snapshots))
	for _, snap := range snapshots {
		if !keepRepo(snap, now) {
			continue
		}
		docs = append(docs, mapRepository(snap, job.Bucket, query, s.pipelineVersion, now))
	}

	result, err := s.repos.BulkInsert(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to store repositories: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("found", len(snapshots)).
		Int("kept", len(docs)).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Msg("Search window ingested")

	if err := s.jobs.MarkDone(ctx, job.ID, len(docs)); err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	return nil
}

// Generate enumerates the configured [start_date, end_date] range into
// date-window jobs and inserts the ones that don't already exist. Buckets
// are named {prefix}_{year}_q{quarter} from each window's start date.
func (s *Service) Generate(ctx context.Context) (*models.GenerateResult, error) {
	start, err := time.Parse("2006-01-02", s.search.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", s.search.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", s.search.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end_date %q: %w", s.search.EndDate, err)
	}

	now := s.now().UTC()
	var jobs []*models.SearchJob
	for cursor := start; cursor.Before(end); {
		windowEnd := cursor.AddDate(0, 0, s.search.WindowDays)
		if windowEnd.After(end) {
			windowEnd = end
		}

		quarter := (int(cursor.Month())-1)/3 + 1
		bucket := fmt.Sprintf("%s_%d_q%d", s.search.BucketPrefix, cursor.Year(), quarter)
		window := models.DateWindow{
			From: cursor.Format("2006-01-02"),
			To:   windowEnd.Format("2006-01-02"),
		}

		jobs = append(jobs, models.NewSearchJob(bucket, s.search.QueryTemplate, window, s.maxAttempts, now))
		cursor = windowEnd.AddDate(0, 0, 1)
	}

	s.logger.Info().
		Int("windows", len(jobs)).
		Str("start_date", s.search.StartDate).
		Str("end_date", s.search.EndDate).
		Int("window_days", s.search.WindowDays).
		Msg("Generating search jobs")

	return s.jobs.InsertNew(ctx, jobs)
}

// renderQuery substitutes the window bounds into the query template,
// e.g. "stars:>20 created:{from_date}..{to_date}".
func renderQuery(template string, window models.DateWindow) string {
	return strings.NewReplacer(
		"{from_date}", window.From,
		"{to_date}", window.To,
	).Replace(template)
}

// keepRepo applies the repo-level heuristic filter to a search hit.
func keepRepo(snap *models.RepoSnapshot, now time.Time) bool {
	if snap.SizeKB < minSizeKB {
		return false
	}
	if snap.Archived {
		return false
	}
	if !snap.PushedAt.IsZero() && snap.PushedAt.Before(now.Add(-maxPushedAge)) {
		return false
	}
	return true
}

// mapRepository shapes a search hit into the repository document the
// downstream stages enrich.
func mapRepository(snap *models.RepoSnapshot, bucket, query, pipelineVersion string, now time.Time) *models.Repository {
	return &models.Repository{
		Source:   models.SourceGitHub,
		RepoID:   snap.RepoID,
		FullName: snap.FullName,
		Name:     snap.Name,
		Owner:    snap.Owner,
		URL:      snap.URL,
		Signals: models.RepoSignals{
			Stars:     snap.Stars,
			Forks:     snap.Forks,
			Language:  snap.Language,
			IsFork:    snap.IsFork,
			HasTopics: len(snap.Topics) > 0,
		},
		Activity: models.RepoActivity{
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
			PushedAt:  snap.PushedAt,
		},
		Raw: models.RawData{
			SearchSnapshot: models.SearchSnapshot{
				Description:   snap.Description,
				SizeKB:        snap.SizeKB,
				Topics:        snap.Topics,
				License:       snap.License,
				OpenIssues:    snap.OpenIssues,
				Watchers:      snap.Watchers,
				DefaultBranch: snap.DefaultBranch,
				Archived:      snap.Archived,
			},
		},
		IngestMeta: models.IngestMeta{
			Bucket:          bucket,
			Query:           query,
			IngestedAt:      now,
			PipelineVersion: pipelineVersion,
		},
		// Enrichment flags start zeroed; the README and classify stages
		// flip them as they run.
	}
}
