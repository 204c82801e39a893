// Package readme implements the second pipeline stage: fetching README
// content for the repositories the search stage discovered.
package readme

import (
	"context"
	"fmt"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

// Service executes README jobs and generates them from unfetched repositories.
type Service struct {
	client      interfaces.GitHubClient
	repos       interfaces.RepositoryStore
	jobs        interfaces.RepoJobQueue
	logger      *common.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time // injectable clock for testing
}

// NewService creates a README stage service.
func NewService(client interfaces.GitHubClient, repos interfaces.RepositoryStore, jobs interfaces.RepoJobQueue, config *common.Config, logger *common.Logger) *Service {
	return &Service{
		client:      client,
		repos:       repos,
		jobs:        jobs,
		logger:      logger,
		batchSize:   config.Readme.BatchSize,
		maxAttempts: config.Pipeline.MaxAttempts,
		now:         time.Now,
	}
}

// Execute fetches one repository's README and records the outcome. The
// repository document is updated before the job transition, so a crash
// between the two writes re-runs idempotently (the update is the same
// either time; the job just gets claimed once more).
func (s *Service) Execute(ctx context.Context, job *models.RepoJob) error {
	content, found, err := s.client.GetReadme(ctx, job.FullName)
	if err != nil {
		return fmt.Errorf("failed to fetch README for %s: %w", job.FullName, err)
	}

	now := s.now().UTC()
	if !found {
		if err := s.repos.MarkReadmeMissing(ctx, job.RepoID, now); err != nil {
			return fmt.Errorf("failed to record missing README for %s: %w", job.FullName, err)
		}
		if err := s.jobs.MarkNoReadme(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to mark job no_readme: %w", err)
		}
		s.logger.Info().
			Str("job_id", job.ID).
			Str("repo", job.FullName).
			Msg("No README found")
		return nil
	}

	if err := s.repos.SetReadme(ctx, job.RepoID, content, now); err != nil {
		return fmt.Errorf("failed to store README for %s: %w", job.FullName, err)
	}
	if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("repo", job.FullName).
		Int("chars", len(content)).
		Msg("README fetched")
	return nil
}

// Generate turns repositories whose README was never fetched into jobs,
// up to the configured batch size. Already-queued repositories are skipped
// by the queue's unique repo_id index.
func (s *Service) Generate(ctx context.Context) (*models.GenerateResult, error) {
	refs, err := s.repos.FindReadmeCandidates(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to find README candidates: %w", err)
	}
	if len(refs) == 0 {
		s.logger.Info().Msg("No repositories need README fetching")
		return &models.GenerateResult{}, nil
	}

	now := s.now().UTC()
	jobs := make([]*models.RepoJob, 0, len(refs))
	for _, ref := range refs {
		jobs = append(jobs, models.NewRepoJob(ref.RepoID, ref.FullName, s.maxAttempts, now))
	}
	return s.jobs.InsertNew(ctx, jobs)
}
