// Package classify implements the third pipeline stage: deciding with an
// LLM whether each repository is a reusable library and in which category.
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

// readmeMaxRunes bounds the README excerpt sent to the model. 2000 runes
// is enough to judge library-ness without paying for full documents.
const readmeMaxRunes = 2000

// Service executes classify jobs and generates them from fetched-but-
// unclassified repositories.
type Service struct {
	llm         interfaces.GeminiClient
	repos       interfaces.RepositoryStore
	jobs        interfaces.RepoJobQueue
	logger      *common.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time // injectable clock for testing
}

// NewService creates a classify stage service.
func NewService(llm interfaces.GeminiClient, repos interfaces.RepositoryStore, jobs interfaces.RepoJobQueue, config *common.Config, logger *common.Logger) *Service {
	return &Service{
		llm:         llm,
		repos:       repos,
		jobs:        jobs,
		logger:      logger,
		batchSize:   config.Classify.BatchSize,
		maxAttempts: config.Pipeline.MaxAttempts,
		now:         time.Now,
	}
}

// Execute classifies one repository from its stored README excerpt.
// A missing document or missing README content is an ordinary job error:
// the job retries and eventually fails, without poisoning the queue.
func (s *Service) Execute(ctx context.Context, job *models.RepoJob) error {
	repo, err := s.repos.GetByRepoID(ctx, job.RepoID)
	if err != nil {
		return fmt.Errorf("failed to load repository %d: %w", job.RepoID, err)
	}
	if repo == nil {
		return fmt.Errorf("repository %d not found", job.RepoID)
	}
	if repo.Enrichment.ReadmeContent == nil || *repo.Enrichment.ReadmeContent == "" {
		return fmt.Errorf("no README content for %s", job.FullName)
	}

	readme := truncateRunes(*repo.Enrichment.ReadmeContent, readmeMaxRunes)
	response, err := s.llm.GenerateContent(ctx, BuildPrompt(job.FullName, readme))
	if err != nil {
		return fmt.Errorf("failed to classify %s: %w", job.FullName, err)
	}

	verdict, err := ParseVerdict(response)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.repos.SetClassification(ctx, job.RepoID, verdict, now); err != nil {
		return fmt.Errorf("failed to store classification for %s: %w", job.FullName, err)
	}
	if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("repo", job.FullName).
		Bool("is_library", verdict.IsLibrary).
		Str("category", verdict.Category).
		Float64("confidence", verdict.Confidence).
		Msg("Repository classified")
	return nil
}

// Generate turns fetched-but-unclassified repositories into jobs, up to the
// configured batch size. Repositories whose README came back empty are left
// alone; there is nothing to classify.
func (s *Service) Generate(ctx context.Context) (*models.GenerateResult, error) {
	refs, err := s.repos.FindClassifyCandidates(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to find classify candidates: %w", err)
	}
	if len(refs) == 0 {
		s.logger.Info().Msg("No repositories need classification")
		return &models.GenerateResult{}, nil
	}

	now := s.now().UTC()
	jobs := make([]*models.RepoJob, 0, len(refs))
	for _, ref := range refs {
		jobs = append(jobs, models.NewRepoJob(ref.RepoID, ref.FullName, s.maxAttempts, now))
	}
	return s.jobs.InsertNew(ctx, jobs)
}

// truncateRunes cuts s at n runes, leaving multi-byte sequences intact.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
