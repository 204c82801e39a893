package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const repoTable = "github_repositories"

// RepoStore implements interfaces.RepositoryStore over github_repositories.
// Documents are keyed by the numeric GitHub repo id.
type RepoStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewRepoStore creates a store for enriched repository documents.
func NewRepoStore(db *surrealdb.DB, logger *common.Logger) *RepoStore {
	return &RepoStore{db: db, logger: logger}
}

func repoRID(repoID int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(repoTable, repoID)
}

// BulkInsert creates repository documents one by one, counting repo_id
// collisions as skips. Overlapping search windows re-discover repositories,
// so conflicts are partial success, not errors.
func (s *RepoStore) BulkInsert(ctx context.Context, repos []*models.Repository) (*models.GenerateResult, error) {
	result := &models.GenerateResult{}

	sql := "CREATE $rid CONTENT $repo"
	for _, repo := range repos {
		vars := map[string]any{
			"rid":  repoRID(repo.RepoID),
			"repo": repo,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			if isDuplicateError(err) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("failed to insert repository %s: %w", repo.FullName, err)
		}
		result.Inserted++
	}

	return result, nil
}

// GetByRepoID loads one repository document; nil when absent.
func (s *RepoStore) GetByRepoID(ctx context.Context, repoID int64) (*models.Repository, error) {
	repo, err := surrealdb.Select[models.Repository](ctx, s.db, repoRID(repoID))
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %d: %w", repoID, err)
	}
	return repo, nil
}

// SetReadme records fetched README content and flips readme_fetched.
func (s *RepoStore) SetReadme(ctx context.Context, repoID int64, content string, fetchedAt time.Time) error {
	sql := `UPDATE $rid SET
		enrichment.readme_fetched = true,
		enrichment.readme_content = $content,
		enrichment.readme_updated_at = $fetched_at`
	vars := map[string]any{
		"rid":        repoRID(repoID),
		"content":    content,
		"fetched_at": fetchedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set readme for repository %d: %w", repoID, err)
	}
	return nil
}

// MarkReadmeMissing records that the repository has no README. The fetched
// flag still flips so the generator never re-queues the repo.
func (s *RepoStore) MarkReadmeMissing(ctx context.Context, repoID int64, fetchedAt time.Time) error {
	sql := `UPDATE $rid SET
		enrichment.readme_fetched = true,
		enrichment.readme_content = NONE,
		enrichment.readme_updated_at = $fetched_at`
	vars := map[string]any{
		"rid":        repoRID(repoID),
		"fetched_at": fetchedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to mark readme missing for repository %d: %w", repoID, err)
	}
	return nil
}

// SetClassification writes the LLM verdict and flips ai_classified.
func (s *RepoStore) SetClassification(ctx context.Context, repoID int64, c *models.Classification, classifiedAt time.Time) error {
	sql := `UPDATE $rid SET
		classification = $classification,
		enrichment.ai_classified = true,
		enrichment.classified_at = $classified_at`
	vars := map[string]any{
		"rid":            repoRID(repoID),
		"classification": c,
		"classified_at":  classifiedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set classification for repository %d: %w", repoID, err)
	}
	return nil
}

// FindReadmeCandidates lists repositories whose README was never fetched.
func (s *RepoStore) FindReadmeCandidates(ctx context.Context, limit int) ([]*models.RepoRef, error) {
	sql := "SELECT repo_id, full_name FROM " + repoTable + " WHERE enrichment.readme_fetched = false LIMIT $limit"
	return s.queryRefs(ctx, sql, map[string]any{"limit": limit})
}

// FindClassifyCandidates lists repositories with README content that were
// never classified. Repos without a README never reach the classify queue.
func (s *RepoStore) FindClassifyCandidates(ctx context.Context, limit int) ([]*models.RepoRef, error) {
	sql := "SELECT repo_id, full_name FROM " + repoTable +
		" WHERE enrichment.readme_fetched = true AND enrichment.ai_classified = false" +
		" AND string::len(enrichment.readme_content ?? '') > 0 LIMIT $limit"
	return s.queryRefs(ctx, sql, map[string]any{"limit": limit})
}

// Count returns the total number of repository documents.
func (s *RepoStore) Count(ctx context.Context) (int, error) {
	sql := "SELECT count() AS cnt FROM " + repoTable + " GROUP ALL"

	type countResult struct {
		Cnt int `json:"cnt"`
	}

	results, err := surrealdb.Query[[]countResult](ctx, s.db, sql, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count repositories: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0].Cnt, nil
	}
	return 0, nil
}

func (s *RepoStore) queryRefs(ctx context.Context, sql string, vars map[string]any) ([]*models.RepoRef, error) {
	results, err := surrealdb.Query[[]models.RepoRef](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository candidates: %w", err)
	}

	var refs []*models.RepoRef
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			refs = append(refs, &(*results)[0].Result[i])
		}
	}
	return refs, nil
}

// Compile-time check
var _ interfaces.RepositoryStore = (*RepoStore)(nil)
