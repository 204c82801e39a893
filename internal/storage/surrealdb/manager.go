package surrealdb

import (
	"context"
	"fmt"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const (
	readmeJobTable   = "github_readme_jobs"
	classifyJobTable = "github_classify_jobs"
)

// schema defines the pipeline tables and the indexes behind the hot queries:
// unique natural keys for idempotent generation, (status, created_at) for
// claim scans, updated_at for failure tails, and the enrichment flags for
// candidate scans.
var schema = []string{
	"DEFINE TABLE IF NOT EXISTS " + repoTable + " SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS repo_id_unique ON TABLE " + repoTable + " COLUMNS repo_id UNIQUE",
	"DEFINE INDEX IF NOT EXISTS readme_fetched_idx ON TABLE " + repoTable + " COLUMNS enrichment.readme_fetched",
	"DEFINE INDEX IF NOT EXISTS ai_classified_idx ON TABLE " + repoTable + " COLUMNS enrichment.ai_classified",

	"DEFINE TABLE IF NOT EXISTS " + searchJobTable + " SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS bucket_window_unique ON TABLE " + searchJobTable + " COLUMNS bucket, window.from, window.to UNIQUE",
	"DEFINE INDEX IF NOT EXISTS status_created_idx ON TABLE " + searchJobTable + " COLUMNS status, created_at",
	"DEFINE INDEX IF NOT EXISTS updated_at_idx ON TABLE " + searchJobTable + " COLUMNS updated_at",

	"DEFINE TABLE IF NOT EXISTS " + readmeJobTable + " SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS repo_id_unique ON TABLE " + readmeJobTable + " COLUMNS repo_id UNIQUE",
	"DEFINE INDEX IF NOT EXISTS status_created_idx ON TABLE " + readmeJobTable + " COLUMNS status, created_at",
	"DEFINE INDEX IF NOT EXISTS updated_at_idx ON TABLE " + readmeJobTable + " COLUMNS updated_at",

	"DEFINE TABLE IF NOT EXISTS " + classifyJobTable + " SCHEMALESS",
	"DEFINE INDEX IF NOT EXISTS repo_id_unique ON TABLE " + classifyJobTable + " COLUMNS repo_id UNIQUE",
	"DEFINE INDEX IF NOT EXISTS status_created_idx ON TABLE " + classifyJobTable + " COLUMNS status, created_at",
	"DEFINE INDEX IF NOT EXISTS updated_at_idx ON TABLE " + classifyJobTable + " COLUMNS updated_at",
}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	repoStore    *RepoStore
	searchJobs   *SearchJobStore
	readmeJobs   *RepoJobStore
	classifyJobs *RepoJobStore
}

// NewManager connects to SurrealDB, ensures the schema, and wires the stores.
// The README queue is scoped to this worker's partition; the classify queue
// is unpartitioned.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := surrealdb.Query[any](ctx, db, stmt, nil); err != nil {
			return nil, fmt.Errorf("failed to define schema (%s): %w", stmt, err)
		}
	}

	partition, err := models.NewPartition(config.Pipeline.WorkerID, config.Pipeline.TotalWorkers)
	if err != nil {
		return nil, fmt.Errorf("invalid worker partition: %w", err)
	}

	m := &Manager{
		db:           db,
		logger:       logger,
		repoStore:    NewRepoStore(db, logger),
		searchJobs:   NewSearchJobStore(db, logger),
		readmeJobs:   NewRepoJobStore(db, logger, readmeJobTable, &partition),
		classifyJobs: NewRepoJobStore(db, logger, classifyJobTable, nil),
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Int("worker_id", partition.WorkerID).
		Int("total_workers", partition.TotalWorkers).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) RepositoryStore() interfaces.RepositoryStore {
	return m.repoStore
}

func (m *Manager) SearchJobs() interfaces.SearchJobQueue {
	return m.searchJobs
}

func (m *Manager) ReadmeJobs() interfaces.RepoJobQueue {
	return m.readmeJobs
}

func (m *Manager) ClassifyJobs() interfaces.RepoJobQueue {
	return m.classifyJobs
}

// Ping verifies the connection is alive; stages abort at bootstrap when it fails.
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, m.db, "RETURN 1", nil); err != nil {
		return fmt.Errorf("surrealdb ping failed: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
