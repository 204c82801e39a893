package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

// --- Mocks ---

type mockGemini struct {
	response string
	err      error
	prompts  []string
}

func (m *mockGemini) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

type mockRepoStore struct {
	repo   *models.Repository
	getErr error

	classifiedID int64
	verdict      *models.Classification
	classifiedAt time.Time
	setErr       error

	candidates    []*models.RepoRef
	candidatesErr error
	limit         int
}

func (m *mockRepoStore) BulkInsert(_ context.Context, _ []*models.Repository) (*models.GenerateResult, error) {
	return nil, nil
}

func (m *mockRepoStore) GetByRepoID(_ context.Context, _ int64) (*models.Repository, error) {
	return m.repo, m.getErr
}

func (m *mockRepoStore) SetReadme(_ context.Context, _ int64, _ string, _ time.Time) error {
	return nil
}
func (m *mockRepoStore) MarkReadmeMissing(_ context.Context, _ int64, _ time.Time) error { return nil }

func (m *mockRepoStore) SetClassification(_ context.Context, repoID int64, c *models.Classification, classifiedAt time.Time) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.classifiedID = repoID
	m.verdict = c
	m.classifiedAt = classifiedAt
	return nil
}

func (m *mockRepoStore) FindReadmeCandidates(_ context.Context, _ int) ([]*models.RepoRef, error) {
	return nil, nil
}

func (m *mockRepoStore) FindClassifyCandidates(_ context.Context, limit int) ([]*models.RepoRef, error) {
	m.limit = limit
	return m.candidates, m.candidatesErr
}

func (m *mockRepoStore) Count(_ context.Context) (int, error) { return 0, nil }

type mockRepoJobQueue struct {
	insertedJobs []*models.RepoJob
	insertCalls  int
	doneID       string
}

func (m *mockRepoJobQueue) InsertNew(_ context.Context, jobs []*models.RepoJob) (*models.GenerateResult, error) {
	m.insertedJobs = jobs
	m.insertCalls++
	return &models.GenerateResult{Inserted: len(jobs)}, nil
}

func (m *mockRepoJobQueue) Claim(_ context.Context) (*models.RepoJob, error) { return nil, nil }

func (m *mockRepoJobQueue) MarkDone(_ context.Context, jobID string) error {
	m.doneID = jobID
	return nil
}

func (m *mockRepoJobQueue) MarkNoReadme(_ context.Context, _ string) error    { return nil }
func (m *mockRepoJobQueue) Release(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockRepoJobQueue) Throttle(_ context.Context, _, _ string) error     { return nil }
func (m *mockRepoJobQueue) Retry(_ context.Context, _, _ string) error        { return nil }
func (m *mockRepoJobQueue) Fail(_ context.Context, _, _ string) error         { return nil }
func (m *mockRepoJobQueue) ActiveCount(_ context.Context) (int, error)        { return 0, nil }
func (m *mockRepoJobQueue) ResetRunning(_ context.Context) (int, error)       { return 0, nil }
func (m *mockRepoJobQueue) Summary(_ context.Context) (*models.QueueSummary, error) {
	return nil, nil
}

func repoWithReadme(repoID int64, fullName, readme string) *models.Repository {
	return &models.Repository{
		Source:   models.SourceGitHub,
		RepoID:   repoID,
		FullName: fullName,
		Enrichment: models.Enrichment{
			ReadmeFetched: true,
			ReadmeContent: &readme,
		},
	}
}

func newTestService(llm *mockGemini, repos *mockRepoStore, jobs *mockRepoJobQueue, now time.Time) *Service {
	config := common.NewDefaultConfig()
	config.Classify.BatchSize = 50
	config.Pipeline.MaxAttempts = 3

	svc := NewService(llm, repos, jobs, config, common.NewSilentLogger())
	svc.now = func() time.Time { return now }
	return svc
}

const goodResponse = `{"is_library": true, "category": "validation", "confidence": 0.88, "reason": "schema validation package"}`

// --- Tests ---

func TestExecute_ClassifiesRepository(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	llm := &mockGemini{response: goodResponse}
	repos := &mockRepoStore{repo: repoWithReadme(9, "acme/checker", "# Checker\nValidates things.")}
	jobs := &mockRepoJobQueue{}
	svc := newTestService(llm, repos, jobs, now)

	job := models.NewRepoJob(9, "acme/checker", 3, now)
	if err := svc.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("expected one LLM call, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "Repository: acme/checker") {
		t.Error("prompt should carry the repository name")
	}
	if !strings.Contains(llm.prompts[0], "# Checker\nValidates things.") {
		t.Error("prompt should carry the README")
	}

	if repos.classifiedID != 9 {
		t.Errorf("expected classification stored for repo 9, got %d", repos.classifiedID)
	}
	if repos.verdict == nil || repos.verdict.Category != "validation" || !repos.verdict.IsLibrary {
		t.Errorf("verdict not stored: %+v", repos.verdict)
	}
	if !repos.classifiedAt.Equal(now) {
		t.Errorf("expected classified_at %v, got %v", now, repos.classifiedAt)
	}
	if jobs.doneID != job.ID {
		t.Errorf("expected job %s marked done, got %q", job.ID, jobs.doneID)
	}
}

func TestExecute_TruncatesLongReadme(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	readme := strings.Repeat("a", 2000) + "TAIL"
	llm := &mockGemini{response: goodResponse}
	repos := &mockRepoStore{repo: repoWithReadme(9, "acme/long", readme)}
	svc := newTestService(llm, repos, &mockRepoJobQueue{}, now)

	job := models.NewRepoJob(9, "acme/long", 3, now)
	if err := svc.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	prompt := llm.prompts[0]
	if strings.Contains(prompt, "TAIL") {
		t.Error("README should be cut at 2000 runes")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 2000)) {
		t.Error("the first 2000 runes should survive")
	}
}

func TestTruncateRunes_MultiByte(t *testing.T) {
	s := strings.Repeat("날", 10)
	got := truncateRunes(s, 4)
	if got != strings.Repeat("날", 4) {
		t.Errorf("expected 4 runes, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation must not split a rune")
	}
	if truncateRunes("short", 2000) != "short" {
		t.Error("short strings pass through unchanged")
	}
}

func TestExecute_MissingRepository(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	llm := &mockGemini{response: goodResponse}
	svc := newTestService(llm, &mockRepoStore{}, &mockRepoJobQueue{}, now)

	job := models.NewRepoJob(404, "acme/ghost", 3, now)
	err := svc.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error for a missing repository document")
	}
	if !strings.Contains(err.Error(), "repository 404 not found") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(llm.prompts) != 0 {
		t.Error("the LLM must not be called without a document")
	}
}

func TestExecute_EmptyReadmeIsJobError(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)

	for _, repo := range []*models.Repository{
		{RepoID: 5, FullName: "acme/none", Enrichment: models.Enrichment{ReadmeFetched: true}},
		repoWithReadme(5, "acme/none", ""),
	} {
		llm := &mockGemini{response: goodResponse}
		svc := newTestService(llm, &mockRepoStore{repo: repo}, &mockRepoJobQueue{}, now)

		job := models.NewRepoJob(5, "acme/none", 3, now)
		if err := svc.Execute(context.Background(), job); err == nil {
			t.Fatal("expected an error when no README content is stored")
		}
		if len(llm.prompts) != 0 {
			t.Error("the LLM must not be called without content")
		}
	}
}

func TestExecute_BadVerdictLeavesJobHeld(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	llm := &mockGemini{response: `{"is_library": true}`}
	repos := &mockRepoStore{repo: repoWithReadme(9, "acme/x", "readme")}
	jobs := &mockRepoJobQueue{}
	svc := newTestService(llm, repos, jobs, now)

	job := models.NewRepoJob(9, "acme/x", 3, now)
	err := svc.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if err.Error() != "LLM response missing key: confidence" {
		t.Errorf("unexpected error: %v", err)
	}
	if repos.verdict != nil {
		t.Error("no verdict may be stored from an invalid response")
	}
	if jobs.doneID != "" {
		t.Error("job must stay held after a parse failure")
	}
}

func TestExecute_LLMErrorLeavesJobHeld(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	llm := &mockGemini{err: errors.New("quota exceeded")}
	repos := &mockRepoStore{repo: repoWithReadme(9, "acme/x", "readme")}
	jobs := &mockRepoJobQueue{}
	svc := newTestService(llm, repos, jobs, now)

	job := models.NewRepoJob(9, "acme/x", 3, now)
	if err := svc.Execute(context.Background(), job); err == nil {
		t.Fatal("expected LLM error to propagate")
	}
	if jobs.doneID != "" {
		t.Error("job must stay held after an LLM failure")
	}
}

func TestGenerate_BuildsJobsFromCandidates(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	repos := &mockRepoStore{candidates: []*models.RepoRef{
		{RepoID: 301, FullName: "acme/alpha"},
		{RepoID: 302, FullName: "acme/beta"},
		{RepoID: 303, FullName: "acme/gamma"},
	}}
	jobs := &mockRepoJobQueue{}
	svc := newTestService(&mockGemini{}, repos, jobs, now)

	result, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if repos.limit != 50 {
		t.Errorf("expected candidate batch size 50, got %d", repos.limit)
	}
	if result.Inserted != 3 || len(jobs.insertedJobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs.insertedJobs))
	}
	if jobs.insertedJobs[2].RepoID != 303 || jobs.insertedJobs[2].FullName != "acme/gamma" {
		t.Errorf("job identity not mapped: %+v", jobs.insertedJobs[2])
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	jobs := &mockRepoJobQueue{}
	svc := newTestService(&mockGemini{}, &mockRepoStore{}, jobs, now)

	result, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Inserted != 0 || jobs.insertCalls != 0 {
		t.Errorf("expected no insert calls, got %d", jobs.insertCalls)
	}
}
