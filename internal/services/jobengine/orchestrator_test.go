package jobengine

import (
	"context"
	"errors"
	"testing"

	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/interfaces"
	"github.com/orange-taco/ainsight-backend/internal/models"
)

// --- fakes ---

type fakeStorage struct {
	pingErr error
}

func (s *fakeStorage) RepositoryStore() interfaces.RepositoryStore { return nil }
func (s *fakeStorage) SearchJobs() interfaces.SearchJobQueue       { return nil }
func (s *fakeStorage) ReadmeJobs() interfaces.RepoJobQueue         { return nil }
func (s *fakeStorage) ClassifyJobs() interfaces.RepoJobQueue       { return nil }
func (s *fakeStorage) Ping(_ context.Context) error                { return s.pingErr }
func (s *fakeStorage) Close() error                                { return nil }

type fakeAdmin struct {
	swept      int
	resetErr   error
	resetCalls int
	summaries  []*models.QueueSummary
	summaryErr error
}

func (a *fakeAdmin) ResetRunning(_ context.Context) (int, error) {
	a.resetCalls++
	return a.swept, a.resetErr
}

func (a *fakeAdmin) Summary(_ context.Context) (*models.QueueSummary, error) {
	if a.summaryErr != nil {
		return nil, a.summaryErr
	}
	if len(a.summaries) == 0 {
		return &models.QueueSummary{ByStatus: map[string]int{}}, nil
	}
	s := a.summaries[0]
	if len(a.summaries) > 1 {
		a.summaries = a.summaries[1:]
	}
	return s, nil
}

func summaryOf(byStatus map[string]int) *models.QueueSummary {
	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &models.QueueSummary{Total: total, ByStatus: byStatus}
}

type generateRecorder struct {
	calls  int
	result *models.GenerateResult
	err    error
}

func (g *generateRecorder) generate(_ context.Context) (*models.GenerateResult, error) {
	g.calls++
	if g.result == nil {
		return &models.GenerateResult{}, g.err
	}
	return g.result, g.err
}

// --- tests ---

func TestOrchestrator_Bootstrap_GeneratesOnEmptyQueue(t *testing.T) {
	admin := &fakeAdmin{swept: 2}
	gen := &generateRecorder{result: &models.GenerateResult{Inserted: 10, Skipped: 0}}

	o := NewOrchestrator("search", &fakeStorage{}, admin, gen.generate, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if admin.resetCalls != 1 {
		t.Errorf("expected 1 reset sweep, got %d", admin.resetCalls)
	}
	if gen.calls != 1 {
		t.Errorf("expected generation to run once, got %d", gen.calls)
	}
}

func TestOrchestrator_Bootstrap_SkipsGenerationWithActiveJobs(t *testing.T) {
	admin := &fakeAdmin{summaries: []*models.QueueSummary{
		summaryOf(map[string]int{models.JobStatusPending: 3, models.JobStatusDone: 7}),
	}}
	gen := &generateRecorder{}

	o := NewOrchestrator("readme", &fakeStorage{}, admin, gen.generate, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if gen.calls != 0 {
		t.Errorf("expected generation to be skipped, got %d calls", gen.calls)
	}
}

func TestOrchestrator_Bootstrap_ThrottledJobsCountAsActive(t *testing.T) {
	admin := &fakeAdmin{summaries: []*models.QueueSummary{
		summaryOf(map[string]int{models.JobStatusThrottled: 1, models.JobStatusDone: 9}),
	}}
	gen := &generateRecorder{}

	o := NewOrchestrator("search", &fakeStorage{}, admin, gen.generate, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if gen.calls != 0 {
		t.Errorf("expected parked jobs to block generation, got %d calls", gen.calls)
	}
}

func TestOrchestrator_Bootstrap_GeneratesWhenAllJobsFinished(t *testing.T) {
	admin := &fakeAdmin{summaries: []*models.QueueSummary{
		summaryOf(map[string]int{models.JobStatusDone: 5, models.JobStatusFailed: 1}),
		summaryOf(map[string]int{models.JobStatusDone: 5, models.JobStatusFailed: 1, models.JobStatusPending: 4}),
	}}
	gen := &generateRecorder{result: &models.GenerateResult{Inserted: 4, Skipped: 6}}

	o := NewOrchestrator("classify", &fakeStorage{}, admin, gen.generate, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("expected generation to run once, got %d", gen.calls)
	}
}

func TestOrchestrator_Bootstrap_NilGenerateNeverSeeds(t *testing.T) {
	admin := &fakeAdmin{}

	// search workers other than worker 1 run without a generator
	o := NewOrchestrator("search", &fakeStorage{}, admin, nil, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
}

func TestOrchestrator_Bootstrap_AbortsWhenStoreUnreachable(t *testing.T) {
	admin := &fakeAdmin{}
	gen := &generateRecorder{}

	o := NewOrchestrator("search", &fakeStorage{pingErr: errors.New("connection refused")}, admin, gen.generate, common.NewLogger("error"))
	err := o.Bootstrap(context.Background())
	if err == nil {
		t.Fatal("expected bootstrap to fail when the store is unreachable")
	}
	if admin.resetCalls != 0 {
		t.Errorf("expected no sweep after failed ping, got %d", admin.resetCalls)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generation after failed ping, got %d", gen.calls)
	}
}

func TestOrchestrator_Bootstrap_PropagatesGenerationFailure(t *testing.T) {
	admin := &fakeAdmin{}
	gen := &generateRecorder{err: errors.New("window enumeration broken")}

	o := NewOrchestrator("search", &fakeStorage{}, admin, gen.generate, common.NewLogger("error"))
	err := o.Bootstrap(context.Background())
	if err == nil {
		t.Fatal("expected bootstrap to surface generation failure")
	}
}

func TestOrchestrator_Bootstrap_PropagatesSweepFailure(t *testing.T) {
	admin := &fakeAdmin{resetErr: errors.New("timeout")}

	o := NewOrchestrator("search", &fakeStorage{}, admin, nil, common.NewLogger("error"))
	if err := o.Bootstrap(context.Background()); err == nil {
		t.Fatal("expected bootstrap to surface sweep failure")
	}
}
