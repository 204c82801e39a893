package models

import (
	"testing"
	"time"
)

func TestPartition_EveryRepoHasExactlyOneOwner(t *testing.T) {
	const totalWorkers = 4

	partitions := make([]Partition, 0, totalWorkers)
	for workerID := 1; workerID <= totalWorkers; workerID++ {
		p, err := NewPartition(workerID, totalWorkers)
		if err != nil {
			t.Fatalf("NewPartition(%d, %d) failed: %v", workerID, totalWorkers, err)
		}
		partitions = append(partitions, p)
	}

	for repoID := int64(0); repoID < 1000; repoID++ {
		owners := 0
		for _, p := range partitions {
			if p.Matches(repoID) {
				owners++
			}
		}
		if owners != 1 {
			t.Fatalf("repo %d owned by %d partitions, want exactly 1", repoID, owners)
		}
	}
}

func TestPartition_SingleWorkerOwnsEverything(t *testing.T) {
	p, err := NewPartition(1, 1)
	if err != nil {
		t.Fatalf("NewPartition(1, 1) failed: %v", err)
	}
	for _, repoID := range []int64{0, 1, 7, 123456789} {
		if !p.Matches(repoID) {
			t.Errorf("single-worker partition rejected repo %d", repoID)
		}
	}
}

func TestPartition_RejectsBadWorkerIDs(t *testing.T) {
	cases := []struct {
		workerID, totalWorkers int
	}{
		{0, 3},
		{4, 3},
		{-1, 3},
		{1, 0},
	}
	for _, tc := range cases {
		if _, err := NewPartition(tc.workerID, tc.totalWorkers); err == nil {
			t.Errorf("NewPartition(%d, %d) accepted invalid identity", tc.workerID, tc.totalWorkers)
		}
	}
}

func TestNewSearchJob_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	window := DateWindow{From: "2023-04-01", To: "2023-04-07"}

	job := NewSearchJob("github_2023_q2", "stars:>100 created:{from_date}..{to_date}", window, 3, now)

	if job.Status != JobStatusPending {
		t.Errorf("new job status = %q, want %q", job.Status, JobStatusPending)
	}
	if job.Attempts != 0 {
		t.Errorf("new job attempts = %d, want 0", job.Attempts)
	}
	if job.MaxAttempts != 3 {
		t.Errorf("new job max_attempts = %d, want 3", job.MaxAttempts)
	}
	if !job.CreatedAt.Equal(now) || !job.UpdatedAt.Equal(now) {
		t.Error("new job created_at/updated_at not set to now")
	}
	if !job.CompletedAt.IsZero() {
		t.Error("new job completed_at should be zero")
	}
	if job.ID == "" || len(job.ID) != 8 {
		t.Errorf("new job id = %q, want 8-char id", job.ID)
	}
	if job.Label() != "github_2023_q2 2023-04-01..2023-04-07" {
		t.Errorf("Label() = %q", job.Label())
	}
}

func TestNewRepoJob_Label(t *testing.T) {
	job := NewRepoJob(42, "acme/widgets", 3, time.Now())
	if job.Label() != "acme/widgets" {
		t.Errorf("Label() = %q, want %q", job.Label(), "acme/widgets")
	}
	if job.Header().ID != job.ID {
		t.Error("Header() does not expose the embedded header")
	}
}

func TestIsTerminalStatus(t *testing.T) {
	terminal := []string{JobStatusDone, JobStatusFailed, JobStatusNoReadme}
	for _, s := range terminal {
		if !IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []string{JobStatusPending, JobStatusRunning, JobStatusThrottled} {
		if IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%q) = true, want false", s)
		}
	}
}
