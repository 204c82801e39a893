package models

import "time"

// SourceGitHub is the only ingest source this pipeline produces.
const SourceGitHub = "github"

// RepoSnapshot is one repository search hit as returned by the GitHub API,
// before filtering and mapping into a Repository document.
type RepoSnapshot struct {
	RepoID        int64     `json:"repo_id"`
	FullName      string    `json:"full_name"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	URL           string    `json:"url"`
	Description   string    `json:"description"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Language      string    `json:"language"`
	IsFork        bool      `json:"is_fork"`
	SizeKB        int       `json:"size_kb"`
	Topics        []string  `json:"topics"`
	License       string    `json:"license"`
	OpenIssues    int       `json:"open_issues"`
	Watchers      int       `json:"watchers"`
	DefaultBranch string    `json:"default_branch"`
	Archived      bool      `json:"archived"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
}

// RepoSignals are the ranking signals surfaced from the search snapshot.
type RepoSignals struct {
	Stars     int    `json:"stars"`
	Forks     int    `json:"forks"`
	Language  string `json:"language"`
	IsFork    bool   `json:"is_fork"`
	HasTopics bool   `json:"has_topics"`
}

// RepoActivity holds the repository's own timestamps (not ingest timestamps).
type RepoActivity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	PushedAt  time.Time `json:"pushed_at"`
}

// SearchSnapshot preserves the raw search fields that don't earn a
// top-level home on the document.
type SearchSnapshot struct {
	Description   string   `json:"description"`
	SizeKB        int      `json:"size_kb"`
	Topics        []string `json:"topics"`
	License       string   `json:"license"`
	OpenIssues    int      `json:"open_issues"`
	Watchers      int      `json:"watchers"`
	DefaultBranch string   `json:"default_branch"`
	Archived      bool     `json:"archived"`
}

// RawData wraps source payloads kept verbatim for reprocessing.
type RawData struct {
	SearchSnapshot SearchSnapshot `json:"search_snapshot"`
}

// IngestMeta records which search produced the document.
type IngestMeta struct {
	Bucket          string    `json:"bucket"`
	Query           string    `json:"query"`
	IngestedAt      time.Time `json:"ingested_at"`
	PipelineVersion string    `json:"pipeline_version"`
}

// Enrichment tracks the downstream stages' progress on a repository.
// The fetched/classified flags only ever move false -> true; ReadmeContent
// stays nil both before the README stage runs and when no README exists
// (ReadmeFetched distinguishes the two).
type Enrichment struct {
	ReadmeFetched   bool       `json:"readme_fetched"`
	ReadmeContent   *string    `json:"readme_content"`
	ReadmeUpdatedAt *time.Time `json:"readme_updated_at,omitempty"`
	AIClassified    bool       `json:"ai_classified"`
	ClassifiedAt    *time.Time `json:"classified_at,omitempty"`
}

// Classification is the LLM verdict for a repository.
type Classification struct {
	IsLibrary  bool    `json:"is_library"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Repository is the enriched repository document.
type Repository struct {
	Source         string          `json:"source"`
	RepoID         int64           `json:"repo_id"`
	FullName       string          `json:"full_name"`
	Name           string          `json:"name"`
	Owner          string          `json:"owner"`
	URL            string          `json:"url"`
	Signals        RepoSignals     `json:"signals"`
	Activity       RepoActivity    `json:"activity"`
	Raw            RawData         `json:"raw"`
	IngestMeta     IngestMeta      `json:"ingest_meta"`
	Enrichment     Enrichment      `json:"enrichment"`
	Classification *Classification `json:"classification,omitempty"`
}

// RepoRef is the minimal repository identity the job generators read.
type RepoRef struct {
	RepoID   int64  `json:"repo_id"`
	FullName string `json:"full_name"`
}
