// Package types defines core data structures for the bug dashboard.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Bug represents a tracked issue pulled from the external issue tracker.
//
// Identity: Key is the external issue key (e.g., "MIG-1234") and is unique
// across the store. ID is the local row ID assigned on first insert.
// On every subsequent sighting during reconciliation, all mutable fields are
// overwritten in full; the triage block is written separately.
type Bug struct {
	ID         int64  `json:"id"`
	Key        string `json:"key"`
	ExternalID string `json:"external_id,omitempty"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`

	Status         string `json:"status"`
	StatusCategory string `json:"status_category,omitempty"`
	Priority       string `json:"priority,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Component string   `json:"component,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Reporter  string   `json:"reporter,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`

	// Raw is the upstream record as returned by the search feed, kept for
	// reference and debugging. Never interpreted after normalization.
	Raw []byte `json:"-"`

	FetchedAt time.Time `json:"fetched_at"`

	Triage *TriageResult `json:"triage,omitempty"`
}

// Validate checks that the bug has the fields reconciliation depends on.
func (b *Bug) Validate() error {
	if strings.TrimSpace(b.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if b.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	if b.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// IsOpen reports whether the bug's status category indicates unresolved work.
func (b *Bug) IsOpen() bool {
	return b.StatusCategory != "Done"
}

// ResolutionDays returns the whole days between creation and resolution,
// or -1 when the bug is unresolved.
func (b *Bug) ResolutionDays() int {
	if b.ResolvedAt == nil {
		return -1
	}
	return int(b.ResolvedAt.Sub(b.CreatedAt).Hours() / 24)
}

// Triaged reports whether the AI triage block has been populated.
func (b *Bug) Triaged() bool {
	return b.Triage != nil && !b.Triage.TriagedAt.IsZero()
}

// TriageResult is the structured classification produced by the AI triage
// model for a single bug. Confidence is always within [0, 1]; out-of-range
// model output is clamped at parse time, not rejected.
type TriageResult struct {
	Category   string    `json:"category"`
	Priority   string    `json:"priority_recommendation"`
	Urgency    string    `json:"urgency"`
	Team       string    `json:"suggested_team"`
	Tags       []string  `json:"tags"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	TriagedAt  time.Time `json:"triaged_at,omitempty"`
}

// ClampConfidence forces Confidence into [0, 1].
func (t *TriageResult) ClampConfidence() {
	if t.Confidence < 0 {
		t.Confidence = 0
	}
	if t.Confidence > 1 {
		t.Confidence = 1
	}
}

// Commit represents a source-control commit pulled from the commit-history
// feed. SHA is the content hash and is immutable; on re-sight only Message,
// Headline, and IssueKeys are refreshed (message amendment tolerance).
type Commit struct {
	ID       int64  `json:"id"`
	SHA      string `json:"sha"`
	ShortSHA string `json:"short_sha"`

	Message  string `json:"message"`
	Headline string `json:"message_headline"`

	AuthorName  string     `json:"author_name,omitempty"`
	AuthorEmail string     `json:"author_email,omitempty"`
	AuthoredAt  *time.Time `json:"authored_at,omitempty"`

	URL string `json:"url,omitempty"`

	// IssueKeys holds the issue keys extracted from the commit message,
	// restricted to the configured project prefix, deduplicated,
	// first-seen order preserved.
	IssueKeys []string `json:"issue_keys,omitempty"`
}

// Validate checks commit identity fields.
func (c *Commit) Validate() error {
	if c.SHA == "" {
		return fmt.Errorf("sha is required")
	}
	return nil
}

// HeadlineMaxLen caps the stored first-line headline of a commit message.
const HeadlineMaxLen = 200

// ShortSHALen is the number of leading hex characters kept as the short hash.
const ShortSHALen = 7

// CommitLink relates one commit to one bug via the literal key string that
// appeared in the commit message. The (CommitID, BugID) pair is unique;
// links are insert-only and never updated or deleted by reconciliation.
type CommitLink struct {
	ID       int64  `json:"id"`
	CommitID int64  `json:"commit_id"`
	BugID    int64  `json:"bug_id"`
	Key      string `json:"key"`
}

// BugFilter narrows bug listing queries. Zero values mean "no filter".
type BugFilter struct {
	Status   string
	Priority string
	Search   string // substring match against summary
}

// Page describes offset pagination for listing queries.
type Page struct {
	Number int // 1-based
	Size   int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TriageStats summarizes triage coverage across the store.
type TriageStats struct {
	TotalBugs     int            `json:"total_bugs"`
	TriagedBugs   int            `json:"triaged_bugs"`
	UntriagedBugs int            `json:"untriaged_bugs"`
	ByCategory    map[string]int `json:"by_category"`
	ByTeam        map[string]int `json:"by_team"`
}

// CommitStats summarizes commit linkage across the store.
type CommitStats struct {
	TotalCommits    int `json:"total_commits"`
	CommitsWithKeys int `json:"commits_with_keys"`
	TotalLinks      int `json:"total_links"`
	BugsWithCommits int `json:"bugs_with_commits"`
}
