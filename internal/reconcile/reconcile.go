// Package reconcile orchestrates the sync passes: fetch issues and commits
// from their upstream feeds, upsert them into the store, link commits to
// bugs, and enrich never-triaged bugs with AI classification. Each pass runs
// inside a single transaction; any fetch or persistence failure rolls the
// whole pass back.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/github"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/jira"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/triage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// ErrCommitsUnavailable means the commit feed was not configured; commit
// sync cannot run at all.
var ErrCommitsUnavailable = errors.New("github integration unavailable")

// IssueSource fetches raw issues from the tracker feed.
type IssueSource interface {
	FetchAll(ctx context.Context, pageSize int, statusFilter string) ([]jira.Issue, error)
}

// CommitSource fetches raw commits from the source-control feed.
type CommitSource interface {
	FetchAll(ctx context.Context, maxCommits int, since time.Time) ([]github.RestCommit, error)
	Available() bool
}

// Classifier produces a triage result for a bug.
type Classifier interface {
	Classify(ctx context.Context, bug *types.Bug) (*types.TriageResult, error)
	Available() bool
}

// Reconciler drives sync and triage passes against the store.
type Reconciler struct {
	Issues   IssueSource
	Commits  CommitSource
	Triage   Classifier
	Store    storage.Storage
	Project  string
	PageSize int

	// OnMessage receives progress lines for CLI display (optional).
	OnMessage func(msg string)
}

// IssueSyncResult reports the counters of one issue sync pass.
type IssueSyncResult struct {
	Fetched       int `json:"fetched"`
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Triaged       int `json:"triaged"`
	TriageErrors  int `json:"triage_errors"`
	TriageSkipped int `json:"triage_skipped"`
}

// CommitSyncResult reports the counters of one commit sync pass.
type CommitSyncResult struct {
	Fetched      int `json:"fetched"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	LinksCreated int `json:"links_created"`
}

// TriageBacklogResult reports the counters of a backlog triage pass.
type TriageBacklogResult struct {
	Eligible int `json:"eligible"`
	Triaged  int `json:"triaged"`
	Errors   int `json:"errors"`
}

// IssueSyncOptions configures SyncIssues.
type IssueSyncOptions struct {
	// FetchAll includes resolved issues; otherwise only unresolved ones
	// are requested from the feed.
	FetchAll bool
	// AutoTriage classifies newly created and never-triaged issues after
	// the upsert phase.
	AutoTriage bool
	// TriageLimit caps classifications per pass. 0 means unlimited.
	TriageLimit int
}

// CommitSyncOptions configures SyncCommits.
type CommitSyncOptions struct {
	// MaxCommits caps the number of commits fetched. 0 uses the client
	// default.
	MaxCommits int
	// Since restricts the fetch to commits authored after this time.
	Since time.Time
}

func (r *Reconciler) log(format string, args ...interface{}) {
	if r.OnMessage != nil {
		r.OnMessage(fmt.Sprintf(format, args...))
	}
}

// SyncIssues runs one full issue pass: fetch every matching issue, upsert by
// key, then classify queued issues up to the triage limit. The pass is
// all-or-nothing; a fetch or persistence failure leaves the store untouched.
func (r *Reconciler) SyncIssues(ctx context.Context, opts IssueSyncOptions) (*IssueSyncResult, error) {
	statusFilter := "!=Done"
	if opts.FetchAll {
		statusFilter = ""
	}

	issues, err := r.Issues.FetchAll(ctx, r.PageSize, statusFilter)
	if err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}

	result := &IssueSyncResult{Fetched: len(issues)}
	r.log("Fetched %d issues from Jira", len(issues))

	err = r.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		// Enrichment queue: creates plus never-triaged updates, in the
		// order the feed returned them.
		var queue []*types.Bug

		for _, raw := range issues {
			bug := jira.Normalize(raw)

			existing, err := tx.FindBugByKey(ctx, bug.Key)
			switch {
			case err == nil:
				bug.ID = existing.ID
				if err := tx.UpdateBug(ctx, bug); err != nil {
					return err
				}
				result.Updated++
				if !existing.Triaged() {
					queue = append(queue, bug)
				}
			case isNotFound(err):
				if err := tx.CreateBug(ctx, bug); err != nil {
					return err
				}
				result.Created++
				queue = append(queue, bug)
			default:
				return err
			}
		}

		if !opts.AutoTriage {
			return nil
		}
		if !r.Triage.Available() {
			result.TriageSkipped = len(queue)
			r.log("Triage unavailable, skipping enrichment for %d issues", len(queue))
			return nil
		}

		return r.drainTriageQueue(ctx, tx, queue, opts.TriageLimit, result)
	})
	if err != nil {
		return nil, err
	}

	common.Logger().Info("issue sync complete",
		"fetched", result.Fetched, "created", result.Created,
		"updated", result.Updated, "triaged", result.Triaged)
	return result, nil
}

// drainTriageQueue classifies queued bugs in encounter order up to limit.
// A failing record is counted and skipped; it never ends the pass. Records
// past the limit are counted as skipped.
func (r *Reconciler) drainTriageQueue(ctx context.Context, tx storage.Transaction, queue []*types.Bug, limit int, result *IssueSyncResult) error {
	for i, bug := range queue {
		if limit > 0 && result.Triaged+result.TriageErrors >= limit {
			result.TriageSkipped = len(queue) - i
			r.log("Triage limit reached, skipping %d issues", result.TriageSkipped)
			return nil
		}

		tr, err := r.Triage.Classify(ctx, bug)
		if err != nil {
			result.TriageErrors++
			common.Logger().Warn("triage failed", "key", bug.Key, "error", err)
			continue
		}
		if err := tx.SetTriage(ctx, bug.ID, tr); err != nil {
			return err
		}
		result.Triaged++
	}
	return nil
}

// SyncCommits runs one commit pass: fetch history up to the cap, upsert by
// sha, and create missing commit-bug links for extracted keys that match a
// stored bug. All-or-nothing like the issue pass.
func (r *Reconciler) SyncCommits(ctx context.Context, opts CommitSyncOptions) (*CommitSyncResult, error) {
	if !r.Commits.Available() {
		return nil, ErrCommitsUnavailable
	}

	raws, err := r.Commits.FetchAll(ctx, opts.MaxCommits, opts.Since)
	if err != nil {
		return nil, fmt.Errorf("fetch commits: %w", err)
	}

	result := &CommitSyncResult{Fetched: len(raws)}
	r.log("Fetched %d commits from GitHub", len(raws))

	err = r.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, raw := range raws {
			commit := github.Normalize(raw, r.Project)

			existing, err := tx.FindCommitBySHA(ctx, commit.SHA)
			switch {
			case err == nil:
				commit.ID = existing.ID
				if err := tx.UpdateCommitMessage(ctx, commit); err != nil {
					return err
				}
				result.Updated++
			case isNotFound(err):
				if err := tx.CreateCommit(ctx, commit); err != nil {
					return err
				}
				result.Created++
			default:
				return err
			}

			created, err := r.linkCommit(ctx, tx, commit)
			if err != nil {
				return err
			}
			result.LinksCreated += created
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	common.Logger().Info("commit sync complete",
		"fetched", result.Fetched, "created", result.Created,
		"updated", result.Updated, "links", result.LinksCreated)
	return result, nil
}

// linkCommit creates the missing commit-bug links for the commit's extracted
// keys. Keys with no stored bug are silently ignored; existing links are
// left alone.
func (r *Reconciler) linkCommit(ctx context.Context, tx storage.Transaction, commit *types.Commit) (int, error) {
	created := 0
	for _, key := range commit.IssueKeys {
		bug, err := tx.FindBugByKey(ctx, key)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return created, err
		}

		exists, err := tx.LinkExists(ctx, commit.ID, bug.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		if err := tx.CreateLink(ctx, &types.CommitLink{
			CommitID: commit.ID,
			BugID:    bug.ID,
			Key:      key,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// TriageIssue classifies a single stored bug, synchronously. Already-triaged
// bugs are left alone unless force is set. Unlike the batch paths, errors
// surface directly to the caller.
func (r *Reconciler) TriageIssue(ctx context.Context, key string, force bool) (*types.Bug, error) {
	if !r.Triage.Available() {
		return nil, triage.ErrUnavailable
	}

	bug, err := r.Store.FindBugByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if bug.Triaged() && !force {
		return bug, nil
	}

	tr, err := r.Triage.Classify(ctx, bug)
	if err != nil {
		return nil, err
	}

	err = r.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.SetTriage(ctx, bug.ID, tr)
	})
	if err != nil {
		return nil, err
	}

	bug.Triage = tr
	return bug, nil
}

// TriageBacklog classifies never-triaged bugs already in the store, without
// touching the upstream feeds. limit caps the number of attempts; 0 means
// every eligible bug. No force path here: already-triaged bugs never
// re-enter the backlog.
func (r *Reconciler) TriageBacklog(ctx context.Context, limit int) (*TriageBacklogResult, error) {
	if !r.Triage.Available() {
		return nil, triage.ErrUnavailable
	}

	bugs, err := r.Store.UntriagedBugs(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &TriageBacklogResult{Eligible: len(bugs)}
	r.log("Triaging %d untriaged bugs", len(bugs))

	err = r.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, bug := range bugs {
			tr, err := r.Triage.Classify(ctx, bug)
			if err != nil {
				result.Errors++
				common.Logger().Warn("triage failed", "key", bug.Key, "error", err)
				continue
			}
			if err := tx.SetTriage(ctx, bug.ID, tr); err != nil {
				return err
			}
			result.Triaged++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
