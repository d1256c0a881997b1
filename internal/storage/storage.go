// Package storage defines the persistence interface for bugs, commits, and
// commit-bug links.
package storage

import (
	"context"
	"errors"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the read-side interface plus transaction entry point. All
// reconciliation writes go through RunInTransaction; the plain methods are
// for serving queries outside a pass.
type Storage interface {
	// FindBugByKey returns the bug with the given external key, including
	// its triage block when present. Wraps ErrNotFound when absent.
	FindBugByKey(ctx context.Context, key string) (*types.Bug, error)

	// ListBugs returns one page of bugs matching the filter plus the
	// total match count.
	ListBugs(ctx context.Context, filter types.BugFilter, page types.Page) ([]*types.Bug, int, error)

	// ListStatuses returns the distinct status values present in the store.
	ListStatuses(ctx context.Context) ([]string, error)

	// ListPriorities returns the distinct priority values present in the store.
	ListPriorities(ctx context.Context) ([]string, error)

	// UntriagedBugs returns bugs without a triage block in insertion
	// order. limit <= 0 means no limit.
	UntriagedBugs(ctx context.Context, limit int) ([]*types.Bug, error)

	// TriageStats summarizes triage coverage.
	TriageStats(ctx context.Context) (*types.TriageStats, error)

	// FindCommitBySHA returns the commit with the given full hash.
	// Wraps ErrNotFound when absent.
	FindCommitBySHA(ctx context.Context, sha string) (*types.Commit, error)

	// ListCommits returns one page of commits, newest first, plus the
	// total count.
	ListCommits(ctx context.Context, page types.Page) ([]*types.Commit, int, error)

	// CommitsForBug returns the commits linked to a bug, newest first.
	CommitsForBug(ctx context.Context, bugID int64) ([]*types.Commit, error)

	// CommitStats summarizes commit linkage.
	CommitStats(ctx context.Context) (*types.CommitStats, error)

	// RunInTransaction executes fn inside a single write transaction.
	// fn returning an error rolls back every write made through tx.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Close releases the underlying database.
	Close() error
}

// Transaction is the write-side interface handed to RunInTransaction
// callbacks. All methods operate inside the same transaction.
type Transaction interface {
	// FindBugByKey looks a bug up inside the transaction, seeing earlier
	// uncommitted writes. Wraps ErrNotFound when absent.
	FindBugByKey(ctx context.Context, key string) (*types.Bug, error)

	// CreateBug inserts a new bug and assigns its ID.
	CreateBug(ctx context.Context, bug *types.Bug) error

	// UpdateBug overwrites all mutable fields of an existing bug. The
	// triage block is untouched.
	UpdateBug(ctx context.Context, bug *types.Bug) error

	// SetTriage writes the triage block for a bug.
	SetTriage(ctx context.Context, bugID int64, result *types.TriageResult) error

	// FindCommitBySHA looks a commit up inside the transaction.
	// Wraps ErrNotFound when absent.
	FindCommitBySHA(ctx context.Context, sha string) (*types.Commit, error)

	// CreateCommit inserts a new commit and assigns its ID.
	CreateCommit(ctx context.Context, commit *types.Commit) error

	// UpdateCommitMessage refreshes the mutable message fields of an
	// existing commit; identity fields never change.
	UpdateCommitMessage(ctx context.Context, commit *types.Commit) error

	// LinkExists reports whether the (commit, bug) link is present.
	LinkExists(ctx context.Context, commitID, bugID int64) (bool, error)

	// CreateLink inserts a commit-bug link.
	CreateLink(ctx context.Context, link *types.CommitLink) error
}
