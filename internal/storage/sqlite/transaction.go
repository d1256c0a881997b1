package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// Verify txStore implements storage.Transaction at compile time.
var _ storage.Transaction = (*txStore)(nil)

// txStore implements storage.Transaction on a dedicated connection holding
// an open transaction.
type txStore struct {
	conn *sql.Conn
}

// RunInTransaction executes fn within a single write transaction.
//
// BEGIN IMMEDIATE acquires the write lock up front so concurrent passes
// serialize instead of deadlocking mid-transaction. SQLITE_BUSY on begin is
// retried with exponential backoff. On error or panic everything rolls back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	// A dedicated connection is required: raw BEGIN/COMMIT must run on
	// the same connection as the statements between them, and the pool
	// would otherwise spread them across connections.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even when ctx
			// is already cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&txStore{conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// beginImmediateWithRetry starts an IMMEDIATE transaction, retrying
// SQLITE_BUSY with exponential backoff.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, initialDelay time.Duration) error {
	var lastErr error
	delay := initialDelay

	for i := 0; i < attempts; i++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusy(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("database busy after %d attempts: %w", attempts, lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (t *txStore) FindBugByKey(ctx context.Context, key string) (*types.Bug, error) {
	return findBugByKey(ctx, t.conn, key)
}

func (t *txStore) CreateBug(ctx context.Context, bug *types.Bug) error {
	return createBug(ctx, t.conn, bug)
}

func (t *txStore) UpdateBug(ctx context.Context, bug *types.Bug) error {
	return updateBug(ctx, t.conn, bug)
}

func (t *txStore) SetTriage(ctx context.Context, bugID int64, result *types.TriageResult) error {
	return setTriage(ctx, t.conn, bugID, result)
}

func (t *txStore) FindCommitBySHA(ctx context.Context, sha string) (*types.Commit, error) {
	return findCommitBySHA(ctx, t.conn, sha)
}

func (t *txStore) CreateCommit(ctx context.Context, commit *types.Commit) error {
	return createCommit(ctx, t.conn, commit)
}

func (t *txStore) UpdateCommitMessage(ctx context.Context, commit *types.Commit) error {
	return updateCommitMessage(ctx, t.conn, commit)
}

func (t *txStore) LinkExists(ctx context.Context, commitID, bugID int64) (bool, error) {
	return linkExists(ctx, t.conn, commitID, bugID)
}

func (t *txStore) CreateLink(ctx context.Context, link *types.CommitLink) error {
	return createLink(ctx, t.conn, link)
}
