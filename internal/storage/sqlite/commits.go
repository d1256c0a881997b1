package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

const commitColumns = `id, sha, short_sha, message, headline, author_name,
	author_email, authored_at, url, issue_keys`

// commitJoinColumns qualifies every column with the table name for queries
// that join commit_links, where bare names are ambiguous.
const commitJoinColumns = `commits.id, commits.sha, commits.short_sha,
	commits.message, commits.headline, commits.author_name,
	commits.author_email, commits.authored_at, commits.url,
	commits.issue_keys`

func scanCommit(row rowScanner) (*types.Commit, error) {
	var (
		commit     types.Commit
		authoredAt sql.NullString
		keysJSON   string
	)
	err := row.Scan(
		&commit.ID, &commit.SHA, &commit.ShortSHA, &commit.Message,
		&commit.Headline, &commit.AuthorName, &commit.AuthorEmail,
		&authoredAt, &commit.URL, &keysJSON,
	)
	if err != nil {
		return nil, err
	}
	commit.AuthoredAt = timePtrFromDB(authoredAt)
	if keysJSON != "" && keysJSON != "[]" {
		if err := json.Unmarshal([]byte(keysJSON), &commit.IssueKeys); err != nil {
			return nil, fmt.Errorf("decode issue keys for %s: %w", shorten(commit.SHA), err)
		}
	}
	return &commit, nil
}

func findCommitBySHA(ctx context.Context, q dbtx, sha string) (*types.Commit, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE sha = ?`, sha)
	commit, err := scanCommit(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("find commit %s", shorten(sha)), err)
	}
	return commit, nil
}

func createCommit(ctx context.Context, q dbtx, commit *types.Commit) error {
	if err := commit.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	keys, err := json.Marshal(labelsOrEmpty(commit.IssueKeys))
	if err != nil {
		return fmt.Errorf("encode issue keys: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO commits (sha, short_sha, message, headline, author_name,
			author_email, authored_at, url, issue_keys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		commit.SHA, commit.ShortSHA, commit.Message, commit.Headline,
		commit.AuthorName, commit.AuthorEmail,
		timePtrToDB(commit.AuthoredAt), commit.URL, string(keys),
	)
	if err != nil {
		return wrapDBError(fmt.Sprintf("create commit %s", shorten(commit.SHA)), err)
	}

	commit.ID, err = res.LastInsertId()
	if err != nil {
		return wrapDBError("commit insert id", err)
	}
	return nil
}

// updateCommitMessage refreshes the mutable message fields; sha, author, and
// date are identity and never change for a given hash.
func updateCommitMessage(ctx context.Context, q dbtx, commit *types.Commit) error {
	keys, err := json.Marshal(labelsOrEmpty(commit.IssueKeys))
	if err != nil {
		return fmt.Errorf("encode issue keys: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`UPDATE commits SET message = ?, headline = ?, issue_keys = ? WHERE sha = ?`,
		commit.Message, commit.Headline, string(keys), commit.SHA)
	return wrapDBError(fmt.Sprintf("update commit %s", shorten(commit.SHA)), err)
}

func linkExists(ctx context.Context, q dbtx, commitID, bugID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commit_links WHERE commit_id = ? AND bug_id = ?`,
		commitID, bugID).Scan(&n)
	if err != nil {
		return false, wrapDBError("check link", err)
	}
	return n > 0, nil
}

func createLink(ctx context.Context, q dbtx, link *types.CommitLink) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO commit_links (commit_id, bug_id, key) VALUES (?, ?, ?)`,
		link.CommitID, link.BugID, link.Key)
	if err != nil {
		return wrapDBError(fmt.Sprintf("create link %s", link.Key), err)
	}
	link.ID, err = res.LastInsertId()
	if err != nil {
		return wrapDBError("link insert id", err)
	}
	return nil
}

func shorten(sha string) string {
	if len(sha) > types.ShortSHALen {
		return sha[:types.ShortSHALen]
	}
	return sha
}

// FindCommitBySHA implements storage.Storage.
func (s *Store) FindCommitBySHA(ctx context.Context, sha string) (*types.Commit, error) {
	return findCommitBySHA(ctx, s.db, sha)
}

// ListCommits implements storage.Storage, newest first.
func (s *Store) ListCommits(ctx context.Context, page types.Page) ([]*types.Commit, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&total); err != nil {
		return nil, 0, wrapDBError("count commits", err)
	}

	query := `SELECT ` + commitColumns + ` FROM commits ORDER BY authored_at DESC, id DESC`
	var args []any
	if page.Size > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Size, page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapDBError("list commits", err)
	}
	defer func() { _ = rows.Close() }()

	commits, err := collectCommits(rows)
	if err != nil {
		return nil, 0, err
	}
	return commits, total, nil
}

// CommitsForBug implements storage.Storage.
func (s *Store) CommitsForBug(ctx context.Context, bugID int64) ([]*types.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commitJoinColumns+` FROM commits
		JOIN commit_links ON commit_links.commit_id = commits.id
		WHERE commit_links.bug_id = ?
		ORDER BY commits.authored_at DESC, commits.id DESC`, bugID)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("commits for bug %d", bugID), err)
	}
	defer func() { _ = rows.Close() }()

	return collectCommits(rows)
}

func collectCommits(rows *sql.Rows) ([]*types.Commit, error) {
	var commits []*types.Commit
	for rows.Next() {
		commit, err := scanCommit(rows)
		if err != nil {
			return nil, wrapDBError("scan commit", err)
		}
		commits = append(commits, commit)
	}
	return commits, rows.Err()
}

// CommitStats implements storage.Storage.
func (s *Store) CommitStats(ctx context.Context) (*types.CommitStats, error) {
	stats := &types.CommitStats{}

	err := s.db.QueryRowContext(ctx, strings.TrimSpace(`
		SELECT
			(SELECT COUNT(*) FROM commits),
			(SELECT COUNT(*) FROM commits WHERE issue_keys != '[]'),
			(SELECT COUNT(*) FROM commit_links),
			(SELECT COUNT(DISTINCT bug_id) FROM commit_links)`)).
		Scan(&stats.TotalCommits, &stats.CommitsWithKeys, &stats.TotalLinks, &stats.BugsWithCommits)
	if err != nil {
		return nil, wrapDBError("commit stats", err)
	}
	return stats, nil
}
