package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// dbtx is satisfied by both *sql.DB and *sql.Conn, so the read and write
// helpers below serve the store and its transactions alike.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to storage.ErrNotFound.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// bugColumns is the column list every bug scan uses; keep in sync with
// scanBug.
const bugColumns = `id, key, external_id, summary, description, status, status_category,
	priority, created_at, updated_at, resolved_at, component, labels, reporter,
	assignee, raw, fetched_at,
	triage_category, triage_priority, triage_urgency, triage_team, triage_tags,
	triage_confidence, triage_reasoning, triaged_at`

func timeToDB(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timePtrToDB(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeToDB(*t)
}

func timeFromDB(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timePtrFromDB(s sql.NullString) *time.Time {
	t := timeFromDB(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*types.Bug, error) {
	var (
		bug                                 types.Bug
		createdAt, updatedAt, resolvedAt    sql.NullString
		labelsJSON                          string
		fetchedAt                           sql.NullString
		trCategory, trPriority, trUrgency   sql.NullString
		trTeam, trTags, trReasoning, trTime sql.NullString
		trConfidence                        sql.NullFloat64
	)

	err := row.Scan(
		&bug.ID, &bug.Key, &bug.ExternalID, &bug.Summary, &bug.Description,
		&bug.Status, &bug.StatusCategory, &bug.Priority,
		&createdAt, &updatedAt, &resolvedAt,
		&bug.Component, &labelsJSON, &bug.Reporter, &bug.Assignee,
		&bug.Raw, &fetchedAt,
		&trCategory, &trPriority, &trUrgency, &trTeam, &trTags,
		&trConfidence, &trReasoning, &trTime,
	)
	if err != nil {
		return nil, err
	}

	bug.CreatedAt = timeFromDB(createdAt)
	bug.UpdatedAt = timeFromDB(updatedAt)
	bug.ResolvedAt = timePtrFromDB(resolvedAt)
	bug.FetchedAt = timeFromDB(fetchedAt)

	if labelsJSON != "" && labelsJSON != "[]" {
		if err := json.Unmarshal([]byte(labelsJSON), &bug.Labels); err != nil {
			return nil, fmt.Errorf("decode labels for %s: %w", bug.Key, err)
		}
	}

	if trTime.Valid {
		tr := &types.TriageResult{
			Category:   trCategory.String,
			Priority:   trPriority.String,
			Urgency:    trUrgency.String,
			Team:       trTeam.String,
			Confidence: trConfidence.Float64,
			Reasoning:  trReasoning.String,
			TriagedAt:  timeFromDB(trTime),
		}
		if trTags.Valid && trTags.String != "" && trTags.String != "[]" {
			if err := json.Unmarshal([]byte(trTags.String), &tr.Tags); err != nil {
				return nil, fmt.Errorf("decode triage tags for %s: %w", bug.Key, err)
			}
		}
		bug.Triage = tr
	}

	return &bug, nil
}

func findBugByKey(ctx context.Context, q dbtx, key string) (*types.Bug, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE key = ?`, key)
	bug, err := scanBug(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("find bug %s", key), err)
	}
	return bug, nil
}

func createBug(ctx context.Context, q dbtx, bug *types.Bug) error {
	if err := bug.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	labels, err := json.Marshal(labelsOrEmpty(bug.Labels))
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	if bug.FetchedAt.IsZero() {
		bug.FetchedAt = time.Now().UTC()
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO bugs (key, external_id, summary, description, status,
			status_category, priority, created_at, updated_at, resolved_at,
			component, labels, reporter, assignee, raw, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bug.Key, bug.ExternalID, bug.Summary, bug.Description, bug.Status,
		bug.StatusCategory, bug.Priority,
		timeToDB(bug.CreatedAt), timeToDB(bug.UpdatedAt), timePtrToDB(bug.ResolvedAt),
		bug.Component, string(labels), bug.Reporter, bug.Assignee,
		bug.Raw, timeToDB(bug.FetchedAt),
	)
	if err != nil {
		return wrapDBError(fmt.Sprintf("create bug %s", bug.Key), err)
	}

	bug.ID, err = res.LastInsertId()
	if err != nil {
		return wrapDBError("bug insert id", err)
	}
	return nil
}

func updateBug(ctx context.Context, q dbtx, bug *types.Bug) error {
	if err := bug.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	labels, err := json.Marshal(labelsOrEmpty(bug.Labels))
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	if bug.FetchedAt.IsZero() {
		bug.FetchedAt = time.Now().UTC()
	}

	res, err := q.ExecContext(ctx, `
		UPDATE bugs SET external_id = ?, summary = ?, description = ?,
			status = ?, status_category = ?, priority = ?, created_at = ?,
			updated_at = ?, resolved_at = ?, component = ?, labels = ?,
			reporter = ?, assignee = ?, raw = ?, fetched_at = ?
		WHERE key = ?`,
		bug.ExternalID, bug.Summary, bug.Description, bug.Status,
		bug.StatusCategory, bug.Priority,
		timeToDB(bug.CreatedAt), timeToDB(bug.UpdatedAt), timePtrToDB(bug.ResolvedAt),
		bug.Component, string(labels), bug.Reporter, bug.Assignee,
		bug.Raw, timeToDB(bug.FetchedAt),
		bug.Key,
	)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update bug %s", bug.Key), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("update bug %s: %w", bug.Key, storage.ErrNotFound)
	}
	return nil
}

func setTriage(ctx context.Context, q dbtx, bugID int64, result *types.TriageResult) error {
	tags, err := json.Marshal(labelsOrEmpty(result.Tags))
	if err != nil {
		return fmt.Errorf("encode triage tags: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE bugs SET triage_category = ?, triage_priority = ?,
			triage_urgency = ?, triage_team = ?, triage_tags = ?,
			triage_confidence = ?, triage_reasoning = ?, triaged_at = ?
		WHERE id = ?`,
		result.Category, result.Priority, result.Urgency, result.Team,
		string(tags), result.Confidence, result.Reasoning,
		timeToDB(result.TriagedAt), bugID,
	)
	if err != nil {
		return wrapDBError(fmt.Sprintf("set triage for bug %d", bugID), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("triage rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("set triage for bug %d: %w", bugID, storage.ErrNotFound)
	}
	return nil
}

func untriagedBugs(ctx context.Context, q dbtx, limit int) ([]*types.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE triaged_at IS NULL ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list untriaged bugs", err)
	}
	defer func() { _ = rows.Close() }()

	var bugs []*types.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, wrapDBError("scan untriaged bug", err)
		}
		bugs = append(bugs, bug)
	}
	return bugs, rows.Err()
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

// FindBugByKey implements storage.Storage.
func (s *Store) FindBugByKey(ctx context.Context, key string) (*types.Bug, error) {
	return findBugByKey(ctx, s.db, key)
}

// ListBugs implements storage.Storage. Results are ordered by upstream
// update time, newest first.
func (s *Store) ListBugs(ctx context.Context, filter types.BugFilter, page types.Page) ([]*types.Bug, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Search != "" {
		where = append(where, "summary LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bugs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, wrapDBError("count bugs", err)
	}

	query := `SELECT ` + bugColumns + ` FROM bugs` + clause +
		` ORDER BY updated_at DESC, id DESC`
	if page.Size > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Size, page.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapDBError("list bugs", err)
	}
	defer func() { _ = rows.Close() }()

	var bugs []*types.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, 0, wrapDBError("scan bug", err)
		}
		bugs = append(bugs, bug)
	}
	return bugs, total, rows.Err()
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ListStatuses implements storage.Storage.
func (s *Store) ListStatuses(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "status")
}

// ListPriorities implements storage.Storage.
func (s *Store) ListPriorities(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "priority")
}

func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM bugs WHERE `+column+` != '' ORDER BY `+column)
	if err != nil {
		return nil, wrapDBError("distinct "+column, err)
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, wrapDBError("scan "+column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// UntriagedBugs implements storage.Storage.
func (s *Store) UntriagedBugs(ctx context.Context, limit int) ([]*types.Bug, error) {
	return untriagedBugs(ctx, s.db, limit)
}

// TriageStats implements storage.Storage.
func (s *Store) TriageStats(ctx context.Context) (*types.TriageStats, error) {
	stats := &types.TriageStats{
		ByCategory: make(map[string]int),
		ByTeam:     make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(triaged_at)
		FROM bugs`).Scan(&stats.TotalBugs, &stats.TriagedBugs)
	if err != nil {
		return nil, wrapDBError("triage stats", err)
	}
	stats.UntriagedBugs = stats.TotalBugs - stats.TriagedBugs

	rows, err := s.db.QueryContext(ctx, `
		SELECT triage_category, triage_team, COUNT(*)
		FROM bugs WHERE triaged_at IS NOT NULL
		GROUP BY triage_category, triage_team`)
	if err != nil {
		return nil, wrapDBError("triage stats breakdown", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category, team sql.NullString
		var n int
		if err := rows.Scan(&category, &team, &n); err != nil {
			return nil, wrapDBError("scan triage stats", err)
		}
		if category.String != "" {
			stats.ByCategory[category.String] += n
		}
		if team.String != "" {
			stats.ByTeam[team.String] += n
		}
	}
	return stats, rows.Err()
}
