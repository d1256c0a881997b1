package sqlite

import (
	"context"
	"fmt"
)

// schema is the full DDL, applied idempotently on open.
//
// Triage columns live on the bugs table rather than a side table: the block
// is 1:1 with a bug, written whole, and read on every bug fetch.
const schema = `
CREATE TABLE IF NOT EXISTS bugs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	key              TEXT NOT NULL UNIQUE,
	external_id      TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	status_category  TEXT NOT NULL DEFAULT '',
	priority         TEXT NOT NULL DEFAULT '',
	created_at       TEXT,
	updated_at       TEXT,
	resolved_at      TEXT,
	component        TEXT NOT NULL DEFAULT '',
	labels           TEXT NOT NULL DEFAULT '[]',
	reporter         TEXT NOT NULL DEFAULT '',
	assignee         TEXT NOT NULL DEFAULT '',
	raw              BLOB,
	fetched_at       TEXT NOT NULL,

	triage_category    TEXT,
	triage_priority    TEXT,
	triage_urgency     TEXT,
	triage_team        TEXT,
	triage_tags        TEXT,
	triage_confidence  REAL,
	triage_reasoning   TEXT,
	triaged_at         TEXT
);

CREATE INDEX IF NOT EXISTS idx_bugs_status   ON bugs(status);
CREATE INDEX IF NOT EXISTS idx_bugs_priority ON bugs(priority);
CREATE INDEX IF NOT EXISTS idx_bugs_triaged  ON bugs(triaged_at);

CREATE TABLE IF NOT EXISTS commits (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	sha           TEXT NOT NULL UNIQUE,
	short_sha     TEXT NOT NULL,
	message       TEXT NOT NULL,
	headline      TEXT NOT NULL,
	author_name   TEXT NOT NULL DEFAULT '',
	author_email  TEXT NOT NULL DEFAULT '',
	authored_at   TEXT,
	url           TEXT NOT NULL DEFAULT '',
	issue_keys    TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_commits_authored ON commits(authored_at);

CREATE TABLE IF NOT EXISTS commit_links (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id  INTEGER NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	bug_id     INTEGER NOT NULL REFERENCES bugs(id) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	UNIQUE(commit_id, bug_id)
);

CREATE INDEX IF NOT EXISTS idx_links_bug ON commit_links(bug_id);
`

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
