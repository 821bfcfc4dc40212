package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema is executed on every open. IF NOT EXISTS keeps it idempotent.
//
// room_edges stores each undirected adjacency exactly once as an ordered
// pair, so the table itself cannot hold a self-loop or a one-sided edge.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    anchor_name   TEXT NOT NULL,
    starting_form TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    completed_at  INTEGER,
    is_complete   INTEGER NOT NULL DEFAULT 0,
    room_name     TEXT NOT NULL DEFAULT '',
    room_spirit   TEXT NOT NULL DEFAULT '',
    empty_heat_ns INTEGER NOT NULL DEFAULT 0 CHECK (empty_heat_ns >= 0)
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);

CREATE TABLE IF NOT EXISTS reflections (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    phase      INTEGER NOT NULL CHECK (phase BETWEEN 0 AND 5),
    body       TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, phase)
);

CREATE TABLE IF NOT EXISTS rooms (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    spirit            TEXT NOT NULL DEFAULT '',
    created_at        INTEGER NOT NULL,
    anchor_name       TEXT NOT NULL DEFAULT '',
    starting_form     TEXT NOT NULL DEFAULT '',
    origin_session_id TEXT REFERENCES sessions(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rooms_origin ON rooms(origin_session_id);

CREATE TABLE IF NOT EXISTS room_edges (
    a TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    b TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    PRIMARY KEY (a, b),
    CHECK (a < b)
);
CREATE INDEX IF NOT EXISTS idx_room_edges_b ON room_edges(b);

CREATE TABLE IF NOT EXISTS custom_anchors (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_anchor_forms (
    anchor_id TEXT NOT NULL REFERENCES custom_anchors(id) ON DELETE CASCADE,
    position  INTEGER NOT NULL,
    context   TEXT NOT NULL DEFAULT '',
    form_name TEXT NOT NULL CHECK (form_name <> ''),
    PRIMARY KEY (anchor_id, position)
);
`

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// One interactive user, one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return db, nil
}

// WithTx runs fn inside a transaction, committing on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// CheckIntegrity reports relational problems that the public API should
// never produce: edges pointing at missing rooms and origins pointing at
// missing sessions.
func (s *Store) CheckIntegrity(ctx context.Context) ([]Issue, error) {
	var issues []Issue

	rows, err := s.DB.QueryContext(ctx, `
		SELECT e.a, e.b FROM room_edges e
		LEFT JOIN rooms ra ON ra.id = e.a
		LEFT JOIN rooms rb ON rb.id = e.b
		WHERE ra.id IS NULL OR rb.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: check edges: %w", err)
	}
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		issues = append(issues, Issue{"error", fmt.Sprintf("dangling edge %s <-> %s", a, b)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.DB.QueryContext(ctx, `
		SELECT r.id, r.origin_session_id FROM rooms r
		LEFT JOIN sessions s ON s.id = r.origin_session_id
		WHERE r.origin_session_id IS NOT NULL AND s.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: check origins: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roomID, sessID string
		if err := rows.Scan(&roomID, &sessID); err != nil {
			return nil, fmt.Errorf("store: scan origin: %w", err)
		}
		issues = append(issues, Issue{"warning", fmt.Sprintf("room %s references missing session %s", roomID, sessID)})
	}
	return issues, rows.Err()
}

// RepairIntegrity removes dangling edges and clears orphaned origins.
func (s *Store) RepairIntegrity(ctx context.Context) ([]string, error) {
	var fixed []string
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM room_edges
			WHERE a NOT IN (SELECT id FROM rooms) OR b NOT IN (SELECT id FROM rooms)`)
		if err != nil {
			return fmt.Errorf("store: remove dangling edges: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			fixed = append(fixed, fmt.Sprintf("removed %d dangling edge(s)", n))
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE rooms SET origin_session_id = NULL
			WHERE origin_session_id IS NOT NULL
			  AND origin_session_id NOT IN (SELECT id FROM sessions)`)
		if err != nil {
			return fmt.Errorf("store: clear orphaned origins: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			fixed = append(fixed, fmt.Sprintf("cleared %d orphaned room origin(s)", n))
		}
		return nil
	})
	return fixed, err
}
