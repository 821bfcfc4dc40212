package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/store"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectSession = `
	SELECT id, anchor_name, starting_form, created_at, updated_at, completed_at,
	       is_complete, room_name, room_spirit, empty_heat_ns
	FROM sessions`

// Filter narrows List. The zero value lists every session.
type Filter struct {
	CompletedOnly  bool
	InProgressOnly bool
	Anchor         string
	Limit          int
}

// Create starts a session and stores it.
func Create(ctx context.Context, s *store.Store, anchorName, startingForm string) (*Session, error) {
	sess := New(anchorName, startingForm)
	if err := Save(ctx, s, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes the session row and all six reflections in one transaction.
func Save(ctx context.Context, s *store.Store, sess *Session) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return write(ctx, tx, sess)
	})
}

// write upserts the session. A stored completion is never cleared, so saving
// a stale copy cannot reopen a finalized session.
func write(ctx context.Context, q querier, sess *Session) error {
	const upsert = `
		INSERT INTO sessions (id, anchor_name, starting_form, created_at, updated_at,
			completed_at, is_complete, room_name, room_spirit, empty_heat_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			anchor_name = excluded.anchor_name,
			starting_form = excluded.starting_form,
			updated_at = excluded.updated_at,
			completed_at = COALESCE(sessions.completed_at, excluded.completed_at),
			is_complete = MAX(sessions.is_complete, excluded.is_complete),
			room_name = excluded.room_name,
			room_spirit = excluded.room_spirit,
			empty_heat_ns = excluded.empty_heat_ns`

	var completed any
	if sess.CompletedAt != nil {
		completed = sess.CompletedAt.UnixNano()
	}
	if _, err := q.ExecContext(ctx, upsert, sess.ID, sess.AnchorName, sess.StartingForm,
		sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(), completed, sess.IsComplete,
		sess.RoomName, sess.RoomSpirit, int64(sess.EmptyHeatDuration)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, p := range phase.Sequence() {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO reflections (session_id, phase, body) VALUES (?, ?, ?)
			ON CONFLICT(session_id, phase) DO UPDATE SET body = excluded.body`,
			sess.ID, int(p), sess.Reflections[p]); err != nil {
			return fmt.Errorf("failed to save %s reflection: %w", p, err)
		}
	}
	return nil
}

// Get loads a session by its full ID.
func Get(ctx context.Context, s *store.Store, id string) (*Session, error) {
	return get(ctx, s.DB, id)
}

func get(ctx context.Context, q querier, id string) (*Session, error) {
	sess, err := scanSession(q.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid session row: %w", err)
	}
	if err := loadReflections(ctx, q, map[string]*Session{sess.ID: sess}); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve finds a session by full ID, unique ID prefix, or "latest".
func Resolve(ctx context.Context, s *store.Store, ref string) (*Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "latest" {
		list, err := List(ctx, s, Filter{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: no sessions yet", ErrNotFound)
		}
		return &list[0], nil
	}

	sess, err := Get(ctx, s, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return sess, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM sessions WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(ref)+"%")
	if err != nil {
		return nil, fmt.Errorf("cannot resolve session: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid session row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return Get(ctx, s, ids[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
	}
}

// List returns sessions newest first.
func List(ctx context.Context, s *store.Store, f Filter) ([]Session, error) {
	var where []string
	var args []any
	if f.CompletedOnly {
		where = append(where, "is_complete = 1")
	}
	if f.InProgressOnly {
		where = append(where, "is_complete = 0")
	}
	if f.Anchor != "" {
		where = append(where, "anchor_name = ?")
		args = append(args, f.Anchor)
	}
	q := selectSession
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot list sessions: %w", err)
	}
	var list []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid session row: %w", err)
		}
		list = append(list, sess)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*Session, len(list))
	for _, sess := range list {
		byID[sess.ID] = sess
	}
	if err := loadReflections(ctx, s.DB, byID); err != nil {
		return nil, err
	}

	out := make([]Session, len(list))
	for i, sess := range list {
		out[i] = *sess
	}
	return out, nil
}

// Delete removes a session and its reflections. Rooms it produced are kept
// with their origin cleared, in the same transaction.
func Delete(ctx context.Context, s *store.Store, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE rooms SET origin_session_id = NULL WHERE origin_session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to detach rooms: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
}

// Finalize completes a stored session. The session update and the new room,
// if any, are written in one transaction. Finalizing a session that is
// already complete changes nothing and returns a nil room.
func Finalize(ctx context.Context, s *store.Store, id string) (*Session, *room.Room, error) {
	var sess *Session
	var r *room.Room
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		sess, err = get(ctx, tx, id)
		if err != nil {
			return err
		}
		if sess.IsComplete {
			return nil
		}
		r = sess.Finalize()
		if err := write(ctx, tx, sess); err != nil {
			return err
		}
		if r != nil {
			return room.Insert(ctx, tx, r)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var sess Session
	var created, updated, emptyHeat int64
	var completed sql.NullInt64
	if err := sc.Scan(&sess.ID, &sess.AnchorName, &sess.StartingForm, &created, &updated,
		&completed, &sess.IsComplete, &sess.RoomName, &sess.RoomSpirit, &emptyHeat); err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		sess.CompletedAt = &t
	}
	sess.EmptyHeatDuration = time.Duration(emptyHeat)
	sess.Reflections = emptyReflections()
	return &sess, nil
}

func loadReflections(ctx context.Context, q querier, byID map[string]*Session) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := q.QueryContext(ctx,
		`SELECT session_id, phase, body FROM reflections WHERE session_id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return fmt.Errorf("cannot load reflections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, body string
		var p int
		if err := rows.Scan(&id, &p, &body); err != nil {
			return fmt.Errorf("invalid reflection row: %w", err)
		}
		if sess, ok := byID[id]; ok && phase.Phase(p).Valid() {
			sess.Reflections[phase.Phase(p)] = body
		}
	}
	return rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
