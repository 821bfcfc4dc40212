package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kokistudios/kiln/internal/store"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectRoom = `SELECT id, name, spirit, created_at, anchor_name, starting_form, origin_session_id FROM rooms`

// Insert writes a new room using an existing transaction or connection.
// Session finalization uses it to create the room atomically with the
// session update.
func Insert(ctx context.Context, ex execer, r *Room) error {
	const q = `
		INSERT INTO rooms (id, name, spirit, created_at, anchor_name, starting_form, origin_session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := ex.ExecContext(ctx, q, r.ID, r.Name, r.Spirit, r.CreatedAt.UnixNano(),
		r.AnchorName, r.StartingForm, nullable(r.OriginSessionID)); err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// Save inserts a room or updates its editable fields.
func Save(ctx context.Context, s *store.Store, r *Room) error {
	const q = `
		INSERT INTO rooms (id, name, spirit, created_at, anchor_name, starting_form, origin_session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			spirit = excluded.spirit,
			anchor_name = excluded.anchor_name,
			starting_form = excluded.starting_form,
			origin_session_id = excluded.origin_session_id`
	if _, err := s.DB.ExecContext(ctx, q, r.ID, r.Name, r.Spirit, r.CreatedAt.UnixNano(),
		r.AnchorName, r.StartingForm, nullable(r.OriginSessionID)); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// Get loads one room by ID.
func Get(ctx context.Context, s *store.Store, id string) (*Room, error) {
	row := s.DB.QueryRowContext(ctx, selectRoom+` WHERE id = ?`, id)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, id)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid room row: %w", err)
	}
	return r, nil
}

// List returns all rooms, newest first.
func List(ctx context.Context, s *store.Store) ([]*Room, error) {
	rows, err := s.DB.QueryContext(ctx, selectRoom+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("cannot list rooms: %w", err)
	}
	defer rows.Close()
	var out []*Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("invalid room row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindByOrigin returns rooms whose origin is the given session.
func FindByOrigin(ctx context.Context, s *store.Store, sessionID string) ([]*Room, error) {
	rows, err := s.DB.QueryContext(ctx, selectRoom+` WHERE origin_session_id = ? ORDER BY created_at DESC, id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("cannot query rooms: %w", err)
	}
	defer rows.Close()
	var out []*Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("invalid room row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListEdges returns every stored edge.
func ListEdges(ctx context.Context, s *store.Store) ([]Edge, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT a, b FROM room_edges ORDER BY a, b`)
	if err != nil {
		return nil, fmt.Errorf("cannot list room edges: %w", err)
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.A, &e.B); err != nil {
			return nil, fmt.Errorf("invalid edge row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadGraph reads all rooms and edges into an in-memory Graph.
func LoadGraph(ctx context.Context, s *store.Store) (*Graph, error) {
	rooms, err := List(ctx, s)
	if err != nil {
		return nil, err
	}
	edges, err := ListEdges(ctx, s)
	if err != nil {
		return nil, err
	}
	g := NewGraph()
	for _, r := range rooms {
		g.Add(r)
	}
	for _, e := range edges {
		if err := g.AddAdjacency(e.A, e.B); err != nil {
			return nil, fmt.Errorf("corrupt edge %s <-> %s: %w", e.A, e.B, err)
		}
	}
	return g, nil
}

// Link stores an adjacency between two rooms. Both rooms must exist;
// linking a room to itself is rejected; an existing link is left as is.
func Link(ctx context.Context, s *store.Store, a, b string) error {
	if a == b {
		return ErrSelfAdjacency
	}
	e := NewEdge(a, b)
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{a, b} {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrUnknownRoom, id)
			}
			if err != nil {
				return fmt.Errorf("failed to look up room: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO room_edges (a, b) VALUES (?, ?)`, e.A, e.B); err != nil {
			return fmt.Errorf("failed to link rooms: %w", err)
		}
		return nil
	})
}

// Unlink removes the adjacency between two rooms, if any.
func Unlink(ctx context.Context, s *store.Store, a, b string) error {
	if a == b {
		return nil
	}
	e := NewEdge(a, b)
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM room_edges WHERE a = ? AND b = ?`, e.A, e.B); err != nil {
		return fmt.Errorf("failed to unlink rooms: %w", err)
	}
	return nil
}

// Delete removes every edge touching the room, then the room, in one
// transaction.
func Delete(ctx context.Context, s *store.Store, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_edges WHERE a = ? OR b = ?`, id, id); err != nil {
			return fmt.Errorf("failed to remove room edges: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, id)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (*Room, error) {
	var r Room
	var created int64
	var origin sql.NullString
	if err := sc.Scan(&r.ID, &r.Name, &r.Spirit, &created, &r.AnchorName, &r.StartingForm, &origin); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	if origin.Valid {
		o := origin.String
		r.OriginSessionID = &o
	}
	return &r, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
