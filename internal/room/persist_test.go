package room

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kokistudios/kiln/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".kiln")
	if err := store.Init(dir, false); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	s, err := store.Load(dir)
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveRooms(t *testing.T, s *store.Store, names ...string) map[string]*Room {
	t.Helper()
	out := make(map[string]*Room)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, n := range names {
		r := New(n, "spirit of "+n, "Anxiety Navigation", "The WiFi Fails", "")
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := Save(context.Background(), s, r); err != nil {
			t.Fatalf("Save(%s): %v", n, err)
		}
		out[n] = r
	}
	return out
}

func TestSaveAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	rooms := saveRooms(t, s, "The Analog Commons")

	got, err := Get(ctx, s, rooms["The Analog Commons"].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := rooms["The Analog Commons"]
	if got.Name != want.Name || got.Spirit != want.Spirit || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.OriginSessionID != nil {
		t.Errorf("origin = %v, want nil", *got.OriginSessionID)
	}

	if _, err := Get(ctx, s, "missing"); !errors.Is(err, ErrUnknownRoom) {
		t.Errorf("err = %v, want ErrUnknownRoom", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := setupStore(t)
	saveRooms(t, s, "first", "second", "third")

	list, err := List(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Name != "third" || list[2].Name != "first" {
		t.Errorf("order = %v", names(list))
	}
}

func TestLinkUnlink(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	r := saveRooms(t, s, "a", "b")
	a, b := r["a"].ID, r["b"].ID

	if err := Link(ctx, s, b, a); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := Link(ctx, s, a, b); err != nil {
		t.Fatalf("second Link: %v", err)
	}
	edges, err := ListEdges(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0] != NewEdge(a, b) {
		t.Fatalf("edges = %v", edges)
	}

	g, err := LoadGraph(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsAdjacent(a, b) || !g.IsAdjacent(b, a) {
		t.Error("loaded graph should be symmetric")
	}

	if err := Unlink(ctx, s, a, b); err != nil {
		t.Fatal(err)
	}
	edges, _ = ListEdges(ctx, s)
	if len(edges) != 0 {
		t.Errorf("edges after unlink = %v", edges)
	}
}

func TestLink_Rejects(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	r := saveRooms(t, s, "a")

	if err := Link(ctx, s, r["a"].ID, r["a"].ID); !errors.Is(err, ErrSelfAdjacency) {
		t.Errorf("self link err = %v", err)
	}
	if err := Link(ctx, s, r["a"].ID, "ghost"); !errors.Is(err, ErrUnknownRoom) {
		t.Errorf("unknown link err = %v", err)
	}
	edges, _ := ListEdges(ctx, s)
	if len(edges) != 0 {
		t.Errorf("rejected links stored edges: %v", edges)
	}
}

func TestDelete_RemovesEdges(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	r := saveRooms(t, s, "r", "x", "y")
	id, x, y := r["r"].ID, r["x"].ID, r["y"].ID

	for _, pair := range [][2]string{{id, x}, {id, y}, {x, y}} {
		if err := Link(ctx, s, pair[0], pair[1]); err != nil {
			t.Fatal(err)
		}
	}

	if err := Delete(ctx, s, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	edges, err := ListEdges(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0] != NewEdge(x, y) {
		t.Errorf("edges = %v, want only x-y", edges)
	}
	g, err := LoadGraph(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Neighbors(x) {
		if n.ID == id {
			t.Error("x still lists deleted room")
		}
	}
	issues, err := s.CheckIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Errorf("integrity issues after delete: %v", issues)
	}

	if err := Delete(ctx, s, id); !errors.Is(err, ErrUnknownRoom) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestFindByOriginAndInsert(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	now := time.Now().UnixNano()
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, anchor_name, starting_form, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"sess-1", "Anxiety Navigation", "The WiFi Fails", now, now); err != nil {
		t.Fatal(err)
	}

	r := New("The Analog Commons", "A place for presence", "Anxiety Navigation", "The WiFi Fails", "sess-1")
	if err := Insert(ctx, s.DB, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := FindByOrigin(ctx, s, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Origin() != "sess-1" {
		t.Fatalf("found = %v", found)
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, "sess-1"); err != nil {
		t.Fatal(err)
	}
	got, err := Get(ctx, s, r.ID)
	if err != nil {
		t.Fatalf("room should outlive its session: %v", err)
	}
	if got.OriginSessionID != nil {
		t.Errorf("origin = %q, want nil", got.Origin())
	}
}

func names(rooms []*Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.Name
	}
	return out
}
