package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
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

func TestCreateAndGet(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	sess, err := Create(ctx, st, "Anxiety Navigation", "The WiFi Fails")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = sess.SetReflection(phase.FormTying, "The anxiety binds to the soundscape.")
	_ = sess.RecordEmptyHeatDuration(90 * time.Second)
	if err := Save(ctx, st, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Get(ctx, st, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AnchorName != "Anxiety Navigation" || got.StartingForm != "The WiFi Fails" {
		t.Errorf("got %q / %q", got.AnchorName, got.StartingForm)
	}
	if got.Reflection(phase.FormTying) != "The anxiety binds to the soundscape." {
		t.Errorf("reflection = %q", got.Reflection(phase.FormTying))
	}
	if len(got.Reflections) != phase.Count {
		t.Errorf("reflections = %d, want %d", len(got.Reflections), phase.Count)
	}
	if got.EmptyHeatDuration != 90*time.Second {
		t.Errorf("duration = %v", got.EmptyHeatDuration)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}

	if _, err := Get(ctx, st, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	mk := func(anchor string, offset time.Duration, complete bool) *Session {
		s := New(anchor, "form")
		s.CreatedAt = base.Add(offset)
		if complete {
			s.Finalize()
		}
		if err := Save(ctx, st, s); err != nil {
			t.Fatal(err)
		}
		return s
	}
	old := mk("Anxiety Navigation", 0, true)
	mid := mk("Boredom Escape", time.Hour, false)
	newest := mk("Anxiety Navigation", 2*time.Hour, true)

	all, err := List(ctx, st, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != newest.ID || all[1].ID != mid.ID || all[2].ID != old.ID {
		t.Errorf("order wrong: %v", ids(all))
	}

	done, _ := List(ctx, st, Filter{CompletedOnly: true})
	if len(done) != 2 {
		t.Errorf("completed = %d, want 2", len(done))
	}
	open, _ := List(ctx, st, Filter{InProgressOnly: true})
	if len(open) != 1 || open[0].ID != mid.ID {
		t.Errorf("in progress = %v", ids(open))
	}
	byAnchor, _ := List(ctx, st, Filter{Anchor: "Anxiety Navigation", Limit: 1})
	if len(byAnchor) != 1 || byAnchor[0].ID != newest.ID {
		t.Errorf("by anchor = %v", ids(byAnchor))
	}
	for _, s := range all {
		if len(s.Reflections) != phase.Count {
			t.Errorf("session %s has %d reflections", s.ID, len(s.Reflections))
		}
	}
}

func TestResolve(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	if _, err := Resolve(ctx, st, "latest"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty store err = %v", err)
	}

	a := New("a", "alpha")
	a.CreatedAt = a.CreatedAt.Add(-time.Minute)
	b := New("b", "beta")
	for _, s := range []*Session{a, b} {
		if err := Save(ctx, st, s); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := Resolve(ctx, st, "latest")
	if err != nil || latest.ID != b.ID {
		t.Errorf("latest = %v, %v", latest, err)
	}
	got, err := Resolve(ctx, st, a.ID[:len(a.ID)-2])
	if err != nil || got.ID != a.ID {
		t.Errorf("prefix resolve = %v, %v", got, err)
	}
	if _, err := Resolve(ctx, st, a.ID[:8]); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("date prefix err = %v, want ErrAmbiguous", err)
	}
	if _, err := Resolve(ctx, st, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFinalize_Persisted(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	sess, err := Create(ctx, st, "Anxiety Navigation", "The WiFi Fails")
	if err != nil {
		t.Fatal(err)
	}
	sess.NameRoom("The Analog Commons", "A room of voyeuristic calm.")
	if err := Save(ctx, st, sess); err != nil {
		t.Fatal(err)
	}

	done, r, err := Finalize(ctx, st, sess.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !done.IsComplete || done.CompletedAt == nil {
		t.Error("session should be complete")
	}
	if r == nil || r.Origin() != sess.ID {
		t.Fatalf("room = %+v", r)
	}

	stored, err := room.Get(ctx, st, r.ID)
	if err != nil {
		t.Fatalf("room not stored: %v", err)
	}
	if stored.Name != "The Analog Commons" {
		t.Errorf("stored room = %q", stored.Name)
	}

	again, r2, err := Finalize(ctx, st, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r2 != nil {
		t.Error("second finalize should not emit a room")
	}
	if !again.CompletedAt.Equal(*done.CompletedAt) {
		t.Error("CompletedAt should not move")
	}
	rooms, _ := room.List(ctx, st)
	if len(rooms) != 1 {
		t.Errorf("rooms = %d, want 1", len(rooms))
	}
}

func TestSave_StaleCopyKeepsCompletion(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	sess, err := Create(ctx, st, "Anxiety Navigation", "The WiFi Fails")
	if err != nil {
		t.Fatal(err)
	}
	sess.NameRoom("The Analog Commons", "")
	if err := Save(ctx, st, sess); err != nil {
		t.Fatal(err)
	}
	stale := *sess

	done, r, err := Finalize(ctx, st, sess.ID)
	if err != nil || r == nil {
		t.Fatalf("Finalize = %v, %v", r, err)
	}
	if err := Save(ctx, st, &stale); err != nil {
		t.Fatalf("Save(stale): %v", err)
	}

	got, err := Get(ctx, st, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsComplete || got.CompletedAt == nil {
		t.Fatalf("completion reset: IsComplete=%v CompletedAt=%v", got.IsComplete, got.CompletedAt)
	}
	if !got.CompletedAt.Equal(*done.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done.CompletedAt)
	}

	if _, r2, err := Finalize(ctx, st, sess.ID); err != nil || r2 != nil {
		t.Errorf("finalize after stale save = %v, %v; want no room", r2, err)
	}
	rooms, _ := room.List(ctx, st)
	if len(rooms) != 1 {
		t.Errorf("rooms = %d, want 1", len(rooms))
	}
}

func TestFinalize_NoNameNoRoom(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	sess, _ := Create(ctx, st, "a", "f")

	_, r, err := Finalize(ctx, st, sess.ID)
	if err != nil || r != nil {
		t.Errorf("finalize = %v, %v; want no room", r, err)
	}
	rooms, _ := room.List(ctx, st)
	if len(rooms) != 0 {
		t.Errorf("rooms = %d", len(rooms))
	}

	if _, _, err := Finalize(ctx, st, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_KeepsRooms(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	sess, _ := Create(ctx, st, "Anxiety Navigation", "The WiFi Fails")
	sess.NameRoom("The Analog Commons", "")
	_ = Save(ctx, st, sess)
	_, r, err := Finalize(ctx, st, sess.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := Delete(ctx, st, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := Get(ctx, st, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Error("session should be gone")
	}

	kept, err := room.Get(ctx, st, r.ID)
	if err != nil {
		t.Fatalf("room should survive: %v", err)
	}
	if kept.OriginSessionID != nil {
		t.Errorf("origin = %q, want nil", kept.Origin())
	}

	var n int
	_ = st.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reflections WHERE session_id = ?`, sess.ID).Scan(&n)
	if n != 0 {
		t.Errorf("reflections left behind: %d", n)
	}

	if err := Delete(ctx, st, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func ids(list []Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
