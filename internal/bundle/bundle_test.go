package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kokistudios/kiln/internal/anchor"
	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/session"
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

// seed fills a store with one finished session and its room, an unfinished
// session, a second room linked to the first, and a custom anchor.
func seed(t *testing.T, st *store.Store) (finished *session.Session, first *room.Room) {
	t.Helper()
	ctx := context.Background()

	sess, err := session.Create(ctx, st, "Anxiety Navigation", "The WiFi Fails")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range phase.Sequence() {
		if err := sess.SetReflection(p, "notes on "+p.Title()); err != nil {
			t.Fatal(err)
		}
	}
	if err := sess.RecordEmptyHeatDuration(5 * time.Minute); err != nil {
		t.Fatal(err)
	}
	sess.NameRoom("The Analog Commons", "a quiet table")
	if err := session.Save(ctx, st, sess); err != nil {
		t.Fatal(err)
	}
	done, r, err := session.Finalize(ctx, st, sess.ID)
	if err != nil || r == nil {
		t.Fatalf("Finalize: %v, %v", r, err)
	}

	open, err := session.Create(ctx, st, "The Restless Scroll", "Doomscrolling")
	if err != nil {
		t.Fatal(err)
	}
	_ = open

	other := room.New("The Porch", "", "", "", "")
	if err := room.Save(ctx, st, other); err != nil {
		t.Fatal(err)
	}
	if err := room.Link(ctx, st, r.ID, other.ID); err != nil {
		t.Fatal(err)
	}

	c, err := anchor.NewCustom("Late Night Snacking", "kitchen at 1am", []anchor.TentativeForm{
		{Context: "after work", FormName: "The Fridge Glow"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := anchor.SaveCustom(ctx, st, c); err != nil {
		t.Fatal(err)
	}
	return done, r
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	finished, firstRoom := seed(t, src)

	out := filepath.Join(t.TempDir(), "journal")
	path, m, err := Export(ctx, src, out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasSuffix(path, ".kiln") {
		t.Errorf("path = %q, want .kiln suffix", path)
	}
	if m.Sessions != 2 || m.Rooms != 2 || m.Edges != 1 || m.Anchors != 1 {
		t.Errorf("manifest = %+v", m)
	}

	dst := setupStore(t)
	res, err := Import(ctx, dst, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.SessionsAdded != 2 || res.RoomsAdded != 2 || res.EdgesAdded != 1 || res.AnchorsAdded != 1 {
		t.Errorf("result = %+v", res)
	}

	got, err := session.Get(ctx, dst, finished.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsComplete || got.CompletedAt == nil || !got.CompletedAt.Equal(*finished.CompletedAt) {
		t.Errorf("completion not preserved: %+v", got)
	}
	if got.EmptyHeatDuration != 5*time.Minute {
		t.Errorf("duration = %v", got.EmptyHeatDuration)
	}
	for _, p := range phase.Sequence() {
		if got.Reflection(p) != finished.Reflection(p) {
			t.Errorf("%s reflection = %q, want %q", p, got.Reflection(p), finished.Reflection(p))
		}
	}

	r, err := room.Get(ctx, dst, firstRoom.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Origin() != finished.ID {
		t.Errorf("origin = %q, want %q", r.Origin(), finished.ID)
	}
	g, err := room.LoadGraph(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	if g.Degree(firstRoom.ID) != 1 {
		t.Errorf("degree = %d, want 1", g.Degree(firstRoom.ID))
	}

	c, err := anchor.FindCustom(ctx, dst, "late night snacking")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Forms) != 1 || c.Forms[0].FormName != "The Fridge Glow" {
		t.Errorf("forms = %+v", c.Forms)
	}
}

func TestImport_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	seed(t, st)

	path, _, err := Export(ctx, st, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	res, err := Import(ctx, st, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.SessionsAdded != 0 || res.SessionsSkipped != 2 {
		t.Errorf("sessions: %+v", res)
	}
	if res.RoomsAdded != 0 || res.RoomsSkipped != 2 || res.EdgesAdded != 0 {
		t.Errorf("rooms: %+v", res)
	}
	if res.AnchorsSkipped != 1 {
		t.Errorf("anchors: %+v", res)
	}
	edges, err := room.ListEdges(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Errorf("edges = %v, want 1", edges)
	}
}

func TestReadManifest(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)
	seed(t, st)
	path, _, err := Export(ctx, st, filepath.Join(t.TempDir(), "x.kiln"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != FormatVersion || m.Sessions != 2 {
		t.Errorf("manifest = %+v", m)
	}
}

func writeTarGz(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bad.kiln")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, body := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(body)), Mode: 0644}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gw.Close()
	return path
}

func TestImport_InvalidBundles(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	notGzip := filepath.Join(t.TempDir(), "plain.kiln")
	if err := os.WriteFile(notGzip, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"not gzip", notGzip, "gzip"},
		{"no manifest", writeTarGz(t, map[string]string{roomsFile: "rooms: []\n"}), "manifest"},
		{"future version", writeTarGz(t, map[string]string{manifestFile: "version: \"9\"\n"}), "unsupported"},
		{"self edge", writeTarGz(t, map[string]string{
			manifestFile: "version: \"1\"\n",
			roomsFile:    "edges:\n  - a: x\n    b: x\n",
		}), "itself"},
		{"edge to missing room", writeTarGz(t, map[string]string{
			manifestFile:            "version: \"1\"\n",
			sessionsDir + "s1.yaml": "id: s1\nanchor_name: Order Seeking\nstarting_form: The Regular Club\n",
			roomsFile: "rooms:\n  - id: r1\n    name: The Porch\n" +
				"edges:\n  - a: ghost\n    b: r1\n",
		}), "room not found"},
		{"empty anchor name", writeTarGz(t, map[string]string{
			manifestFile: "version: \"1\"\n",
			anchorsFile:  "anchors:\n  - id: a1\n    name: \"  \"\n",
		}), "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(ctx, st, tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	sessions, err := session.List(ctx, st, session.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Error("invalid bundles must not write anything")
	}
	rooms, err := room.List(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 0 {
		t.Errorf("rooms = %d, want none after a rejected import", len(rooms))
	}
}
