package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".kiln")
	if err := store.Init(dir, false); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	st, err := store.Load(dir)
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewServer(st, "test")
}

func finishSession(t *testing.T, s *Server, anchorName, form, observation, roomName string) (*session.Session, *room.Room) {
	t.Helper()
	ctx := context.Background()
	sess, err := session.Create(ctx, s.store, anchorName, form)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.SetReflection(phase.Observation, observation); err != nil {
		t.Fatal(err)
	}
	sess.NameRoom(roomName, "")
	if err := session.Save(ctx, s.store, sess); err != nil {
		t.Fatal(err)
	}
	done, r, err := session.Finalize(ctx, s.store, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	return done, r
}

func TestHandleJournal(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	finishSession(t, s, "Anxiety Navigation", "The WiFi Fails", "Silence felt like a room", "The Analog Commons")
	finishSession(t, s, "Order Seeking", "The Regular Club", "Lines everywhere", "The Queue")
	if _, err := session.Create(ctx, s.store, "Anxiety Navigation", "The Spill"); err != nil {
		t.Fatal(err)
	}

	_, out, err := s.handleJournal(ctx, nil, JournalArgs{})
	if err != nil {
		t.Fatal(err)
	}
	res := out.(JournalResult)
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 (unfinished excluded)", len(res.Entries))
	}
	if len(res.Anchors) != 2 {
		t.Errorf("anchors = %v", res.Anchors)
	}

	_, out, err = s.handleJournal(ctx, nil, JournalArgs{Query: "SILENCE"})
	if err != nil {
		t.Fatal(err)
	}
	res = out.(JournalResult)
	if len(res.Entries) != 1 || res.Entries[0].RoomName != "The Analog Commons" {
		t.Errorf("entries = %+v", res.Entries)
	}
	if res.Entries[0].Observation == "" {
		t.Error("full format should include the observation")
	}

	_, out, _ = s.handleJournal(ctx, nil, JournalArgs{Query: "silence", Format: "compact"})
	if e := out.(JournalResult).Entries[0]; e.Observation != "" {
		t.Errorf("compact entry should omit observation: %+v", e)
	}

	_, out, _ = s.handleJournal(ctx, nil, JournalArgs{Query: "nothing matches this"})
	if res := out.(JournalResult); len(res.Entries) != 0 || res.Message == "" {
		t.Errorf("empty result = %+v", res)
	}
}

func TestHandleSessions(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	finishSession(t, s, "Anxiety Navigation", "The WiFi Fails", "obs", "Room")
	if _, err := session.Create(ctx, s.store, "Enclosement", "The Silent Car"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		status string
		want   int
	}{
		{"", 2},
		{"all", 2},
		{"complete", 1},
		{"in_progress", 1},
	}
	for _, tt := range tests {
		_, out, err := s.handleSessions(ctx, nil, SessionsArgs{Status: tt.status})
		if err != nil {
			t.Fatalf("status %q: %v", tt.status, err)
		}
		if got := len(out.(SessionsResult).Sessions); got != tt.want {
			t.Errorf("status %q: %d sessions, want %d", tt.status, got, tt.want)
		}
	}
	if _, _, err := s.handleSessions(ctx, nil, SessionsArgs{Status: "bogus"}); err == nil {
		t.Error("unknown status should fail")
	}
}

func TestHandleSessionShow(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	done, _ := finishSession(t, s, "Anxiety Navigation", "The WiFi Fails", "quiet", "The Analog Commons")

	_, out, err := s.handleSessionShow(ctx, nil, SessionShowArgs{ID: done.ID[:12]})
	if err != nil {
		t.Fatal(err)
	}
	d := out.(SessionDetail)
	if d.ID != done.ID || d.Status != "complete" {
		t.Errorf("detail = %+v", d.SessionSummary)
	}
	if len(d.Reflections) != phase.Count || d.Reflections["observation"] != "quiet" {
		t.Errorf("reflections = %v", d.Reflections)
	}
	if !strings.Contains(d.Markdown, "The Analog Commons") {
		t.Errorf("markdown missing room:\n%s", d.Markdown)
	}

	if _, _, err := s.handleSessionShow(ctx, nil, SessionShowArgs{ID: "nope"}); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHandleAnchors(t *testing.T) {
	s := setupServer(t)
	_, out, err := s.handleAnchors(context.Background(), nil, AnchorsArgs{})
	if err != nil {
		t.Fatal(err)
	}
	res := out.(AnchorsResult)
	if len(res.Anchors) != 14 || res.Default != "Anxiety Navigation" {
		t.Errorf("anchors = %d, default = %q", len(res.Anchors), res.Default)
	}
}

func TestRoomsGraphAndLinking(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()
	_, commons := finishSession(t, s, "Anxiety Navigation", "The WiFi Fails", "obs", "The Analog Commons")
	_, queue := finishSession(t, s, "Order Seeking", "The Regular Club", "obs", "The Queue")

	// Self links are refused before any proposal exists.
	if _, _, err := s.handleLinkPropose(ctx, nil, LinkProposeArgs{RoomA: "the queue", RoomB: queue.ID}); !errors.Is(err, room.ErrSelfAdjacency) {
		t.Errorf("err = %v, want ErrSelfAdjacency", err)
	}

	_, out, err := s.handleLinkPropose(ctx, nil, LinkProposeArgs{RoomA: "the analog commons", RoomB: "The Queue", Reason: "both are about waiting"})
	if err != nil {
		t.Fatal(err)
	}
	prop := out.(LinkProposeResult)
	if prop.ProposalID == "" || prop.AlreadyAdjacent {
		t.Fatalf("proposal = %+v", prop)
	}

	// Nothing is written before confirmation.
	if edges, _ := room.ListEdges(ctx, s.store); len(edges) != 0 {
		t.Fatalf("edges before confirm = %v", edges)
	}
	if _, _, err := s.handleLinkConfirm(ctx, nil, LinkConfirmArgs{ProposalID: prop.ProposalID}); err == nil {
		t.Error("confirm without user_confirmed should fail")
	}

	if _, _, err := s.handleLinkConfirm(ctx, nil, LinkConfirmArgs{ProposalID: prop.ProposalID, UserConfirmed: true}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, _, err := s.handleLinkConfirm(ctx, nil, LinkConfirmArgs{ProposalID: prop.ProposalID, UserConfirmed: true}); err == nil {
		t.Error("a proposal should only be usable once")
	}

	_, out, err = s.handleLinkPropose(ctx, nil, LinkProposeArgs{RoomA: queue.ID, RoomB: commons.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !out.(LinkProposeResult).AlreadyAdjacent {
		t.Error("reverse proposal should see the existing edge")
	}

	_, out, err = s.handleRooms(ctx, nil, RoomsArgs{})
	if err != nil {
		t.Fatal(err)
	}
	rooms := out.(RoomsResult)
	if len(rooms.Rooms) != 2 || rooms.Edges != 1 {
		t.Errorf("rooms = %+v", rooms)
	}
	for _, r := range rooms.Rooms {
		if r.Adjacent != 1 {
			t.Errorf("%s adjacent = %d, want 1", r.Name, r.Adjacent)
		}
	}

	_, out, err = s.handleRooms(ctx, nil, RoomsArgs{Anchor: "order seeking"})
	if err != nil {
		t.Fatal(err)
	}
	if rs := out.(RoomsResult).Rooms; len(rs) != 1 || rs[0].Name != "The Queue" {
		t.Errorf("anchor filter = %+v", rs)
	}

	_, out, err = s.handleRoomGraph(ctx, nil, RoomGraphArgs{Room: "The Queue"})
	if err != nil {
		t.Fatal(err)
	}
	w := out.(*room.WalkResult)
	if len(w.Nodes) != 1 || w.Nodes[0].Name != "The Analog Commons" {
		t.Errorf("walk = %+v", w.Nodes)
	}
	if _, _, err := s.handleRoomGraph(ctx, nil, RoomGraphArgs{}); err == nil {
		t.Error("empty room should fail")
	}
}

func TestProposalStore_Expiry(t *testing.T) {
	a := room.New("Attic", "", "A", "F", "")
	b := room.New("Basement", "", "A", "F", "")

	ps := NewProposalStoreWithTTL(time.Millisecond)
	p := ps.Propose(a, b, "")
	time.Sleep(5 * time.Millisecond)
	if ps.Pending() != 0 {
		t.Errorf("pending = %d, want 0", ps.Pending())
	}
	if n := ps.Sweep(); n != 1 {
		t.Errorf("sweep = %d, want 1", n)
	}
	if _, err := ps.Take(p.ID); !errors.Is(err, ErrProposalNotFound) {
		t.Errorf("err = %v, want ErrProposalNotFound", err)
	}

	stale := ps.Propose(a, b, "")
	time.Sleep(5 * time.Millisecond)
	if _, err := ps.Take(stale.ID); !errors.Is(err, ErrProposalExpired) {
		t.Errorf("err = %v, want ErrProposalExpired", err)
	}
}

func TestProposalStore_OnePerPair(t *testing.T) {
	a := room.New("Attic", "", "A", "F", "")
	b := room.New("Basement", "", "A", "F", "")
	ps := NewProposalStore()

	first := ps.Propose(a, b, "stairs")
	second := ps.Propose(b, a, "both below the roof")
	if first.ID != second.ID {
		t.Errorf("reversed pair should reuse the proposal: %s vs %s", first.ID, second.ID)
	}
	if second.Reason != "both below the roof" {
		t.Errorf("reason = %q", second.Reason)
	}
	if ps.Pending() != 1 {
		t.Errorf("pending = %d, want 1", ps.Pending())
	}
	if second.Edge != room.NewEdge(a.ID, b.ID) {
		t.Errorf("edge = %v", second.Edge)
	}
	wantA := "Attic"
	if second.Edge.A != a.ID {
		wantA = "Basement"
	}
	if second.NameA != wantA {
		t.Errorf("NameA = %q, want %q", second.NameA, wantA)
	}

	got, err := ps.Take(first.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("Take = %+v, %v", got, err)
	}
	if _, err := ps.Take(first.ID); !errors.Is(err, ErrProposalNotFound) {
		t.Errorf("second Take err = %v", err)
	}
	if again := ps.Propose(a, b, ""); again.ID == first.ID {
		t.Error("a taken proposal should not be reused")
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-10 * time.Minute), "10 minutes ago"},
		{now.Add(-90 * time.Minute), "1 hour ago"},
		{now.Add(-30 * time.Hour), "1 day ago"},
		{now.Add(-5 * 24 * time.Hour), "5 days ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.t); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
