// Package mcp exposes the Kiln journal and room graph to agents over the
// Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/kiln/internal/anchor"
	"github.com/kokistudios/kiln/internal/journal"
	"github.com/kokistudios/kiln/internal/phase"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
)

// Server wraps the MCP server with Kiln's store.
type Server struct {
	store     *store.Store
	server    *mcp.Server
	proposals *ProposalStore
}

// NewServer creates a new Kiln MCP server.
func NewServer(st *store.Store, version string) *Server {
	s := &Server{store: st, proposals: NewProposalStore()}

	impl := &mcp.Implementation{
		Name:    "kiln",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.proposals.SweepEvery(ctx, 5*time.Minute)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kiln_journal",
		Description: "Search the Kiln journal of completed reflection sessions. Matches the query against the " +
			"Observation reflection, the room name and the anchor name (case-insensitive). " +
			"Call with no params to get the most recent entries. Results are newest first.",
	}, s.handleJournal)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kiln_sessions",
		Description: "List Kiln sessions, finished or in progress, newest first. Use kiln_session_show for the full reflections of one session.",
	}, s.handleSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kiln_session_show",
		Description: "Get one session in full: every phase reflection, the empty heat duration, and the room that emerged. Accepts a full ID, a unique ID prefix, or 'latest'.",
	}, s.handleSessionShow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kiln_anchors",
		Description: "List the anchor catalog: the fourteen built-in anchors followed by the user's custom anchors, each with its tentative forms.",
	}, s.handleAnchors)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kiln_rooms",
		Description: "List rooms (new forms that emerged from sessions), newest first, with how many rooms each one is adjacent to.",
	}, s.handleRooms)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "kiln_room_graph",
		Description: "Walk the room adjacency graph outward from one room up to a given depth (default 2). Returns the rooms reached, the edges, and an ASCII rendering.",
	}, s.handleRoomGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kiln_room_link_propose",
		Description: "Propose an adjacency between two rooms. Nothing is written until the user confirms. " +
			"Returns a proposal_id valid for 30 minutes. Explain the reason for the link to the user, " +
			"then call kiln_room_link_confirm only after they agree.",
	}, s.handleLinkPropose)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "kiln_room_link_confirm",
		Description: "Write a proposed room adjacency. BEFORE CALLING: you MUST show the user the two rooms and the reason, " +
			"ask for explicit permission, and only then call with user_confirmed=true.",
	}, s.handleLinkConfirm)
}

// JournalArgs defines the input for kiln_journal.
type JournalArgs struct {
	Query  string `json:"query,omitempty" jsonschema:"Text to find in observations, room names and anchor names"`
	Anchor string `json:"anchor,omitempty" jsonschema:"Only entries for this exact anchor name"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum entries to return (default 15)"`
	Format string `json:"format,omitempty" jsonschema:"Output format: 'full' (default) or 'compact' (no reflections)"`
}

// JournalResult is the output of kiln_journal.
type JournalResult struct {
	Entries []JournalEntry `json:"entries"`
	Anchors []string       `json:"anchors,omitempty"`
	Message string         `json:"message,omitempty"`
}

// JournalEntry is a lightweight view of a completed session.
type JournalEntry struct {
	SessionID   string `json:"session_id"`
	Anchor      string `json:"anchor"`
	Form        string `json:"form"`
	Observation string `json:"observation,omitempty"`
	RoomName    string `json:"room_name,omitempty"`
	RoomSpirit  string `json:"room_spirit,omitempty"`
	EmptyHeat   string `json:"empty_heat,omitempty"`
	Recency     string `json:"recency"`
}

func (s *Server) handleJournal(ctx context.Context, req *mcp.CallToolRequest, args JournalArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 15
	}
	all, err := journal.Load(ctx, s.store, journal.Query{})
	if err != nil {
		return nil, nil, fmt.Errorf("journal query failed: %w", err)
	}
	entries := journal.Search(all, journal.Query{Search: args.Query, Anchor: args.Anchor, Limit: limit})

	out := JournalResult{Entries: []JournalEntry{}, Anchors: journal.Anchors(all)}
	if len(entries) == 0 {
		out.Message = "No journal entries match. Try a broader query, or call with no params to see recent entries."
		return nil, out, nil
	}

	compact := args.Format == "compact"
	for _, e := range entries {
		je := JournalEntry{
			SessionID: e.ID,
			Anchor:    e.AnchorName,
			Form:      e.StartingForm,
			RoomName:  e.RoomName,
			Recency:   formatRelativeTime(completedOrCreated(e)),
		}
		if !compact {
			je.Observation = e.Reflection(phase.Observation)
			je.RoomSpirit = e.RoomSpirit
			if e.EmptyHeatDuration > 0 {
				je.EmptyHeat = session.FormatDuration(e.EmptyHeatDuration)
			}
		}
		out.Entries = append(out.Entries, je)
	}
	return nil, out, nil
}

// SessionsArgs defines input for kiln_sessions.
type SessionsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"Filter: 'complete', 'in_progress' or 'all' (default)"`
	Anchor string `json:"anchor,omitempty" jsonschema:"Only sessions on this exact anchor name"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum sessions to return (default 20)"`
}

// SessionsResult is the output of kiln_sessions.
type SessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionSummary is a lightweight view of a session.
type SessionSummary struct {
	ID        string `json:"id"`
	Anchor    string `json:"anchor"`
	Form      string `json:"form"`
	Status    string `json:"status"`
	Progress  string `json:"progress"`
	RoomName  string `json:"room_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleSessions(ctx context.Context, req *mcp.CallToolRequest, args SessionsArgs) (*mcp.CallToolResult, any, error) {
	f := session.Filter{Anchor: args.Anchor, Limit: args.Limit}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	switch args.Status {
	case "", "all":
	case "complete", "completed":
		f.CompletedOnly = true
	case "in_progress", "in-progress", "open":
		f.InProgressOnly = true
	default:
		return nil, nil, fmt.Errorf("unknown status %q: use complete, in_progress or all", args.Status)
	}

	list, err := session.List(ctx, s.store, f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := SessionsResult{Sessions: []SessionSummary{}, Total: len(list)}
	for i := range list {
		out.Sessions = append(out.Sessions, summarize(&list[i]))
	}
	return nil, out, nil
}

func summarize(sess *session.Session) SessionSummary {
	status := "in_progress"
	if sess.IsComplete {
		status = "complete"
	}
	return SessionSummary{
		ID:        sess.ID,
		Anchor:    sess.AnchorName,
		Form:      sess.StartingForm,
		Status:    status,
		Progress:  fmt.Sprintf("%d/%d", sess.Progress(), len(phase.Sequence())),
		RoomName:  sess.RoomName,
		CreatedAt: sess.CreatedAt.Format("2006-01-02"),
	}
}

// SessionShowArgs defines input for kiln_session_show.
type SessionShowArgs struct {
	ID string `json:"id,omitempty" jsonschema:"Session ID, unique ID prefix, or 'latest' (default)"`
}

// SessionDetail is the full view of one session.
type SessionDetail struct {
	SessionSummary
	Reflections map[string]string `json:"reflections"`
	EmptyHeat   string            `json:"empty_heat,omitempty"`
	RoomSpirit  string            `json:"room_spirit,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
	Markdown    string            `json:"markdown"`
}

func (s *Server) handleSessionShow(ctx context.Context, req *mcp.CallToolRequest, args SessionShowArgs) (*mcp.CallToolResult, any, error) {
	sess, err := session.Resolve(ctx, s.store, args.ID)
	if err != nil {
		return nil, nil, err
	}
	out := SessionDetail{
		SessionSummary: summarize(sess),
		Reflections:    make(map[string]string),
		RoomSpirit:     sess.RoomSpirit,
		Markdown:       sess.Markdown(),
	}
	for _, p := range phase.Sequence() {
		out.Reflections[p.String()] = sess.Reflection(p)
	}
	if sess.EmptyHeatDuration > 0 {
		out.EmptyHeat = session.FormatDuration(sess.EmptyHeatDuration)
	}
	if sess.CompletedAt != nil {
		out.CompletedAt = sess.CompletedAt.Format(time.RFC3339)
	}
	return nil, out, nil
}

// AnchorsArgs defines input for kiln_anchors (no arguments needed).
type AnchorsArgs struct{}

// AnchorsResult is the output of kiln_anchors.
type AnchorsResult struct {
	Anchors []anchor.Anchor `json:"anchors"`
	Default string          `json:"default"`
}

func (s *Server) handleAnchors(ctx context.Context, req *mcp.CallToolRequest, args AnchorsArgs) (*mcp.CallToolResult, any, error) {
	all, err := anchor.Catalog(ctx, s.store)
	if err != nil {
		return nil, nil, err
	}
	return nil, AnchorsResult{Anchors: all, Default: anchor.Default().Name}, nil
}

// RoomsArgs defines input for kiln_rooms.
type RoomsArgs struct {
	Anchor string `json:"anchor,omitempty" jsonschema:"Only rooms that emerged from this anchor"`
}

// RoomsResult is the output of kiln_rooms.
type RoomsResult struct {
	Rooms []RoomSummary `json:"rooms"`
	Edges int           `json:"edges"`
}

// RoomSummary is a lightweight view of a room.
type RoomSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Spirit        string `json:"spirit,omitempty"`
	Anchor        string `json:"anchor,omitempty"`
	Form          string `json:"form,omitempty"`
	OriginSession string `json:"origin_session,omitempty"`
	Adjacent      int    `json:"adjacent"`
	Recency       string `json:"recency"`
}

func (s *Server) handleRooms(ctx context.Context, req *mcp.CallToolRequest, args RoomsArgs) (*mcp.CallToolResult, any, error) {
	g, err := room.LoadGraph(ctx, s.store)
	if err != nil {
		return nil, nil, err
	}
	out := RoomsResult{Rooms: []RoomSummary{}, Edges: len(g.Edges())}
	for _, r := range g.Rooms() {
		if args.Anchor != "" && !strings.EqualFold(r.AnchorName, args.Anchor) {
			continue
		}
		out.Rooms = append(out.Rooms, RoomSummary{
			ID:            r.ID,
			Name:          r.Name,
			Spirit:        r.Spirit,
			Anchor:        r.AnchorName,
			Form:          r.StartingForm,
			OriginSession: r.Origin(),
			Adjacent:      g.Degree(r.ID),
			Recency:       formatRelativeTime(r.CreatedAt),
		})
	}
	return nil, out, nil
}

// RoomGraphArgs defines input for kiln_room_graph.
type RoomGraphArgs struct {
	Room  string `json:"room" jsonschema:"Room ID, ID prefix, or name"`
	Depth int    `json:"depth,omitempty" jsonschema:"How many hops to walk (default 2)"`
}

func (s *Server) handleRoomGraph(ctx context.Context, req *mcp.CallToolRequest, args RoomGraphArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Room) == "" {
		return nil, nil, fmt.Errorf("room is required")
	}
	g, err := room.LoadGraph(ctx, s.store)
	if err != nil {
		return nil, nil, err
	}
	r, err := g.Find(args.Room)
	if err != nil {
		return nil, nil, err
	}
	w, err := room.Walk(g, r.ID, args.Depth)
	if err != nil {
		return nil, nil, err
	}
	return nil, w, nil
}

// LinkProposeArgs defines input for kiln_room_link_propose.
type LinkProposeArgs struct {
	RoomA  string `json:"room_a" jsonschema:"First room: ID, ID prefix, or name"`
	RoomB  string `json:"room_b" jsonschema:"Second room: ID, ID prefix, or name"`
	Reason string `json:"reason,omitempty" jsonschema:"Why these rooms belong next to each other"`
}

// LinkProposeResult is the output of kiln_room_link_propose.
type LinkProposeResult struct {
	ProposalID      string `json:"proposal_id,omitempty"`
	AlreadyAdjacent bool   `json:"already_adjacent"`
	Message         string `json:"message"`
}

func (s *Server) handleLinkPropose(ctx context.Context, req *mcp.CallToolRequest, args LinkProposeArgs) (*mcp.CallToolResult, any, error) {
	g, err := room.LoadGraph(ctx, s.store)
	if err != nil {
		return nil, nil, err
	}
	a, err := g.Find(args.RoomA)
	if err != nil {
		return nil, nil, err
	}
	b, err := g.Find(args.RoomB)
	if err != nil {
		return nil, nil, err
	}
	if a.ID == b.ID {
		return nil, nil, room.ErrSelfAdjacency
	}
	if g.IsAdjacent(a.ID, b.ID) {
		return nil, LinkProposeResult{
			AlreadyAdjacent: true,
			Message:         fmt.Sprintf("%s and %s are already adjacent", a.Name, b.Name),
		}, nil
	}

	p := s.proposals.Propose(a, b, strings.TrimSpace(args.Reason))
	return nil, LinkProposeResult{
		ProposalID: p.ID,
		Message:    fmt.Sprintf("Proposed %s <-> %s. Ask the user before confirming.", a.Name, b.Name),
	}, nil
}

// LinkConfirmArgs defines input for kiln_room_link_confirm.
type LinkConfirmArgs struct {
	ProposalID    string `json:"proposal_id" jsonschema:"ID returned by kiln_room_link_propose"`
	UserConfirmed bool   `json:"user_confirmed" jsonschema:"Must be true: the user explicitly approved this link"`
}

// LinkConfirmResult is the output of kiln_room_link_confirm.
type LinkConfirmResult struct {
	RoomA   string `json:"room_a"`
	RoomB   string `json:"room_b"`
	Message string `json:"message"`
}

func (s *Server) handleLinkConfirm(ctx context.Context, req *mcp.CallToolRequest, args LinkConfirmArgs) (*mcp.CallToolResult, any, error) {
	if !args.UserConfirmed {
		return nil, nil, fmt.Errorf("user_confirmed must be true. Before calling this tool, show the user both rooms and the reason, and get explicit permission")
	}
	p, err := s.proposals.Take(args.ProposalID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s (propose the link again)", err, args.ProposalID)
	}
	if err := room.Link(ctx, s.store, p.Edge.A, p.Edge.B); err != nil {
		return nil, nil, fmt.Errorf("failed to link rooms: %w", err)
	}
	return nil, LinkConfirmResult{
		RoomA:   p.NameA,
		RoomB:   p.NameB,
		Message: fmt.Sprintf("%s and %s are now adjacent", p.NameA, p.NameB),
	}, nil
}

func completedOrCreated(s session.Session) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.CreatedAt
}

// formatRelativeTime formats a time as a human-readable relative string.
func formatRelativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins <= 1 {
			return "just now"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	if days < 30 {
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("2006-01-02")
}
