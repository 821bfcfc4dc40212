package room

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrSelfAdjacency is returned when a room is linked to itself.
	ErrSelfAdjacency = errors.New("a room cannot be adjacent to itself")
	// ErrUnknownRoom is returned when an edge names a room not in the graph.
	ErrUnknownRoom = errors.New("room not found")
	// ErrAmbiguousRoom is returned when a name matches more than one room.
	ErrAmbiguousRoom = errors.New("room name is ambiguous")
)

// Edge is an undirected adjacency stored with A < B.
type Edge struct {
	A string `yaml:"a" json:"a"`
	B string `yaml:"b" json:"b"`
}

// NewEdge returns the normalized edge between two room IDs.
func NewEdge(a, b string) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Other returns the endpoint that is not id.
func (e Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

// Graph is an in-memory undirected graph of rooms. Each adjacency is a
// single normalized edge, so "a is adjacent to b" and "b is adjacent to a"
// are the same fact and cannot disagree.
type Graph struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	edges map[Edge]struct{}
	// incident indexes edges by endpoint for neighbor lookups and deletion.
	incident map[string]map[Edge]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		rooms:    make(map[string]*Room),
		edges:    make(map[Edge]struct{}),
		incident: make(map[string]map[Edge]struct{}),
	}
}

// Add inserts or replaces a room node. Existing edges are kept.
func (g *Graph) Add(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[r.ID] = r
	if g.incident[r.ID] == nil {
		g.incident[r.ID] = make(map[Edge]struct{})
	}
}

// Room returns the room with the given ID.
func (g *Graph) Room(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Find resolves a room by exact ID, then by case-insensitive name, then by
// unique ID prefix.
func (g *Graph) Find(ref string) (*Room, error) {
	ref = strings.TrimSpace(ref)
	if r, ok := g.Room(ref); ok {
		return r, nil
	}
	var byName, byPrefix []*Room
	for _, r := range g.Rooms() {
		if strings.EqualFold(r.Name, ref) {
			byName = append(byName, r)
		}
		if ref != "" && strings.HasPrefix(r.ID, ref) {
			byPrefix = append(byPrefix, r)
		}
	}
	for _, matches := range [][]*Room{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return nil, fmt.Errorf("%w: %q matches %d rooms", ErrAmbiguousRoom, ref, len(matches))
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, ref)
}

// Rooms returns all rooms, newest first.
func (g *Graph) Rooms() []*Room {
	g.mu.RLock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	g.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// Len returns the number of rooms.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// IsAdjacent reports whether a and b share an edge. Symmetric by construction.
func (g *Graph) IsAdjacent(a, b string) bool {
	if a == b {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[NewEdge(a, b)]
	return ok
}

// AddAdjacency links a and b. Linking an already adjacent pair is a no-op.
func (g *Graph) AddAdjacency(a, b string) error {
	if a == b {
		return ErrSelfAdjacency
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireLocked(a, b); err != nil {
		return err
	}
	e := NewEdge(a, b)
	if _, ok := g.edges[e]; ok {
		return nil
	}
	g.edges[e] = struct{}{}
	g.incident[a][e] = struct{}{}
	g.incident[b][e] = struct{}{}
	return nil
}

// RemoveAdjacency unlinks a and b. Removing a missing edge is a no-op.
func (g *Graph) RemoveAdjacency(a, b string) {
	if a == b {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgeLocked(NewEdge(a, b))
}

// DeleteRoom removes every edge touching id and then the room itself.
func (g *Graph) DeleteRoom(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, id)
	}
	for e := range g.incident[id] {
		g.removeEdgeLocked(e)
	}
	delete(g.incident, id)
	delete(g.rooms, id)
	return nil
}

// Neighbors returns the rooms adjacent to id, sorted by name.
func (g *Graph) Neighbors(id string) []*Room {
	g.mu.RLock()
	out := make([]*Room, 0, len(g.incident[id]))
	for e := range g.incident[id] {
		if r, ok := g.rooms[e.Other(id)]; ok {
			out = append(out, r)
		}
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Degree returns the number of rooms adjacent to id.
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incident[id])
}

// Edges returns every edge in a stable order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Linkable returns rooms that id could still be linked to: every other room
// that is not already adjacent, newest first.
func (g *Graph) Linkable(id string) []*Room {
	var out []*Room
	for _, r := range g.Rooms() {
		if r.ID != id && !g.IsAdjacent(id, r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func (g *Graph) requireLocked(ids ...string) error {
	for _, id := range ids {
		if _, ok := g.rooms[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, id)
		}
	}
	return nil
}

func (g *Graph) removeEdgeLocked(e Edge) {
	if _, ok := g.edges[e]; !ok {
		return
	}
	delete(g.edges, e)
	delete(g.incident[e.A], e)
	delete(g.incident[e.B], e)
}

func sortNewestFirst(rooms []*Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
		}
		return rooms[i].ID > rooms[j].ID
	})
}
