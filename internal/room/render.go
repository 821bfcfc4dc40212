package room

import (
	"fmt"
	"strings"
)

// WalkNode is a room reached during a walk, with its hop distance from the root.
type WalkNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Anchor   string `json:"anchor"`
	Distance int    `json:"distance"`
}

// WalkResult is the neighborhood of a room up to a given depth.
type WalkResult struct {
	Root  WalkNode   `json:"root"`
	Nodes []WalkNode `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Depth int        `json:"depth"`
	ASCII string     `json:"ascii"`
}

// Walk explores the graph breadth-first from rootID, up to depth hops.
func Walk(g *Graph, rootID string, depth int) (*WalkResult, error) {
	if depth <= 0 {
		depth = 2
	}
	root, ok := g.Room(rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, rootID)
	}

	result := &WalkResult{
		Root:  WalkNode{ID: root.ID, Name: root.Name, Anchor: root.AnchorName},
		Nodes: []WalkNode{},
		Edges: []Edge{},
		Depth: depth,
	}

	type item struct {
		id       string
		distance int
	}
	visited := map[string]bool{rootID: true}
	seenEdge := make(map[Edge]bool)
	queue := []item{{rootID, 0}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.distance >= depth {
			continue
		}
		for _, n := range g.Neighbors(it.id) {
			e := NewEdge(it.id, n.ID)
			if !seenEdge[e] {
				seenEdge[e] = true
				result.Edges = append(result.Edges, e)
			}
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			result.Nodes = append(result.Nodes, WalkNode{ID: n.ID, Name: n.Name, Anchor: n.AnchorName, Distance: it.distance + 1})
			queue = append(queue, item{n.ID, it.distance + 1})
		}
	}

	result.ASCII = buildASCII(result)
	return result, nil
}

func buildASCII(w *WalkResult) string {
	var sb strings.Builder

	names := map[string]string{w.Root.ID: w.Root.Name}
	byDistance := map[int][]WalkNode{0: {w.Root}}
	for _, n := range w.Nodes {
		names[n.ID] = n.Name
		byDistance[n.Distance] = append(byDistance[n.Distance], n)
	}

	edgesFrom := make(map[string][]string)
	for _, e := range w.Edges {
		edgesFrom[e.A] = append(edgesFrom[e.A], e.B)
		edgesFrom[e.B] = append(edgesFrom[e.B], e.A)
	}

	for dist := 0; dist <= w.Depth; dist++ {
		nodes := byDistance[dist]
		if len(nodes) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("Level %d:\n", dist))
		for _, n := range nodes {
			marker := "  "
			if dist == 0 {
				marker = "* "
			}
			sb.WriteString(fmt.Sprintf("%s%s %s\n", marker, truncateString(n.Name, 40), "("+n.Anchor+")"))
			for _, other := range edgesFrom[n.ID] {
				sb.WriteString(fmt.Sprintf("    <--> %s\n", truncateString(names[other], 40)))
			}
		}
	}

	if len(w.Nodes) == 0 {
		sb.WriteString("No adjacent rooms.\n")
	}
	return sb.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
