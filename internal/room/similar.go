package room

import (
	"regexp"
	"sort"
	"strings"
)

// SimilarThreshold is the keyword overlap at which two rooms count as kin.
const SimilarThreshold = 0.3

// Match is a room with its keyword overlap against a reference room.
type Match struct {
	Room  *Room
	Score float64
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "it": true, "its": true, "this": true,
	"that": true, "my": true, "me": true, "i": true, "you": true, "your": true,
	"where": true, "when": true, "what": true, "into": true,
}

func keywords(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordSplit.Split(strings.ToLower(text), -1) {
		if len(w) > 2 && !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similar ranks candidates by keyword overlap of name and spirit with r.
// Rooms from the same anchor get a small boost. Only matches at or above
// SimilarThreshold are returned, best first.
func Similar(r *Room, candidates []*Room) []Match {
	ref := keywords(r.Name + " " + r.Spirit)
	var out []Match
	for _, c := range candidates {
		if c.ID == r.ID {
			continue
		}
		score := jaccard(ref, keywords(c.Name+" "+c.Spirit))
		if score > 0 && c.AnchorName == r.AnchorName {
			score += 0.1
		}
		if score >= SimilarThreshold {
			out = append(out, Match{Room: c, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
