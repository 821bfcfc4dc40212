package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kokistudios/kiln/internal/room"
)

// DefaultProposalTTL is how long an agent's link suggestion waits for the user.
const DefaultProposalTTL = 30 * time.Minute

var (
	ErrProposalNotFound = errors.New("link proposal not found")
	ErrProposalExpired  = errors.New("link proposal expired")
)

// LinkProposal is an adjacency suggested by an agent and held until the
// user confirms it.
type LinkProposal struct {
	ID        string    `json:"id"`
	Edge      room.Edge `json:"edge"`
	NameA     string    `json:"name_a"`
	NameB     string    `json:"name_b"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *LinkProposal) expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ProposalStore holds pending link proposals, at most one per room pair.
type ProposalStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	byID   map[string]*LinkProposal
	byEdge map[room.Edge]string
}

// NewProposalStore returns a store whose proposals live for DefaultProposalTTL.
func NewProposalStore() *ProposalStore {
	return NewProposalStoreWithTTL(DefaultProposalTTL)
}

// NewProposalStoreWithTTL returns a store with a custom proposal lifetime.
func NewProposalStoreWithTTL(ttl time.Duration) *ProposalStore {
	return &ProposalStore{
		ttl:    ttl,
		byID:   make(map[string]*LinkProposal),
		byEdge: make(map[room.Edge]string),
	}
}

// Propose records a suggested link between a and b. Proposing a pair that
// already has a live proposal refreshes it and keeps its ID, so an agent
// asking twice does not queue two confirmations.
func (ps *ProposalStore) Propose(a, b *room.Room, reason string) *LinkProposal {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now().UTC()
	e := room.NewEdge(a.ID, b.ID)
	if id, ok := ps.byEdge[e]; ok {
		if p := ps.byID[id]; p != nil && !p.expired(now) {
			if reason != "" {
				p.Reason = reason
			}
			p.ExpiresAt = now.Add(ps.ttl)
			return p
		}
		ps.removeLocked(id)
	}

	nameA, nameB := a.Name, b.Name
	if e.A != a.ID {
		nameA, nameB = nameB, nameA
	}
	p := &LinkProposal{
		ID:        uuid.NewString(),
		Edge:      e,
		NameA:     nameA,
		NameB:     nameB,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(ps.ttl),
	}
	ps.byID[p.ID] = p
	ps.byEdge[e] = p.ID
	return p
}

// Take removes and returns a live proposal. An expired proposal is dropped
// and reported as ErrProposalExpired.
func (ps *ProposalStore) Take(id string) (*LinkProposal, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.byID[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	ps.removeLocked(id)
	if p.expired(time.Now()) {
		return nil, ErrProposalExpired
	}
	return p, nil
}

// Pending returns the number of live proposals.
func (ps *ProposalStore) Pending() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	now := time.Now()
	n := 0
	for _, p := range ps.byID {
		if !p.expired(now) {
			n++
		}
	}
	return n
}

// Sweep drops expired proposals and returns how many went.
func (ps *ProposalStore) Sweep() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	now := time.Now()
	n := 0
	for id, p := range ps.byID {
		if p.expired(now) {
			ps.removeLocked(id)
			n++
		}
	}
	return n
}

// SweepEvery runs Sweep on interval until ctx is done.
func (ps *ProposalStore) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ps.Sweep()
		}
	}
}

func (ps *ProposalStore) removeLocked(id string) {
	if p, ok := ps.byID[id]; ok {
		delete(ps.byEdge, p.Edge)
		delete(ps.byID, id)
	}
}
