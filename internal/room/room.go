// Package room owns Rooms, the named artifacts that come out of a finished
// session, and the undirected adjacency relation between them.
package room

import (
	"time"

	"github.com/google/uuid"
)

// Room is a new form that emerged from a Kiln session.
type Room struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Spirit       string    `yaml:"spirit" json:"spirit"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
	AnchorName   string    `yaml:"anchor_name" json:"anchor_name"`
	StartingForm string    `yaml:"starting_form" json:"starting_form"`

	// OriginSessionID is a weak back-reference. The room outlives the
	// session; when the session is deleted this becomes nil.
	OriginSessionID *string `yaml:"origin_session_id,omitempty" json:"origin_session_id,omitempty"`
}

// New builds a room with a fresh ID and the current time.
func New(name, spirit, anchorName, startingForm string, originSessionID string) *Room {
	r := &Room{
		ID:           uuid.NewString(),
		Name:         name,
		Spirit:       spirit,
		CreatedAt:    time.Now().UTC(),
		AnchorName:   anchorName,
		StartingForm: startingForm,
	}
	if originSessionID != "" {
		id := originSessionID
		r.OriginSessionID = &id
	}
	return r
}

// Origin returns the origin session ID, or "" when unset.
func (r *Room) Origin() string {
	if r.OriginSessionID == nil {
		return ""
	}
	return *r.OriginSessionID
}
