package model

import "time"

// Notation is a named, colored label attached to members for
// organizational purposes. Notations belong to a network and are
// garbage-collected once no member references them.
type Notation struct {
	ID        string    `json:"id"`
	NetworkID string    `json:"network_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"` // hex color, e.g. "#ff8800"
	CreatedAt time.Time `json:"created_at"`
}

// MemberNotation is the join row between members and notations.
type MemberNotation struct {
	NotationID string `json:"notation_id"`
	MemberID   string `json:"member_id"`
	NetworkID  string `json:"network_id"`
}
