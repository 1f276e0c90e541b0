package model

import "time"

// Member represents one device on one network, identified by the
// (ID, NetworkID) tuple. The database is authoritative for the
// admin-owned fields (Name, Description, Authorized, the deletion
// flags); the controller is authoritative for the observation fields
// (PhysicalAddress, LastSeen, Online).
type Member struct {
	ID              string      `json:"id"` // 10 hex chars, the node address
	NetworkID       string      `json:"network_id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	Authorized      bool        `json:"authorized"`
	ActiveBridge    bool        `json:"active_bridge"`
	NoAutoAssignIPs bool        `json:"no_auto_assign_ips"`
	IPAssignments   []string    `json:"ip_assignments"`
	Tags            [][2]uint32 `json:"tags,omitempty"`
	Capabilities    []uint32    `json:"capabilities,omitempty"`

	// Observation fields, refreshed from the controller.
	PhysicalAddress string    `json:"physical_address,omitempty"`
	LastSeen        time.Time `json:"last_seen,omitempty"`
	Online          bool      `json:"online"`

	// Lifecycle flags. Deleted marks a stashed member: hidden from the
	// active roster but retained so the device cannot reappear as new.
	// PermanentlyDeleted is terminal; the identifier is never re-admitted
	// automatically.
	Deleted            bool `json:"deleted"`
	PermanentlyDeleted bool `json:"permanently_deleted"`

	Notations []Notation `json:"notations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State reports the lifecycle state of the member row.
func (m *Member) State() MemberState {
	switch {
	case m.PermanentlyDeleted:
		return StatePermanentlyDeleted
	case m.Deleted:
		return StateStashed
	default:
		return StateActive
	}
}

// MemberState is the lifecycle state of a member row.
type MemberState string

const (
	StateActive             MemberState = "ACTIVE"
	StateStashed            MemberState = "STASHED"
	StatePermanentlyDeleted MemberState = "PERMANENTLY_DELETED"
)

// MemberFilter selects member rows by deletion state.
type MemberFilter struct {
	IncludeStashed  bool
	IncludeTerminal bool
	OnlyStashed     bool
	AuthorizedOnly  bool
}

// MemberUpdate carries the admin-editable member fields. Nil pointers
// leave the field untouched.
type MemberUpdate struct {
	Name            *string      `json:"name,omitempty"`
	Description     *string      `json:"description,omitempty"`
	Authorized      *bool        `json:"authorized,omitempty"`
	ActiveBridge    *bool        `json:"active_bridge,omitempty"`
	NoAutoAssignIPs *bool        `json:"no_auto_assign_ips,omitempty"`
	IPAssignments   *[]string    `json:"ip_assignments,omitempty"`
	Tags            *[][2]uint32 `json:"tags,omitempty"`
	Capabilities    *[]uint32    `json:"capabilities,omitempty"`
}
