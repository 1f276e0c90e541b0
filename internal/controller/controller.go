// Package controller talks to the ZeroTier controller that enforces
// network membership: either the node service running next to ztnetd
// or the hosted Central API. The rest of the system only sees the
// Client interface and the flat record types.
package controller

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the controller does not know the
	// network or member. Lifecycle code treats it as tolerable on the
	// stash and delete-from-stash paths.
	ErrNotFound = errors.New("controller: not found")
	// ErrUnauthorized is returned for a rejected controller credential.
	ErrUnauthorized = errors.New("controller: unauthorized")
)

// MemberRecord is the flat member view the controller maintains. The
// controller knows identity, authorization and connectivity; it has no
// concept of stash or permanent deletion.
type MemberRecord struct {
	ID              string      `json:"id"`
	NetworkID       string      `json:"nwid"`
	Authorized      bool        `json:"authorized"`
	ActiveBridge    bool        `json:"activeBridge"`
	NoAutoAssignIPs bool        `json:"noAutoAssignIps"`
	IPAssignments   []string    `json:"ipAssignments"`
	Tags            [][2]uint32 `json:"tags"`
	Capabilities    []uint32    `json:"capabilities"`
	PhysicalAddress string      `json:"physicalAddress,omitempty"`
	LastSeen        int64       `json:"lastSeen,omitempty"` // unix millis, 0 if unknown
	VersionRev      int64       `json:"vRev,omitempty"`
}

// MemberUpdateRecord carries the fields an update pushes to the
// controller. Nil pointers are omitted from the request body so the
// controller keeps its current value.
type MemberUpdateRecord struct {
	Authorized      *bool        `json:"authorized,omitempty"`
	ActiveBridge    *bool        `json:"activeBridge,omitempty"`
	NoAutoAssignIPs *bool        `json:"noAutoAssignIps,omitempty"`
	IPAssignments   *[]string    `json:"ipAssignments,omitempty"`
	Tags            *[][2]uint32 `json:"tags,omitempty"`
	Capabilities    *[]uint32    `json:"capabilities,omitempty"`
	Name            *string      `json:"name,omitempty"` // Central mirrors names; the node service ignores it
}

// NetworkRecord is the controller-side network configuration.
type NetworkRecord struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Private        bool         `json:"private"`
	Routes         []RouteEntry `json:"routes"`
	IPPools        []PoolEntry  `json:"ipAssignmentPools"`
	V4AssignMode   AssignMode   `json:"v4AssignMode"`
	DNS            DNSEntry     `json:"dns"`
	MulticastLimit int          `json:"multicastLimit"`
	MTU            int          `json:"mtu"`
	Rules          string       `json:"rulesSource,omitempty"`
}

// RouteEntry mirrors the controller's route representation.
type RouteEntry struct {
	Target string `json:"target"`
	Via    string `json:"via,omitempty"`
}

// PoolEntry mirrors the controller's assignment pool representation.
type PoolEntry struct {
	Start string `json:"ipRangeStart"`
	End   string `json:"ipRangeEnd"`
}

// AssignMode mirrors the controller's v4AssignMode object.
type AssignMode struct {
	ZT bool `json:"zt"`
}

// DNSEntry mirrors the controller's push-DNS object.
type DNSEntry struct {
	Domain  string   `json:"domain,omitempty"`
	Servers []string `json:"servers,omitempty"`
}

// NodeStatus identifies the controller node.
type NodeStatus struct {
	Address string `json:"address"`
	Online  bool   `json:"online"`
	Version string `json:"version"`
}

// Client is the controller contract the member service depends on.
type Client interface {
	Status(ctx context.Context) (*NodeStatus, error)

	GetNetwork(ctx context.Context, networkID string) (*NetworkRecord, error)
	CreateNetwork(ctx context.Context, record *NetworkRecord) (*NetworkRecord, error)
	UpdateNetwork(ctx context.Context, networkID string, record *NetworkRecord) (*NetworkRecord, error)
	DeleteNetwork(ctx context.Context, networkID string) error

	ListNetworkMembers(ctx context.Context, networkID string) ([]MemberRecord, error)
	GetMember(ctx context.Context, networkID, memberID string) (*MemberRecord, error)
	UpdateMember(ctx context.Context, networkID, memberID string, update *MemberUpdateRecord) (*MemberRecord, error)
	DeleteMember(ctx context.Context, networkID, memberID string) error
}
