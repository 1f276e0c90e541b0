package model

import "time"

// Network represents a managed ZeroTier network. Exactly one of
// AuthorID and OrganizationID is set; ownership decides who may see
// and edit the network.
type Network struct {
	ID             string    `json:"id"` // 16 hex chars, assigned by the controller
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Private        bool      `json:"private"`
	AuthorID       string    `json:"author_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Routes         []Route   `json:"routes"`
	DNS            DNS       `json:"dns"`
	IPPools        []IPPool  `json:"ip_assignment_pools"`
	V4AssignMode   bool      `json:"v4_assign_mode"` // zt-managed IPv4 assignment
	MulticastLimit int       `json:"multicast_limit"`
	MTU            int       `json:"mtu"`
	FlowRules      string    `json:"flow_rules,omitempty"` // raw rule source, pushed verbatim
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Route is a managed route on a network. Via is empty for directly
// attached routes.
type Route struct {
	Target string `json:"target"` // CIDR
	Via    string `json:"via,omitempty"`
}

// DNS holds the push-DNS configuration for a network.
type DNS struct {
	Domain  string   `json:"domain,omitempty"`
	Servers []string `json:"servers,omitempty"`
}

// IPPool is an auto-assignment address range.
type IPPool struct {
	Start string `json:"ip_range_start"`
	End   string `json:"ip_range_end"`
}

// NetworkFilter holds filter criteria for listing networks.
type NetworkFilter struct {
	AuthorID       string // networks owned by this user
	OrganizationID string // networks owned by this organization
	Name           string // partial name match
}

// RouteConflict reports a route target duplicated across two networks
// of the same owner. Surfaced as a notification, never an error.
type RouteConflict struct {
	Target         string `json:"target"`
	NetworkID      string `json:"network_id"`
	OtherNetworkID string `json:"other_network_id"`
}
