package model

import "time"

// User is a console account. The first registered user becomes admin
// and registration closes.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	// GlobalNaming propagates member renames across all of the user's
	// personally owned networks.
	GlobalNaming bool      `json:"rename_nodes_globally"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Organization groups users and owns networks as a unit.
type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	// GlobalNaming propagates member renames across all networks owned
	// by the organization.
	GlobalNaming bool      `json:"rename_nodes_globally"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrganizationRole is a user's role inside an organization.
type OrganizationRole string

const (
	RoleAdmin  OrganizationRole = "ADMIN"
	RoleUser   OrganizationRole = "USER"
	RoleReader OrganizationRole = "READ_ONLY"
)

// OrganizationMember links a user to an organization with a role.
type OrganizationMember struct {
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Role           OrganizationRole `json:"role"`
}
