package storage

import (
	"errors"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

var (
	ErrNetworkNotFound      = errors.New("network not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrNotationNotFound     = errors.New("notation not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrWebhookNotFound      = errors.New("webhook not found")
	ErrInvalidID            = errors.New("invalid identifier")
	ErrUsernameTaken        = errors.New("username already taken")
)

// NetworkStorage persists network records.
type NetworkStorage interface {
	ListNetworks(filter *model.NetworkFilter) ([]model.Network, error)
	GetNetwork(id string) (*model.Network, error)
	CreateNetwork(network *model.Network) error
	UpdateNetwork(network *model.Network) error
	DeleteNetwork(id string) error
}

// MemberStorage persists member rows keyed by (member ID, network ID).
// Listing honors the deletion-state flags so the reconciler can load
// the complete set, including stashed and permanently deleted rows.
type MemberStorage interface {
	ListMembers(networkID string, filter *model.MemberFilter) ([]model.Member, error)
	GetMember(networkID, memberID string) (*model.Member, error)
	CreateMember(member *model.Member) error
	UpdateMember(member *model.Member) error
	DeleteMember(networkID, memberID string) error
}

// NotationStorage persists member labels and their join rows. Unreferenced
// notations are garbage-collected via GCNotations.
type NotationStorage interface {
	ListNotations(networkID string) ([]model.Notation, error)
	GetNotationByName(networkID, name string) (*model.Notation, error)
	CreateNotation(notation *model.Notation) error
	AttachNotation(notationID, memberID, networkID string) error
	DetachNotation(notationID, memberID, networkID string) error
	ListMemberNotations(networkID, memberID string) ([]model.Notation, error)
	GCNotations(networkID string) (int, error)
}

// UserStorage persists console accounts.
type UserStorage interface {
	CountUsers() (int, error)
	GetUser(id string) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	CreateUser(user *model.User) error
	UpdateUser(user *model.User) error
}

// OrganizationStorage persists organizations and their user roles.
type OrganizationStorage interface {
	GetOrganization(id string) (*model.Organization, error)
	CreateOrganization(org *model.Organization) error
	UpdateOrganization(org *model.Organization) error
	AddOrganizationMember(member *model.OrganizationMember) error
	GetOrganizationRole(orgID, userID string) (model.OrganizationRole, error)
	ListUserOrganizations(userID string) ([]model.Organization, error)
}

// WebhookStorage persists webhook registrations.
type WebhookStorage interface {
	ListWebhooks(networkID string) ([]model.Webhook, error)
	GetWebhook(id string) (*model.Webhook, error)
	CreateWebhook(hook *model.Webhook) error
	UpdateWebhook(hook *model.Webhook) error
	DeleteWebhook(id string) error
}

// Storage is the full persistence contract the server wires up.
type Storage interface {
	NetworkStorage
	MemberStorage
	NotationStorage
	UserStorage
	OrganizationStorage
	WebhookStorage
	Close() error
}
