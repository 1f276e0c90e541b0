// Package member implements the reconciliation and lifecycle protocol
// that keeps a network's member roster consistent across the external
// controller, the database, and admin actions. The controller only
// knows identity, authorization and connectivity; the database
// additionally knows stash/permanent-deletion state and local
// metadata. This package is the single place where the two views meet.
package member

import (
	"errors"
	"regexp"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

var (
	// ErrMemberNotJoined is returned when the controller rejects an
	// operation on a member it should know about.
	ErrMemberNotJoined = errors.New("member may not have properly joined the network")
	// ErrPermanentlyDeleted rejects re-adding an identifier that was
	// permanently deleted from the network.
	ErrPermanentlyDeleted = errors.New("member was permanently deleted from this network")
	// ErrInvalidMemberID rejects identifiers that are not a 10-digit
	// hex node address.
	ErrInvalidMemberID = errors.New("invalid member identifier")
	// ErrInvalidNetworkID rejects identifiers that are not a 16-digit
	// hex network ID.
	ErrInvalidNetworkID = errors.New("invalid network identifier")
)

// onlineWindow is how recently a member must have been seen to count
// as online.
const onlineWindow = 5 * time.Minute

var (
	nodeIDPattern    = regexp.MustCompile(`^[0-9a-f]{10}$`)
	networkIDPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// ValidNodeID reports whether s is a well-formed node address.
func ValidNodeID(s string) bool { return nodeIDPattern.MatchString(s) }

// ValidNetworkID reports whether s is a well-formed network ID.
func ValidNetworkID(s string) bool { return networkIDPattern.MatchString(s) }

// Store is the persistence surface the service needs. Satisfied by
// storage.Storage.
type Store interface {
	storage.NetworkStorage
	storage.MemberStorage
	storage.UserStorage
	storage.OrganizationStorage
}

// Publisher receives member events after state changes commit. Both
// webhook dispatch and the websocket hub sit behind this seam;
// implementations must never fail the calling operation.
type Publisher interface {
	Publish(networkID, event string, member *model.Member)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(string, string, *model.Member) {}

// MultiPublisher fans a single event out to several publishers.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (p MultiPublisher) Publish(networkID, event string, m *model.Member) {
	for _, pub := range p {
		pub.Publish(networkID, event, m)
	}
}

// Service merges controller and database member state and drives the
// member lifecycle.
type Service struct {
	store  Store
	ctrl   controller.Client
	events Publisher
	now    func() time.Time
}

// NewService builds a member service. A nil publisher disables event
// fan-out.
func NewService(store Store, ctrl controller.Client, events Publisher) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		store:  store,
		ctrl:   ctrl,
		events: events,
		now:    time.Now,
	}
}
