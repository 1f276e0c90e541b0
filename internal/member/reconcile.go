package member

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// Roster is the merged view of a network's members.
type Roster struct {
	// Members are the active members, controller observations folded
	// into the database records.
	Members []model.Member `json:"members"`
	// Zombies are members the controller still lists but the database
	// has stashed. They are never part of Members, and they require a
	// controller listing to be confirmed: a stale roster carries none
	// even when stashed rows exist.
	Zombies []model.Member `json:"zombies,omitempty"`
	// Stale is set when the controller was unreachable and Members
	// reflects the database view only.
	Stale bool `json:"stale,omitempty"`
}

// Reconcile merges the controller's member list for a network with the
// database records and returns the combined roster. Controller
// observations (last seen, online, physical address, assigned IPs) are
// written back to matching database rows, and members the controller
// knows but the database does not are inserted as new rows, unless the
// identifier was permanently deleted from the network, in which case it
// is ignored entirely.
//
// A controller failure does not fail the call: the roster is built from
// the database alone and marked Stale.
func (s *Service) Reconcile(ctx context.Context, networkID string) (*Roster, error) {
	if !ValidNetworkID(networkID) {
		return nil, ErrInvalidNetworkID
	}
	if _, err := s.store.GetNetwork(networkID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListMembers(networkID, &model.MemberFilter{
		IncludeStashed:  true,
		IncludeTerminal: true,
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Member, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	records, err := s.ctrl.ListNetworkMembers(ctx, networkID)
	if err != nil {
		log.Warn("controller unreachable, serving database view", "network", networkID, "error", err)
		roster := &Roster{Stale: true}
		for i := range rows {
			switch rows[i].State() {
			case model.StateActive:
				roster.Members = append(roster.Members, rows[i])
			}
		}
		sortRoster(roster)
		return roster, nil
	}

	seen := make(map[string]bool, len(records))
	roster := &Roster{}
	now := s.now()

	for i := range records {
		rec := &records[i]
		seen[rec.ID] = true

		row, known := byID[rec.ID]
		if !known {
			m, err := s.adoptMember(networkID, rec, now)
			if err != nil {
				return nil, err
			}
			if m != nil {
				roster.Members = append(roster.Members, *m)
			}
			continue
		}

		switch row.State() {
		case model.StatePermanentlyDeleted:
			// Terminal rows suppress re-adoption and never surface.
		case model.StateStashed:
			merged := *row
			foldObservations(&merged, rec, now)
			roster.Zombies = append(roster.Zombies, merged)
		default:
			wasOnline := row.Online
			foldObservations(row, rec, now)
			if err := s.persistObservations(row); err != nil {
				return nil, err
			}
			if row.Online != wasOnline {
				event := model.EventMemberOffline
				if row.Online {
					event = model.EventMemberOnline
				}
				s.events.Publish(networkID, event, row)
			}
			roster.Members = append(roster.Members, *row)
		}
	}

	// Database rows the controller no longer lists stay visible but
	// are marked offline.
	for i := range rows {
		row := &rows[i]
		if seen[row.ID] || row.State() != model.StateActive {
			continue
		}
		if row.Online {
			row.Online = false
			if err := s.persistObservations(row); err != nil {
				return nil, err
			}
			s.events.Publish(networkID, model.EventMemberOffline, row)
		}
		roster.Members = append(roster.Members, *row)
	}

	sortRoster(roster)
	return roster, nil
}

// adoptMember inserts a controller-only member into the database. A
// permanently deleted row for the same identifier suppresses adoption.
func (s *Service) adoptMember(networkID string, rec *controller.MemberRecord, now time.Time) (*model.Member, error) {
	m := &model.Member{
		ID:        rec.ID,
		NetworkID: networkID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	foldObservations(m, rec, now)
	m.Authorized = rec.Authorized
	m.ActiveBridge = rec.ActiveBridge
	m.NoAutoAssignIPs = rec.NoAutoAssignIPs
	m.Tags = rec.Tags
	m.Capabilities = rec.Capabilities

	if err := s.store.CreateMember(m); err != nil {
		// A concurrent reconcile may have inserted the row already.
		if existing, getErr := s.store.GetMember(networkID, rec.ID); getErr == nil {
			return existing, nil
		} else if !errors.Is(getErr, storage.ErrMemberNotFound) {
			return nil, getErr
		}
		return nil, fmt.Errorf("adopt member %s: %w", rec.ID, err)
	}
	s.events.Publish(networkID, model.EventMemberJoined, m)
	if m.Online {
		s.events.Publish(networkID, model.EventMemberOnline, m)
	}
	return m, nil
}

// foldObservations copies the controller-authoritative fields onto a
// database row. Admin-managed fields (name, authorization, bridging,
// tags) are left untouched.
func foldObservations(m *model.Member, rec *controller.MemberRecord, now time.Time) {
	m.IPAssignments = rec.IPAssignments
	m.PhysicalAddress = rec.PhysicalAddress
	if rec.LastSeen > 0 {
		m.LastSeen = time.UnixMilli(rec.LastSeen)
	}
	m.Online = !m.LastSeen.IsZero() && now.Sub(m.LastSeen) < onlineWindow
}

func (s *Service) persistObservations(m *model.Member) error {
	m.UpdatedAt = s.now()
	return s.store.UpdateMember(m)
}

func sortRoster(r *Roster) {
	sort.Slice(r.Members, func(i, j int) bool { return r.Members[i].ID < r.Members[j].ID })
	sort.Slice(r.Zombies, func(i, j int) bool { return r.Zombies[i].ID < r.Zombies[j].ID })
}
