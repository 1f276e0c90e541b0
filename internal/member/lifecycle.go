package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// Add registers a member by node address before it has contacted the
// controller, or restores a stashed member. Re-adding a permanently
// deleted identifier is rejected.
func (s *Service) Add(ctx context.Context, networkID, memberID, name string) (*model.Member, error) {
	if !ValidNetworkID(networkID) {
		return nil, ErrInvalidNetworkID
	}
	if !ValidNodeID(memberID) {
		return nil, ErrInvalidMemberID
	}
	if _, err := s.store.GetNetwork(networkID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetMember(networkID, memberID)
	if err != nil && !errors.Is(err, storage.ErrMemberNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.State() {
		case model.StatePermanentlyDeleted:
			return nil, ErrPermanentlyDeleted
		case model.StateStashed:
			existing.Deleted = false
			if name != "" {
				existing.Name = name
			}
			existing.UpdatedAt = s.now()
			if err := s.store.UpdateMember(existing); err != nil {
				return nil, err
			}
			s.events.Publish(networkID, model.EventMemberJoined, existing)
			return existing, nil
		default:
			return existing, nil
		}
	}

	now := s.now()
	m := &model.Member{
		ID:        memberID,
		NetworkID: networkID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateMember(m); err != nil {
		return nil, err
	}
	s.events.Publish(networkID, model.EventMemberJoined, m)
	return m, nil
}

// Update applies admin changes to a member, pushing the
// controller-relevant fields to the controller before persisting. A
// controller rejection surfaces as ErrMemberNotJoined and nothing is
// persisted.
func (s *Service) Update(ctx context.Context, networkID, memberID string, upd *model.MemberUpdate) (*model.Member, error) {
	m, err := s.store.GetMember(networkID, memberID)
	if err != nil {
		return nil, err
	}
	if m.State() == model.StatePermanentlyDeleted {
		return nil, storage.ErrMemberNotFound
	}

	rec := controllerUpdate(upd)
	if rec != nil {
		if _, err := s.ctrl.UpdateMember(ctx, networkID, memberID, rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMemberNotJoined, err)
		}
	}

	wasAuthorized := m.Authorized
	oldName := m.Name
	applyUpdate(m, upd)
	m.UpdatedAt = s.now()
	if err := s.store.UpdateMember(m); err != nil {
		return nil, err
	}

	if !wasAuthorized && m.Authorized {
		s.events.Publish(networkID, model.EventMemberAuthorized, m)
	}
	if upd.Name != nil && *upd.Name != oldName {
		if err := s.propagateRename(ctx, networkID, memberID, *upd.Name); err != nil {
			log.Warn("rename propagation incomplete", "network", networkID, "member", memberID, "error", err)
		}
	}
	return m, nil
}

// controllerUpdate extracts the fields the controller cares about, or
// nil when the update touches only local metadata.
func controllerUpdate(upd *model.MemberUpdate) *controller.MemberUpdateRecord {
	rec := &controller.MemberUpdateRecord{
		Authorized:      upd.Authorized,
		ActiveBridge:    upd.ActiveBridge,
		NoAutoAssignIPs: upd.NoAutoAssignIPs,
		IPAssignments:   upd.IPAssignments,
		Tags:            upd.Tags,
		Capabilities:    upd.Capabilities,
		Name:            upd.Name,
	}
	if rec.Authorized == nil && rec.ActiveBridge == nil && rec.NoAutoAssignIPs == nil &&
		rec.IPAssignments == nil && rec.Tags == nil && rec.Capabilities == nil && rec.Name == nil {
		return nil
	}
	return rec
}

func applyUpdate(m *model.Member, upd *model.MemberUpdate) {
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.Description != nil {
		m.Description = *upd.Description
	}
	if upd.Authorized != nil {
		m.Authorized = *upd.Authorized
	}
	if upd.ActiveBridge != nil {
		m.ActiveBridge = *upd.ActiveBridge
	}
	if upd.NoAutoAssignIPs != nil {
		m.NoAutoAssignIPs = *upd.NoAutoAssignIPs
	}
	if upd.IPAssignments != nil {
		m.IPAssignments = *upd.IPAssignments
	}
	if upd.Tags != nil {
		m.Tags = *upd.Tags
	}
	if upd.Capabilities != nil {
		m.Capabilities = *upd.Capabilities
	}
}

// Stash soft-deletes a member. The controller is told to de-authorize
// first; a controller failure is logged and tolerated so the local
// state always wins.
func (s *Service) Stash(ctx context.Context, networkID, memberID string) error {
	m, err := s.store.GetMember(networkID, memberID)
	if err != nil {
		return err
	}
	switch m.State() {
	case model.StatePermanentlyDeleted:
		return storage.ErrMemberNotFound
	case model.StateStashed:
		return nil
	}

	// Revoke authorization and clear the assignments so the node loses
	// its addresses and permissions, not just its admission.
	deauth := false
	noIPs := []string{}
	noTags := [][2]uint32{}
	noCaps := []uint32{}
	if _, err := s.ctrl.UpdateMember(ctx, networkID, memberID, &controller.MemberUpdateRecord{
		Authorized:    &deauth,
		IPAssignments: &noIPs,
		Tags:          &noTags,
		Capabilities:  &noCaps,
	}); err != nil && !errors.Is(err, controller.ErrNotFound) {
		log.Warn("could not de-authorize member on controller", "network", networkID, "member", memberID, "error", err)
	}

	m.Deleted = true
	m.Authorized = false
	m.Online = false
	m.IPAssignments = nil
	m.Tags = nil
	m.Capabilities = nil
	m.UpdatedAt = s.now()
	if err := s.store.UpdateMember(m); err != nil {
		return err
	}
	s.events.Publish(networkID, model.EventMemberDeleted, m)
	return nil
}

// Delete removes a member. An active member is deleted from the
// controller and the database outright; a stashed member is marked
// permanently deleted so reconciliation never re-adopts the
// identifier.
func (s *Service) Delete(ctx context.Context, networkID, memberID string) error {
	m, err := s.store.GetMember(networkID, memberID)
	if err != nil {
		return err
	}

	switch m.State() {
	case model.StatePermanentlyDeleted:
		return nil
	case model.StateStashed:
		if err := s.ctrl.DeleteMember(ctx, networkID, memberID); err != nil && !errors.Is(err, controller.ErrNotFound) {
			log.Warn("could not delete stashed member on controller", "network", networkID, "member", memberID, "error", err)
		}
		m.PermanentlyDeleted = true
		m.UpdatedAt = s.now()
		if err := s.store.UpdateMember(m); err != nil {
			return err
		}
	default:
		if err := s.ctrl.DeleteMember(ctx, networkID, memberID); err != nil && !errors.Is(err, controller.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrMemberNotJoined, err)
		}
		if err := s.store.DeleteMember(networkID, memberID); err != nil {
			return err
		}
	}
	s.events.Publish(networkID, model.EventMemberDeleted, m)
	return nil
}

// BulkDeleteStashed permanently deletes every stashed member of a
// network and returns how many were affected. Safe to repeat; an empty
// stash is not an error.
func (s *Service) BulkDeleteStashed(ctx context.Context, networkID string) (int, error) {
	if _, err := s.store.GetNetwork(networkID); err != nil {
		return 0, err
	}
	stashed, err := s.store.ListMembers(networkID, &model.MemberFilter{OnlyStashed: true})
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range stashed {
		m := &stashed[i]
		if err := s.ctrl.DeleteMember(ctx, networkID, m.ID); err != nil && !errors.Is(err, controller.ErrNotFound) {
			log.Warn("could not delete stashed member on controller", "network", networkID, "member", m.ID, "error", err)
		}
		m.PermanentlyDeleted = true
		m.UpdatedAt = s.now()
		if err := s.store.UpdateMember(m); err != nil {
			return count, err
		}
		s.events.Publish(networkID, model.EventMemberDeleted, m)
		count++
	}
	return count, nil
}
