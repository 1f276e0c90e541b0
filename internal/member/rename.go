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

// propagateRename pushes a member's new name to every other network in
// the same ownership scope where the global naming preference is
// enabled. The fan-out is best effort and sequential; a network that
// fails is logged and skipped, there is no rollback of networks
// already renamed.
func (s *Service) propagateRename(ctx context.Context, networkID, memberID, name string) error {
	network, err := s.store.GetNetwork(networkID)
	if err != nil {
		return err
	}

	filter, enabled, err := s.renameScope(network)
	if err != nil || !enabled {
		return err
	}

	networks, err := s.store.ListNetworks(filter)
	if err != nil {
		return err
	}

	var failed int
	for i := range networks {
		target := networks[i].ID
		if target == networkID {
			continue
		}
		m, err := s.store.GetMember(target, memberID)
		if errors.Is(err, storage.ErrMemberNotFound) {
			continue
		}
		if err != nil {
			log.Warn("rename fan-out: load member", "network", target, "member", memberID, "error", err)
			failed++
			continue
		}
		// Only active rows follow the rename; stashed and terminal rows
		// keep their stored name.
		if m.State() != model.StateActive || m.Name == name {
			continue
		}

		if _, err := s.ctrl.UpdateMember(ctx, target, memberID, &controller.MemberUpdateRecord{
			Name: &name,
		}); err != nil && !errors.Is(err, controller.ErrNotFound) {
			log.Warn("rename fan-out: controller update", "network", target, "member", memberID, "error", err)
		}

		m.Name = name
		m.UpdatedAt = s.now()
		if err := s.store.UpdateMember(m); err != nil {
			log.Warn("rename fan-out: persist", "network", target, "member", memberID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("rename propagation failed for %d network(s)", failed)
	}
	return nil
}

// renameScope resolves the network's owner and reports whether that
// owner has global naming enabled, along with the filter selecting the
// owner's networks.
func (s *Service) renameScope(network *model.Network) (*model.NetworkFilter, bool, error) {
	switch {
	case network.OrganizationID != "":
		org, err := s.store.GetOrganization(network.OrganizationID)
		if err != nil {
			return nil, false, err
		}
		return &model.NetworkFilter{OrganizationID: network.OrganizationID}, org.GlobalNaming, nil
	case network.AuthorID != "":
		user, err := s.store.GetUser(network.AuthorID)
		if err != nil {
			return nil, false, err
		}
		return &model.NetworkFilter{AuthorID: network.AuthorID}, user.GlobalNaming, nil
	default:
		return nil, false, nil
	}
}
