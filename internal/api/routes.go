package api

import (
	"github.com/martinsuchenak/ztnetd/internal/model"
)

// routeConflicts reports managed route targets that collide with
// another network of the same owner. A collision is advisory; it is
// surfaced in responses and as a webhook event but never blocks the
// edit.
func (h *Handler) routeConflicts(network *model.Network) ([]model.RouteConflict, error) {
	filter := &model.NetworkFilter{}
	switch {
	case network.OrganizationID != "":
		filter.OrganizationID = network.OrganizationID
	case network.AuthorID != "":
		filter.AuthorID = network.AuthorID
	default:
		return nil, nil
	}

	siblings, err := h.storage.ListNetworks(filter)
	if err != nil {
		return nil, err
	}

	var conflicts []model.RouteConflict
	for _, route := range network.Routes {
		for i := range siblings {
			if siblings[i].ID == network.ID {
				continue
			}
			for _, other := range siblings[i].Routes {
				if other.Target == route.Target {
					conflicts = append(conflicts, model.RouteConflict{
						Target:         route.Target,
						NetworkID:      network.ID,
						OtherNetworkID: siblings[i].ID,
					})
				}
			}
		}
	}
	return conflicts, nil
}
