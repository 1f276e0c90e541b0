package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

type createNetworkRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	OrganizationID string `json:"organization_id"`
}

type networkResponse struct {
	Network   *model.Network        `json:"network"`
	Conflicts []model.RouteConflict `json:"route_conflicts,omitempty"`
}

// listNetworks handles GET /api/networks
func (h *Handler) listNetworks(w http.ResponseWriter, r *http.Request) {
	filter := &model.NetworkFilter{Name: r.URL.Query().Get("name")}
	if claims := claimsFrom(r); claims != nil && !claims.IsAdmin {
		filter.AuthorID = claims.UserID
	}
	if org := r.URL.Query().Get("organization_id"); org != "" {
		filter.AuthorID = ""
		filter.OrganizationID = org
	}

	networks, err := h.storage.ListNetworks(filter)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, networks)
}

// createNetwork handles POST /api/networks. The controller assigns the
// network ID; the row is persisted afterwards under the caller's
// ownership.
func (h *Handler) createNetwork(w http.ResponseWriter, r *http.Request) {
	var req createNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := claimsFrom(r)
	if claims == nil && req.OrganizationID == "" {
		h.writeError(w, http.StatusBadRequest, "organization_id is required for service token requests")
		return
	}

	record, err := h.ctrl.CreateNetwork(r.Context(), &controller.NetworkRecord{
		Name:    req.Name,
		Private: true,
	})
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "controller rejected network creation: "+err.Error())
		return
	}

	now := time.Now()
	network := &model.Network{
		ID:          record.ID,
		Name:        req.Name,
		Description: req.Description,
		Private:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.OrganizationID != "" {
		network.OrganizationID = req.OrganizationID
	} else {
		network.AuthorID = claims.UserID
	}

	if err := h.storage.CreateNetwork(network); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, networkResponse{Network: network})
}

// getNetwork handles GET /api/networks/{nwid}
func (h *Handler) getNetwork(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	conflicts, err := h.routeConflicts(network)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, networkResponse{Network: network, Conflicts: conflicts})
}

// updateNetwork handles PUT /api/networks/{nwid}. Changes are pushed
// to the controller first; a rejected push leaves the stored network
// untouched.
func (h *Handler) updateNetwork(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	var update model.Network
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Identity and ownership are immutable.
	update.ID = network.ID
	update.AuthorID = network.AuthorID
	update.OrganizationID = network.OrganizationID
	update.CreatedAt = network.CreatedAt
	update.UpdatedAt = time.Now()

	if _, err := h.ctrl.UpdateNetwork(r.Context(), network.ID, toControllerNetwork(&update)); err != nil {
		h.writeError(w, http.StatusBadGateway, "controller rejected network update: "+err.Error())
		return
	}

	if err := h.storage.UpdateNetwork(&update); err != nil {
		h.internalError(w, err)
		return
	}

	conflicts, err := h.routeConflicts(&update)
	if err != nil {
		h.internalError(w, err)
		return
	}
	for _, c := range conflicts {
		h.notify.Dispatch(c.NetworkID, model.EventRouteConflict, c)
	}
	h.writeJSON(w, http.StatusOK, networkResponse{Network: &update, Conflicts: conflicts})
}

// deleteNetwork handles DELETE /api/networks/{nwid}
func (h *Handler) deleteNetwork(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	if err := h.ctrl.DeleteNetwork(r.Context(), network.ID); err != nil && !errors.Is(err, controller.ErrNotFound) {
		h.writeError(w, http.StatusBadGateway, "controller rejected network deletion: "+err.Error())
		return
	}
	if err := h.storage.DeleteNetwork(network.ID); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "network deleted"})
}

// loadNetwork resolves {nwid} and writes the error response itself
// when the network cannot be served.
func (h *Handler) loadNetwork(w http.ResponseWriter, r *http.Request) (*model.Network, bool) {
	nwid := r.PathValue("nwid")
	if nwid == "" {
		h.writeError(w, http.StatusBadRequest, "network ID required")
		return nil, false
	}

	network, err := h.storage.GetNetwork(nwid)
	if err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return nil, false
		}
		h.internalError(w, err)
		return nil, false
	}

	if claims := claimsFrom(r); claims != nil && !claims.IsAdmin && network.AuthorID != claims.UserID {
		if network.OrganizationID == "" {
			h.writeError(w, http.StatusNotFound, "network not found")
			return nil, false
		}
		if _, err := h.storage.GetOrganizationRole(network.OrganizationID, claims.UserID); err != nil {
			h.writeError(w, http.StatusNotFound, "network not found")
			return nil, false
		}
	}
	return network, true
}

func toControllerNetwork(n *model.Network) *controller.NetworkRecord {
	record := &controller.NetworkRecord{
		ID:             n.ID,
		Name:           n.Name,
		Private:        n.Private,
		V4AssignMode:   controller.AssignMode{ZT: n.V4AssignMode},
		DNS:            controller.DNSEntry{Domain: n.DNS.Domain, Servers: n.DNS.Servers},
		MulticastLimit: n.MulticastLimit,
		MTU:            n.MTU,
		Rules:          n.FlowRules,
	}
	for _, route := range n.Routes {
		record.Routes = append(record.Routes, controller.RouteEntry{Target: route.Target, Via: route.Via})
	}
	for _, pool := range n.IPPools {
		record.IPPools = append(record.IPPools, controller.PoolEntry{Start: pool.Start, End: pool.End})
	}
	return record
}
