package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

type attachNotationRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// listNotations handles GET /api/networks/{nwid}/notations
func (h *Handler) listNotations(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	notations, err := h.storage.ListNotations(network.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notations)
}

// attachNotation handles POST /api/networks/{nwid}/members/{id}/notations.
// The notation is created on first use and shared by name within the
// network.
func (h *Handler) attachNotation(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}
	memberID := r.PathValue("id")
	if _, err := h.storage.GetMember(network.ID, memberID); err != nil {
		if errors.Is(err, storage.ErrMemberNotFound) {
			h.writeError(w, http.StatusNotFound, "member not found")
			return
		}
		h.internalError(w, err)
		return
	}

	var req attachNotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "notation name is required")
		return
	}

	notation, err := h.storage.GetNotationByName(network.ID, req.Name)
	if errors.Is(err, storage.ErrNotationNotFound) {
		notation = &model.Notation{
			ID:        generateID(),
			NetworkID: network.ID,
			Name:      req.Name,
			Color:     req.Color,
			CreatedAt: time.Now(),
		}
		err = h.storage.CreateNotation(notation)
	}
	if err != nil {
		h.internalError(w, err)
		return
	}

	if err := h.storage.AttachNotation(notation.ID, memberID, network.ID); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, notation)
}

// detachNotation handles
// DELETE /api/networks/{nwid}/members/{id}/notations/{notation}.
// Notations no member uses anymore are garbage collected.
func (h *Handler) detachNotation(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	notation, err := h.storage.GetNotationByName(network.ID, r.PathValue("notation"))
	if err != nil {
		if errors.Is(err, storage.ErrNotationNotFound) {
			h.writeError(w, http.StatusNotFound, "notation not found")
			return
		}
		h.internalError(w, err)
		return
	}

	if err := h.storage.DetachNotation(notation.ID, r.PathValue("id"), network.ID); err != nil {
		h.internalError(w, err)
		return
	}
	if _, err := h.storage.GCNotations(network.ID); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "notation detached"})
}
