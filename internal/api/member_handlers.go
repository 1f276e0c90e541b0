package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/martinsuchenak/ztnetd/internal/member"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

type addMemberRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// listMembers handles GET /api/networks/{nwid}/members. The response
// is the reconciled roster; pass ?stashed=true to list the stash
// instead.
func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("stashed") == "true" {
		stashed, err := h.storage.ListMembers(network.ID, &model.MemberFilter{OnlyStashed: true})
		if err != nil {
			h.internalError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"members": stashed})
		return
	}

	roster, err := h.members.Reconcile(r.Context(), network.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, roster)
}

// addMember handles POST /api/networks/{nwid}/members
func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.members.Add(r.Context(), network.ID, req.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, member.ErrInvalidMemberID):
			h.writeError(w, http.StatusBadRequest, "member ID must be 10 hex characters")
		case errors.Is(err, member.ErrPermanentlyDeleted):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, m)
}

// getMember handles GET /api/networks/{nwid}/members/{id}
func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	m, err := h.storage.GetMember(network.ID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMemberNotFound) {
			h.writeError(w, http.StatusNotFound, "member not found")
			return
		}
		h.internalError(w, err)
		return
	}
	if m.State() == model.StatePermanentlyDeleted {
		h.writeError(w, http.StatusNotFound, "member not found")
		return
	}

	notations, err := h.storage.ListMemberNotations(network.ID, m.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"member": m, "notations": notations})
}

// updateMember handles PUT /api/networks/{nwid}/members/{id}
func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	var update model.MemberUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.members.Update(r.Context(), network.ID, r.PathValue("id"), &update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrMemberNotFound):
			h.writeError(w, http.StatusNotFound, "member not found")
		case errors.Is(err, member.ErrMemberNotJoined):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// stashMember handles DELETE /api/networks/{nwid}/members/{id}. The
// member is soft-deleted and can be restored by re-adding it.
func (h *Handler) stashMember(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	if err := h.members.Stash(r.Context(), network.ID, r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrMemberNotFound) {
			h.writeError(w, http.StatusNotFound, "member not found")
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "member stashed"})
}

// deleteMember handles DELETE /api/networks/{nwid}/members/{id}/permanent
func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	if err := h.members.Delete(r.Context(), network.ID, r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, storage.ErrMemberNotFound):
			h.writeError(w, http.StatusNotFound, "member not found")
		case errors.Is(err, member.ErrMemberNotJoined):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.internalError(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "member deleted"})
}

// bulkDeleteStashed handles DELETE /api/networks/{nwid}/stashed
func (h *Handler) bulkDeleteStashed(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	n, err := h.members.BulkDeleteStashed(r.Context(), network.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
