// Package api exposes the management console's HTTP surface: account
// handling, network and member CRUD, webhook registration and the
// websocket event stream.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/martinsuchenak/ztnetd/internal/auth"
	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/member"
	"github.com/martinsuchenak/ztnetd/internal/notify"
	"github.com/martinsuchenak/ztnetd/internal/storage"
	"github.com/martinsuchenak/ztnetd/internal/ws"
)

// Handler handles HTTP requests
type Handler struct {
	storage storage.Storage
	members *member.Service
	ctrl    controller.Client
	tokens  *auth.Tokens
	hub     *ws.Hub
	notify  *notify.Dispatcher
}

// NewHandler creates a new API handler
func NewHandler(s storage.Storage, members *member.Service, ctrl controller.Client, tokens *auth.Tokens, hub *ws.Hub, dispatcher *notify.Dispatcher) *Handler {
	return &Handler{
		storage: s,
		members: members,
		ctrl:    ctrl,
		tokens:  tokens,
		hub:     hub,
		notify:  dispatcher,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Accounts and sessions
	mux.HandleFunc("POST /api/auth/register", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("GET /api/auth/me", h.me)

	// Controller status
	mux.HandleFunc("GET /api/status", h.status)

	// Network CRUD
	mux.HandleFunc("GET /api/networks", h.listNetworks)
	mux.HandleFunc("POST /api/networks", h.createNetwork)
	mux.HandleFunc("GET /api/networks/{nwid}", h.getNetwork)
	mux.HandleFunc("PUT /api/networks/{nwid}", h.updateNetwork)
	mux.HandleFunc("DELETE /api/networks/{nwid}", h.deleteNetwork)

	// Members
	mux.HandleFunc("GET /api/networks/{nwid}/members", h.listMembers)
	mux.HandleFunc("POST /api/networks/{nwid}/members", h.addMember)
	mux.HandleFunc("GET /api/networks/{nwid}/members/{id}", h.getMember)
	mux.HandleFunc("PUT /api/networks/{nwid}/members/{id}", h.updateMember)
	mux.HandleFunc("DELETE /api/networks/{nwid}/members/{id}", h.stashMember)
	mux.HandleFunc("DELETE /api/networks/{nwid}/members/{id}/permanent", h.deleteMember)
	mux.HandleFunc("DELETE /api/networks/{nwid}/stashed", h.bulkDeleteStashed)

	// Notations
	mux.HandleFunc("GET /api/networks/{nwid}/notations", h.listNotations)
	mux.HandleFunc("POST /api/networks/{nwid}/members/{id}/notations", h.attachNotation)
	mux.HandleFunc("DELETE /api/networks/{nwid}/members/{id}/notations/{notation}", h.detachNotation)

	// Webhooks
	mux.HandleFunc("GET /api/networks/{nwid}/webhooks", h.listWebhooks)
	mux.HandleFunc("POST /api/networks/{nwid}/webhooks", h.createWebhook)
	mux.HandleFunc("PUT /api/webhooks/{id}", h.updateWebhook)
	mux.HandleFunc("DELETE /api/webhooks/{id}", h.deleteWebhook)

	// Event stream
	mux.HandleFunc("GET /api/networks/{nwid}/events", h.memberEvents)
}

// status handles GET /api/status
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Status(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "controller unreachable")
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// memberEvents handles GET /api/networks/{nwid}/events
func (h *Handler) memberEvents(w http.ResponseWriter, r *http.Request) {
	nwid := r.PathValue("nwid")
	if _, err := h.storage.GetNetwork(nwid); err != nil {
		h.writeError(w, http.StatusNotFound, "network not found")
		return
	}
	h.hub.Subscribe(w, r, nwid)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal Server Error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
