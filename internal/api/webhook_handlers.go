package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

var knownEvents = map[string]bool{
	model.EventMemberJoined:     true,
	model.EventMemberAuthorized: true,
	model.EventMemberDeleted:    true,
	model.EventMemberOnline:     true,
	model.EventMemberOffline:    true,
	model.EventRouteConflict:    true,
}

// webhookRequest is the write shape for webhooks. The signing secret
// is write-only; stored webhooks never echo it back.
type webhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
	Enabled bool     `json:"enabled"`
}

// listWebhooks handles GET /api/networks/{nwid}/webhooks
func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	hooks, err := h.storage.ListWebhooks(network.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hooks)
}

// createWebhook handles POST /api/networks/{nwid}/webhooks
func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	network, ok := h.loadNetwork(w, r)
	if !ok {
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateWebhook(&req); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	hook := &model.Webhook{
		ID:        generateID(),
		NetworkID: network.ID,
		Name:      req.Name,
		URL:       req.URL,
		Secret:    req.Secret,
		Events:    req.Events,
		Enabled:   req.Enabled,
		CreatedAt: time.Now(),
	}
	if err := h.storage.CreateWebhook(hook); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, hook)
}

// updateWebhook handles PUT /api/webhooks/{id}
func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.storage.GetWebhook(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrWebhookNotFound) {
			h.writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		h.internalError(w, err)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateWebhook(&req); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	hook.Name = req.Name
	hook.URL = req.URL
	hook.Events = req.Events
	hook.Enabled = req.Enabled
	if req.Secret != "" {
		hook.Secret = req.Secret
	}

	if err := h.storage.UpdateWebhook(hook); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hook)
}

// deleteWebhook handles DELETE /api/webhooks/{id}
func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteWebhook(r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrWebhookNotFound) {
			h.writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "webhook deleted"})
}

func validateWebhook(req *webhookRequest) string {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "webhook URL must be a valid http(s) URL"
	}
	if len(req.Events) == 0 {
		return "at least one event is required"
	}
	for _, e := range req.Events {
		if !knownEvents[e] {
			return "unknown event: " + e
		}
	}
	return ""
}
