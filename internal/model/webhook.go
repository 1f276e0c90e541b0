package model

import "time"

// Webhook event names.
const (
	EventMemberJoined     = "member.joined"
	EventMemberAuthorized = "member.authorized"
	EventMemberDeleted    = "member.deleted"
	EventMemberOnline     = "member.online"
	EventMemberOffline    = "member.offline"
	EventRouteConflict    = "network.route_conflict"
)

// Webhook is an HTTP callback registered on a network. Delivery is
// best-effort; failures are logged and never fail the triggering
// operation.
type Webhook struct {
	ID        string    `json:"id"`
	NetworkID string    `json:"network_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"` // optional HMAC signing secret
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookPayload is the body POSTed to a webhook URL.
type WebhookPayload struct {
	Event     string      `json:"event"`
	NetworkID string      `json:"network_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
