// Package notify delivers webhook notifications for network events.
// Delivery is fire and forget: a failing endpoint is logged and never
// fails the operation that raised the event.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body,
// keyed with the webhook secret.
const SignatureHeader = "X-Ztnetd-Signature-256"

const deliveryTimeout = 5 * time.Second

// Dispatcher fans events out to the webhooks registered for a network.
type Dispatcher struct {
	store  storage.WebhookStorage
	client *http.Client

	wg sync.WaitGroup
}

// NewDispatcher builds a webhook dispatcher.
func NewDispatcher(store storage.WebhookStorage) *Dispatcher {
	return &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Publish delivers a member event to the network's webhooks.
func (d *Dispatcher) Publish(networkID, event string, m *model.Member) {
	d.Dispatch(networkID, event, m)
}

// Dispatch delivers an event with an arbitrary payload to every
// enabled webhook subscribed to it. Deliveries run in the background;
// one endpoint failing does not affect the others.
func (d *Dispatcher) Dispatch(networkID, event string, data interface{}) {
	hooks, err := d.store.ListWebhooks(networkID)
	if err != nil {
		log.Error("list webhooks", "network", networkID, "error", err)
		return
	}

	payload := model.WebhookPayload{
		Event:     event,
		NetworkID: networkID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode webhook payload", "event", event, "error", err)
		return
	}

	for i := range hooks {
		hook := hooks[i]
		if !hook.Enabled || !subscribed(&hook, event) {
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(&hook, body)
		}()
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(hook *model.Webhook, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		log.Error("build webhook request", "webhook", hook.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", "webhook", hook.ID, "url", hook.URL, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Warn("webhook endpoint returned error", "webhook", hook.ID, "url", hook.URL, "status", resp.StatusCode)
	}
}

// Sign computes the signature header value for a payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func subscribed(hook *model.Webhook, event string) bool {
	for _, e := range hook.Events {
		if e == event {
			return true
		}
	}
	return false
}
