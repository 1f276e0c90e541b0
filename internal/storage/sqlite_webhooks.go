package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

// ListWebhooks returns the webhooks registered on a network.
func (ss *SQLiteStorage) ListWebhooks(networkID string) ([]model.Webhook, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, network_id, name, url, secret, events, enabled, created_at
		FROM webhooks WHERE network_id = ? ORDER BY name
	`, networkID)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	return scanWebhooks(rows)
}

// GetWebhook retrieves a webhook by ID.
func (ss *SQLiteStorage) GetWebhook(id string) (*model.Webhook, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, network_id, name, url, secret, events, enabled, created_at
		FROM webhooks WHERE id = ? LIMIT 1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	defer rows.Close()

	hooks, err := scanWebhooks(rows)
	if err != nil {
		return nil, err
	}
	if len(hooks) == 0 {
		return nil, ErrWebhookNotFound
	}
	return &hooks[0], nil
}

// CreateWebhook inserts a new webhook registration.
func (ss *SQLiteStorage) CreateWebhook(hook *model.Webhook) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if hook.ID == "" {
		return ErrInvalidID
	}
	hook.CreatedAt = time.Now()

	events, err := json.Marshal(hook.Events)
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	_, err = ss.db.Exec(`
		INSERT INTO webhooks (id, network_id, name, url, secret, events, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, hook.ID, hook.NetworkID, hook.Name, hook.URL, hook.Secret, string(events),
		hook.Enabled, hook.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting webhook: %w", err)
	}
	return nil
}

// UpdateWebhook updates a webhook registration.
func (ss *SQLiteStorage) UpdateWebhook(hook *model.Webhook) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	events, err := json.Marshal(hook.Events)
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	result, err := ss.db.Exec(`
		UPDATE webhooks
		SET name = ?, url = ?, secret = ?, events = ?, enabled = ?
		WHERE id = ?
	`, hook.Name, hook.URL, hook.Secret, string(events), hook.Enabled, hook.ID)
	if err != nil {
		return fmt.Errorf("updating webhook: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook registration.
func (ss *SQLiteStorage) DeleteWebhook(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM webhooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

func scanWebhooks(rows *sql.Rows) ([]model.Webhook, error) {
	var hooks []model.Webhook
	for rows.Next() {
		var h model.Webhook
		var events string
		if err := rows.Scan(&h.ID, &h.NetworkID, &h.Name, &h.URL, &h.Secret,
			&events, &h.Enabled, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		if err := json.Unmarshal([]byte(events), &h.Events); err != nil {
			return nil, fmt.Errorf("decoding events: %w", err)
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}
