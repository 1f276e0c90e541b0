package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

// ListNotations returns all notations of a network ordered by name.
func (ss *SQLiteStorage) ListNotations(networkID string) ([]model.Notation, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, network_id, name, color, created_at
		FROM notations WHERE network_id = ? ORDER BY name
	`, networkID)
	if err != nil {
		return nil, fmt.Errorf("querying notations: %w", err)
	}
	defer rows.Close()

	return scanNotations(rows)
}

// GetNotationByName looks a notation up by its unique (network, name) pair.
func (ss *SQLiteStorage) GetNotationByName(networkID, name string) (*model.Notation, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, network_id, name, color, created_at
		FROM notations WHERE network_id = ? AND name = ? LIMIT 1
	`, networkID, name)
	if err != nil {
		return nil, fmt.Errorf("querying notation: %w", err)
	}
	defer rows.Close()

	notations, err := scanNotations(rows)
	if err != nil {
		return nil, err
	}
	if len(notations) == 0 {
		return nil, ErrNotationNotFound
	}
	return &notations[0], nil
}

// CreateNotation inserts a new notation.
func (ss *SQLiteStorage) CreateNotation(notation *model.Notation) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if notation.ID == "" {
		return ErrInvalidID
	}
	notation.CreatedAt = time.Now()

	_, err := ss.db.Exec(`
		INSERT INTO notations (id, network_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, notation.ID, notation.NetworkID, notation.Name, notation.Color, notation.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting notation: %w", err)
	}
	return nil
}

// AttachNotation links a notation to a member. Attaching twice is a no-op.
func (ss *SQLiteStorage) AttachNotation(notationID, memberID, networkID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.Exec(`
		INSERT INTO member_notations (notation_id, member_id, network_id)
		VALUES (?, ?, ?)
		ON CONFLICT (notation_id, member_id, network_id) DO NOTHING
	`, notationID, memberID, networkID)
	if err != nil {
		return fmt.Errorf("attaching notation: %w", err)
	}
	return nil
}

// DetachNotation removes the link between a notation and a member.
func (ss *SQLiteStorage) DetachNotation(notationID, memberID, networkID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		DELETE FROM member_notations
		WHERE notation_id = ? AND member_id = ? AND network_id = ?
	`, notationID, memberID, networkID)
	if err != nil {
		return fmt.Errorf("detaching notation: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotationNotFound
	}
	return nil
}

// ListMemberNotations returns the notations attached to one member.
func (ss *SQLiteStorage) ListMemberNotations(networkID, memberID string) ([]model.Notation, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT n.id, n.network_id, n.name, n.color, n.created_at
		FROM notations n
		INNER JOIN member_notations mn ON n.id = mn.notation_id
		WHERE mn.network_id = ? AND mn.member_id = ?
		ORDER BY n.name
	`, networkID, memberID)
	if err != nil {
		return nil, fmt.Errorf("querying member notations: %w", err)
	}
	defer rows.Close()

	return scanNotations(rows)
}

// GCNotations deletes notations of a network that no member references
// and reports how many were collected.
func (ss *SQLiteStorage) GCNotations(networkID string) (int, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		DELETE FROM notations
		WHERE network_id = ?
		  AND id NOT IN (SELECT notation_id FROM member_notations)
	`, networkID)
	if err != nil {
		return 0, fmt.Errorf("collecting notations: %w", err)
	}

	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanNotations(rows *sql.Rows) ([]model.Notation, error) {
	var notations []model.Notation
	for rows.Next() {
		var n model.Notation
		if err := rows.Scan(&n.ID, &n.NetworkID, &n.Name, &n.Color, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notation: %w", err)
		}
		notations = append(notations, n)
	}
	return notations, rows.Err()
}
