package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

const memberColumns = `id, network_id, name, description, authorized, active_bridge,
       no_auto_assign_ips, ip_assignments, tags, capabilities, physical_address,
       last_seen, online, deleted, permanently_deleted, created_at, updated_at`

// ListMembers returns member rows for a network. The default filter
// returns only active rows; the flags widen or narrow the selection so
// the reconciler can load the complete set in one query.
func (ss *SQLiteStorage) ListMembers(networkID string, filter *model.MemberFilter) ([]model.Member, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := "SELECT " + memberColumns + " FROM network_members WHERE network_id = ?"
	args := []interface{}{networkID}

	if filter == nil {
		filter = &model.MemberFilter{}
	}
	switch {
	case filter.OnlyStashed:
		query += " AND deleted = 1 AND permanently_deleted = 0"
	default:
		if !filter.IncludeStashed {
			query += " AND deleted = 0"
		}
		if !filter.IncludeTerminal {
			query += " AND permanently_deleted = 0"
		}
	}
	if filter.AuthorizedOnly {
		query += " AND authorized = 1"
	}

	query += " ORDER BY id"

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// GetMember retrieves one member row by its composite key, regardless
// of deletion state.
func (ss *SQLiteStorage) GetMember(networkID, memberID string) (*model.Member, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(
		"SELECT "+memberColumns+" FROM network_members WHERE network_id = ? AND id = ? LIMIT 1",
		networkID, memberID)
	if err != nil {
		return nil, fmt.Errorf("querying member: %w", err)
	}
	defer rows.Close()

	members, err := scanMembers(rows)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrMemberNotFound
	}
	return &members[0], nil
}

// CreateMember inserts a new member row.
func (ss *SQLiteStorage) CreateMember(member *model.Member) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if member.ID == "" || member.NetworkID == "" {
		return ErrInvalidID
	}

	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	ips, tags, caps, err := encodeMemberJSON(member)
	if err != nil {
		return err
	}

	_, err = ss.db.Exec(`
		INSERT INTO network_members (id, network_id, name, description, authorized,
		            active_bridge, no_auto_assign_ips, ip_assignments, tags, capabilities,
		            physical_address, last_seen, online, deleted, permanently_deleted,
		            created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, member.ID, member.NetworkID, member.Name, member.Description, member.Authorized,
		member.ActiveBridge, member.NoAutoAssignIPs, ips, tags, caps,
		member.PhysicalAddress, nullTime(member.LastSeen), member.Online,
		member.Deleted, member.PermanentlyDeleted, member.CreatedAt, member.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

// UpdateMember writes the full member row back.
func (ss *SQLiteStorage) UpdateMember(member *model.Member) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	member.UpdatedAt = time.Now()

	ips, tags, caps, err := encodeMemberJSON(member)
	if err != nil {
		return err
	}

	result, err := ss.db.Exec(`
		UPDATE network_members
		SET name = ?, description = ?, authorized = ?, active_bridge = ?,
		    no_auto_assign_ips = ?, ip_assignments = ?, tags = ?, capabilities = ?,
		    physical_address = ?, last_seen = ?, online = ?, deleted = ?,
		    permanently_deleted = ?, updated_at = ?
		WHERE network_id = ? AND id = ?
	`, member.Name, member.Description, member.Authorized, member.ActiveBridge,
		member.NoAutoAssignIPs, ips, tags, caps, member.PhysicalAddress,
		nullTime(member.LastSeen), member.Online, member.Deleted,
		member.PermanentlyDeleted, member.UpdatedAt, member.NetworkID, member.ID)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// DeleteMember removes a member row outright. Stash and permanent
// deletion are handled by UpdateMember on the lifecycle flags; this is
// the hard delete used for never-stashed members.
func (ss *SQLiteStorage) DeleteMember(networkID, memberID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(
		"DELETE FROM network_members WHERE network_id = ? AND id = ?", networkID, memberID)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func encodeMemberJSON(member *model.Member) (ips, tags, caps string, err error) {
	i, err := json.Marshal(member.IPAssignments)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding ip assignments: %w", err)
	}
	t, err := json.Marshal(member.Tags)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding tags: %w", err)
	}
	c, err := json.Marshal(member.Capabilities)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding capabilities: %w", err)
	}
	return string(i), string(t), string(c), nil
}

func scanMembers(rows *sql.Rows) ([]model.Member, error) {
	var members []model.Member

	for rows.Next() {
		var m model.Member
		var ips, tags, caps string
		var lastSeen sql.NullTime
		err := rows.Scan(&m.ID, &m.NetworkID, &m.Name, &m.Description, &m.Authorized,
			&m.ActiveBridge, &m.NoAutoAssignIPs, &ips, &tags, &caps,
			&m.PhysicalAddress, &lastSeen, &m.Online, &m.Deleted,
			&m.PermanentlyDeleted, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		if lastSeen.Valid {
			m.LastSeen = lastSeen.Time
		}
		if err := json.Unmarshal([]byte(ips), &m.IPAssignments); err != nil {
			return nil, fmt.Errorf("decoding ip assignments: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
		if err := json.Unmarshal([]byte(caps), &m.Capabilities); err != nil {
			return nil, fmt.Errorf("decoding capabilities: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
