package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

// CountUsers returns the number of registered accounts. The API layer
// uses it to close registration after the first (admin) user.
func (ss *SQLiteStorage) CountUsers() (int, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var count int
	if err := ss.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// GetUser retrieves a user by ID.
func (ss *SQLiteStorage) GetUser(id string) (*model.User, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return ss.queryUser("SELECT id, username, password_hash, is_admin, global_naming, created_at, updated_at FROM users WHERE id = ?", id)
}

// GetUserByUsername retrieves a user by username (case-insensitive).
func (ss *SQLiteStorage) GetUserByUsername(username string) (*model.User, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return ss.queryUser("SELECT id, username, password_hash, is_admin, global_naming, created_at, updated_at FROM users WHERE LOWER(username) = LOWER(?)", username)
}

// CreateUser inserts a new account.
func (ss *SQLiteStorage) CreateUser(user *model.User) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if user.ID == "" {
		return ErrInvalidID
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := ss.db.Exec(`
		INSERT INTO users (id, username, password_hash, is_admin, global_naming, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.PasswordHash, user.IsAdmin, user.GlobalNaming,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// UpdateUser updates an account, including the global-naming preference.
func (ss *SQLiteStorage) UpdateUser(user *model.User) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	user.UpdatedAt = time.Now()

	result, err := ss.db.Exec(`
		UPDATE users
		SET username = ?, password_hash = ?, is_admin = ?, global_naming = ?, updated_at = ?
		WHERE id = ?
	`, user.Username, user.PasswordHash, user.IsAdmin, user.GlobalNaming,
		user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (ss *SQLiteStorage) queryUser(query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := ss.db.QueryRow(query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash,
		&u.IsAdmin, &u.GlobalNaming, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// Organizations

// GetOrganization retrieves an organization by ID.
func (ss *SQLiteStorage) GetOrganization(id string) (*model.Organization, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var o model.Organization
	err := ss.db.QueryRow(`
		SELECT id, name, description, global_naming, created_at, updated_at
		FROM organizations WHERE id = ?
	`, id).Scan(&o.ID, &o.Name, &o.Description, &o.GlobalNaming, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return &o, nil
}

// CreateOrganization inserts a new organization.
func (ss *SQLiteStorage) CreateOrganization(org *model.Organization) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if org.ID == "" {
		return ErrInvalidID
	}

	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := ss.db.Exec(`
		INSERT INTO organizations (id, name, description, global_naming, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Description, org.GlobalNaming, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting organization: %w", err)
	}
	return nil
}

// UpdateOrganization updates an organization row.
func (ss *SQLiteStorage) UpdateOrganization(org *model.Organization) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	org.UpdatedAt = time.Now()

	result, err := ss.db.Exec(`
		UPDATE organizations
		SET name = ?, description = ?, global_naming = ?, updated_at = ?
		WHERE id = ?
	`, org.Name, org.Description, org.GlobalNaming, org.UpdatedAt, org.ID)
	if err != nil {
		return fmt.Errorf("updating organization: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// AddOrganizationMember links a user to an organization with a role.
func (ss *SQLiteStorage) AddOrganizationMember(member *model.OrganizationMember) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.Exec(`
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = excluded.role
	`, member.OrganizationID, member.UserID, string(member.Role))
	if err != nil {
		return fmt.Errorf("adding organization member: %w", err)
	}
	return nil
}

// GetOrganizationRole returns the user's role in an organization, or
// ErrOrganizationNotFound when the user is not a member.
func (ss *SQLiteStorage) GetOrganizationRole(orgID, userID string) (model.OrganizationRole, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var role string
	err := ss.db.QueryRow(`
		SELECT role FROM organization_members
		WHERE organization_id = ? AND user_id = ?
	`, orgID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrOrganizationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying organization role: %w", err)
	}
	return model.OrganizationRole(role), nil
}

// ListUserOrganizations returns all organizations the user belongs to.
func (ss *SQLiteStorage) ListUserOrganizations(userID string) ([]model.Organization, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT o.id, o.name, o.description, o.global_naming, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_members om ON o.id = om.organization_id
		WHERE om.user_id = ?
		ORDER BY o.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.GlobalNaming,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}
