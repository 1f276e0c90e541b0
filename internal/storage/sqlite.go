package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/ztnetd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStorage implements Storage with a SQLite backend.
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database under dataDir.
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "ztnetd.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := ss.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return ss, nil
}

func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// DatabasePath returns the database file path.
func (ss *SQLiteStorage) DatabasePath() string {
	return ss.path
}

// Network CRUD

const networkColumns = `id, name, description, private, author_id, organization_id,
       routes, dns, ip_pools, v4_assign_mode, multicast_limit, mtu, flow_rules,
       created_at, updated_at`

// ListNetworks returns networks matching the filter, ordered by name.
func (ss *SQLiteStorage) ListNetworks(filter *model.NetworkFilter) ([]model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := "SELECT " + networkColumns + " FROM networks WHERE 1=1"
	var args []interface{}

	if filter != nil {
		if filter.AuthorID != "" {
			query += " AND author_id = ?"
			args = append(args, filter.AuthorID)
		}
		if filter.OrganizationID != "" {
			query += " AND organization_id = ?"
			args = append(args, filter.OrganizationID)
		}
		if filter.Name != "" {
			query += " AND LOWER(name) LIKE ?"
			args = append(args, "%"+filter.Name+"%")
		}
	}

	query += " ORDER BY name"

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying networks: %w", err)
	}
	defer rows.Close()

	return scanNetworks(rows)
}

// GetNetwork retrieves a network by ID.
func (ss *SQLiteStorage) GetNetwork(id string) (*model.Network, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query("SELECT "+networkColumns+" FROM networks WHERE id = ? LIMIT 1", id)
	if err != nil {
		return nil, fmt.Errorf("querying network: %w", err)
	}
	defer rows.Close()

	networks, err := scanNetworks(rows)
	if err != nil {
		return nil, err
	}
	if len(networks) == 0 {
		return nil, ErrNetworkNotFound
	}
	return &networks[0], nil
}

// CreateNetwork inserts a new network row.
func (ss *SQLiteStorage) CreateNetwork(network *model.Network) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if network.ID == "" {
		return ErrInvalidID
	}

	now := time.Now()
	network.CreatedAt = now
	network.UpdatedAt = now

	routes, dns, pools, err := encodeNetworkJSON(network)
	if err != nil {
		return err
	}

	_, err = ss.db.Exec(`
		INSERT INTO networks (id, name, description, private, author_id, organization_id,
		                      routes, dns, ip_pools, v4_assign_mode, multicast_limit, mtu,
		                      flow_rules, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, network.ID, network.Name, network.Description, network.Private,
		nullString(network.AuthorID), nullString(network.OrganizationID),
		routes, dns, pools, network.V4AssignMode, network.MulticastLimit, network.MTU,
		network.FlowRules, network.CreatedAt, network.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting network: %w", err)
	}
	return nil
}

// UpdateNetwork updates an existing network row.
func (ss *SQLiteStorage) UpdateNetwork(network *model.Network) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	network.UpdatedAt = time.Now()

	routes, dns, pools, err := encodeNetworkJSON(network)
	if err != nil {
		return err
	}

	result, err := ss.db.Exec(`
		UPDATE networks
		SET name = ?, description = ?, private = ?, routes = ?, dns = ?, ip_pools = ?,
		    v4_assign_mode = ?, multicast_limit = ?, mtu = ?, flow_rules = ?, updated_at = ?
		WHERE id = ?
	`, network.Name, network.Description, network.Private, routes, dns, pools,
		network.V4AssignMode, network.MulticastLimit, network.MTU, network.FlowRules,
		network.UpdatedAt, network.ID)
	if err != nil {
		return fmt.Errorf("updating network: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNetworkNotFound
	}
	return nil
}

// DeleteNetwork removes a network and, via cascade, its members,
// notations and webhooks.
func (ss *SQLiteStorage) DeleteNetwork(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM networks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting network: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNetworkNotFound
	}
	return nil
}

// Helpers

func encodeNetworkJSON(network *model.Network) (routes, dns, pools string, err error) {
	r, err := json.Marshal(network.Routes)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding routes: %w", err)
	}
	d, err := json.Marshal(network.DNS)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding dns: %w", err)
	}
	p, err := json.Marshal(network.IPPools)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding ip pools: %w", err)
	}
	return string(r), string(d), string(p), nil
}

func scanNetworks(rows *sql.Rows) ([]model.Network, error) {
	var networks []model.Network

	for rows.Next() {
		var n model.Network
		var author, org sql.NullString
		var routes, dns, pools string
		err := rows.Scan(&n.ID, &n.Name, &n.Description, &n.Private, &author, &org,
			&routes, &dns, &pools, &n.V4AssignMode, &n.MulticastLimit, &n.MTU,
			&n.FlowRules, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}
		n.AuthorID = author.String
		n.OrganizationID = org.String
		if err := json.Unmarshal([]byte(routes), &n.Routes); err != nil {
			return nil, fmt.Errorf("decoding routes: %w", err)
		}
		if err := json.Unmarshal([]byte(dns), &n.DNS); err != nil {
			return nil, fmt.Errorf("decoding dns: %w", err)
		}
		if err := json.Unmarshal([]byte(pools), &n.IPPools); err != nil {
			return nil, fmt.Errorf("decoding ip pools: %w", err)
		}
		networks = append(networks, n)
	}

	return networks, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
