package storage

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

// Migrate brings an existing database up to the current schema
// version. New databases are stamped directly at the current version.
func (ss *SQLiteStorage) Migrate() error {
	var version sql.NullInt64
	err := ss.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("checking migration version: %w", err)
	}

	current := int(version.Int64)
	if current >= schemaVersion {
		return nil
	}

	if current < 2 {
		if err := ss.migrateToV2(); err != nil {
			return fmt.Errorf("migrating to v2: %w", err)
		}
	}

	_, err = ss.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", schemaVersion)
	return err
}

// migrateToV2 adds the observation columns (physical_address, last_seen,
// online) to member rows created before controller polling existed.
func (ss *SQLiteStorage) migrateToV2() error {
	tx, err := ss.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, col := range []struct{ name, ddl string }{
		{"physical_address", "ALTER TABLE network_members ADD COLUMN physical_address TEXT NOT NULL DEFAULT ''"},
		{"last_seen", "ALTER TABLE network_members ADD COLUMN last_seen TIMESTAMP"},
		{"online", "ALTER TABLE network_members ADD COLUMN online INTEGER NOT NULL DEFAULT 0"},
	} {
		var name string
		err := tx.QueryRow(`
			SELECT name FROM pragma_table_info('network_members') WHERE name = ?
		`, col.name).Scan(&name)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(col.ddl); err != nil {
				return fmt.Errorf("adding column %s: %w", col.name, err)
			}
		} else if err != nil {
			return err
		}
	}

	return tx.Commit()
}
