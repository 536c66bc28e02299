package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strings"
)

var (
	ErrMigrationName      = errors.New("migration file name must look like NNN_description.sql")
	ErrDuplicateMigration = errors.New("duplicate migration version")
)

// Migration is one NNN_description.sql file.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// MigrationManager applies pending migrations and records them in
// schema_migrations.
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
}

// NewMigrationManager reads migrations from a directory on disk.
func NewMigrationManager(db *sql.DB, migrationsPath string) *MigrationManager {
	return NewMigrationManagerFS(db, os.DirFS(migrationsPath))
}

// NewMigrationManagerFS reads migrations from the root of source.
func NewMigrationManagerFS(db *sql.DB, source fs.FS) *MigrationManager {
	return &MigrationManager{db: db, source: source}
}

// ApplyMigrations applies every pending migration in version order, each in
// its own transaction, and stops at the first failure.
func (m *MigrationManager) ApplyMigrations() error {
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	for _, migration := range pending {
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		log.Printf("Applied migration %s (%s)", migration.Version, migration.Description)
	}
	return nil
}

// Pending returns the migrations not yet recorded as applied.
func (m *MigrationManager) Pending() ([]Migration, error) {
	if err := m.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to create migration table: %w", err)
	}

	migrations, err := m.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := m.AppliedVersions()
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := migrations[:0]
	for _, migration := range migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// ValidateSchema ensures the database has every table and index the
// history store queries.
func (m *MigrationManager) ValidateSchema() error {
	if err := requireObjects(m.db, "table", historyTables); err != nil {
		return err
	}
	return requireObjects(m.db, "index", historyIndexes)
}

func (m *MigrationManager) ensureTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// load reads and orders the .sql files of the source. Other files are ignored.
func (m *MigrationManager) load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}

		version, description, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		if !ok || version == "" || description == "" {
			return nil, fmt.Errorf("%w: %s", ErrMigrationName, name)
		}
		if previous, dup := seen[version]; dup {
			return nil, fmt.Errorf("%w %s: %s and %s", ErrDuplicateMigration, version, previous, name)
		}
		seen[version] = name

		content, err := fs.ReadFile(m.source, name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// AppliedVersions returns the set of versions recorded in schema_migrations.
func (m *MigrationManager) AppliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description,
	); err != nil {
		return err
	}
	return tx.Commit()
}
