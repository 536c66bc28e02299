package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config describes the sqlite file backing game history and its pool.
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	MigrationsPath  string        `json:"migrations_path"`
}

// DefaultConfig keeps a small pool. All writes are serialised by the store,
// so extra connections only serve history reads.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/impostor.db",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		MigrationsPath:  "./migrations",
	}
}

func (c *Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.DatabasePath != "", "database path cannot be empty"},
		{c.MaxConnections > 0, "max connections must be greater than 0"},
		{c.ConnMaxLifetime > 0, "connection max lifetime must be greater than 0"},
		{c.ConnMaxIdleTime > 0, "connection max idle time must be greater than 0"},
		{c.MigrationsPath != "", "migrations path cannot be empty"},
	}
	for _, check := range checks {
		if !check.ok {
			return errors.New(check.msg)
		}
	}
	return nil
}

// DSN returns the sqlite3 connection string with the pragmas every pooled
// connection needs.
func (c *Config) DSN() string {
	return c.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

// sqliteOptimizations are applied once after opening the pool.
var sqliteOptimizations = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// ApplySQLiteOptimizations applies the performance pragmas to db.
func ApplySQLiteOptimizations(db *sql.DB) error {
	for _, pragma := range sqliteOptimizations {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
