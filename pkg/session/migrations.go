package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Migration is one schema change, applied once and recorded by name.
type Migration struct {
	ID          int
	Name        string
	Description string
	UpSQL       string
}

type MigrationManager struct {
	db *sql.DB
}

func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// InitializeMigrations creates the bookkeeping table and applies every
// pending migration in order.
func (m *MigrationManager) InitializeMigrations(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range getAllMigrations() {
		applied, err := m.isMigrationApplied(ctx, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", migration.Name, err)
		}
		if applied {
			continue
		}
		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
	}
	return nil
}

// AppliedMigrations returns the names of applied migrations in order.
func (m *MigrationManager) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT name FROM migrations ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *MigrationManager) isMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE name = ?", name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO migrations (id, name, description, applied_at) VALUES (?, ?, ?, ?)",
		migration.ID, migration.Name, migration.Description, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("Applied session migration", "id", migration.ID, "name", migration.Name)
	return nil
}

func getAllMigrations() []Migration {
	return []Migration{
		{
			ID:          1,
			Name:        "001_create_sessions",
			Description: "Create the sessions table",
			UpSQL: `CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
		{
			ID:          2,
			Name:        "002_create_messages",
			Description: "Create the messages table with per-message traces",
			UpSQL: `CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				trace TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL
			)`,
		},
		{
			ID:          3,
			Name:        "003_index_messages_session",
			Description: "Index messages by session and position",
			UpSQL:       `CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_session_position ON messages(session_id, position)`,
		},
		{
			ID:          4,
			Name:        "004_index_sessions_updated",
			Description: "Index sessions by last update for listing",
			UpSQL:       `CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`,
		},
	}
}
