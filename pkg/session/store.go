package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docker/rulelawyer/pkg/sqliteutil"
)

var (
	ErrEmptyID  = errors.New("session ID cannot be empty")
	ErrNotFound = errors.New("session not found")
)

// timeFormat sorts lexically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store persists conversations.
type Store interface {
	NewSession(ctx context.Context) (*Session, error)
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*Session, error)
	AddMessage(ctx context.Context, id string, msg Message) error
	AddMessages(ctx context.Context, id string, msgs ...Message) error
	Delete(ctx context.Context, id string) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

type Opt func(*SQLiteStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Opt {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// NewSQLiteStore opens the store at path. A database whose migrations fail is
// moved aside and replaced by a fresh one.
func NewSQLiteStore(ctx context.Context, path string, opts ...Opt) (*SQLiteStore, error) {
	store, err := openAndMigrate(ctx, path)
	if err != nil {
		slog.Warn("Failed to open session store, attempting recovery", "error", err)

		if backupErr := sqliteutil.MoveAside(path); backupErr != nil {
			return nil, fmt.Errorf("migration failed: %w (backup also failed: %v)", err, backupErr)
		}
		store, err = openAndMigrate(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("migration failed even after database reset: %w", err)
		}
		slog.Info("Recovered session store with a fresh database")
	}

	store.now = time.Now
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func openAndMigrate(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := NewMigrationManager(db).InitializeMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		slog.Debug("Unparseable session timestamp", "value", v, "error", err)
	}
	return t
}

// NewSession creates an empty session titled after the current time.
func (s *SQLiteStore) NewSession(ctx context.Context) (*Session, error) {
	now := s.now()
	ts := formatTime(now)
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle(now),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		sess.ID, sess.Title, ts, ts); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// List returns every session, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, updated_at FROM sessions ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			updated string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &updated); err != nil {
			return nil, err
		}
		sum.UpdatedAt = parseTime(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads a session with its messages in order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	var (
		sess             Session
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, "SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, trace, created_at FROM messages WHERE session_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       Message
			role, ts  string
			traceJSON string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &traceJSON, &ts); err != nil {
			return nil, err
		}
		msg.Role = Role(role)
		msg.CreatedAt = parseTime(ts)
		if err := json.Unmarshal([]byte(traceJSON), &msg.Trace); err != nil {
			slog.Warn("Dropping unreadable message trace", "session", id, "message", msg.ID, "error", err)
		}
		sess.Messages = append(sess.Messages, msg)
	}
	return &sess, rows.Err()
}

// AddMessage appends a message. The first user message of a session becomes
// its title.
func (s *SQLiteStore) AddMessage(ctx context.Context, id string, msg Message) error {
	return s.AddMessages(ctx, id, msg)
}

// AddMessages appends messages in one transaction: either all of them are
// stored or none is.
func (s *SQLiteStore) AddMessages(ctx context.Context, id string, msgs ...Message) error {
	if id == "" {
		return ErrEmptyID
	}

	traces := make([]string, len(msgs))
	for i, msg := range msgs {
		trace := msg.Trace
		if trace == nil {
			trace = []Step{}
		}
		traceJSON, err := json.Marshal(trace)
		if err != nil {
			return err
		}
		traces[i] = string(traceJSON)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE session_id = ?", id).Scan(&count); err != nil {
		return err
	}

	ts := formatTime(s.now())
	for i, msg := range msgs {
		position := count + i
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, position, role, content, trace, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			id, position, string(msg.Role), msg.Content, traces[i], ts); err != nil {
			return fmt.Errorf("adding message: %w", err)
		}

		if msg.Role == RoleUser && position < 2 {
			if title := titleFrom(msg.Content); title != "" {
				if _, err := tx.ExecContext(ctx, "UPDATE sessions SET title = ? WHERE id = ?", title, id); err != nil {
					return err
				}
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?", ts, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a session and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
