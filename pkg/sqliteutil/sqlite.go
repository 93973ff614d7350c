package sqliteutil

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type options struct {
	busyTimeout time.Duration
	journalMode string
}

type Opt func(*options)

// WithBusyTimeout sets how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithJournalMode overrides the WAL journal mode, e.g. "DELETE".
func WithJournalMode(mode string) Opt {
	return func(o *options) {
		o.journalMode = mode
	}
}

// OpenDB opens (creating if needed) the SQLite database at path with foreign
// keys enabled. The pool holds a single connection so writes are serialized.
func OpenDB(path string, opts ...Opt) (*sql.DB, error) {
	o := options{
		busyTimeout: 5 * time.Second,
		journalMode: "WAL",
	}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		path, o.busyTimeout.Milliseconds(), o.journalMode)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, openError(path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, openError(path, err)
	}
	return db, nil
}

func openError(path string, err error) error {
	if IsCantOpenError(err) {
		return DiagnoseDBOpenError(path, err)
	}
	return err
}

// IsCantOpenError reports whether err is SQLITE_CANTOPEN.
func IsCantOpenError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CANTOPEN
	}
	return false
}

// DiagnoseDBOpenError explains why the database file could not be created.
func DiagnoseDBOpenError(path string, originalErr error) error {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("cannot create database at %q: directory %q does not exist", path, dir)
	case err != nil:
		return fmt.Errorf("cannot create database at %q: %w", path, err)
	case !info.IsDir():
		return fmt.Errorf("cannot create database at %q: %q is not a directory", path, dir)
	default:
		return fmt.Errorf("cannot create database at %q: permission denied or file cannot be created in %q (original error: %v)", path, dir, originalErr)
	}
}

// MoveAside renames the database and its WAL companions to "<path>.bak" so a
// fresh database can be created in its place. A missing database is not an
// error.
func MoveAside(path string) error {
	backup := path + ".bak"
	slog.Info("Moving database aside", "from", path, "to", backup)

	if err := os.Rename(path, backup); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("moving database file: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(path + suffix); err != nil {
			continue
		}
		if err := os.Rename(path+suffix, backup+suffix); err != nil {
			slog.Warn("Failed to move database companion file", "file", path+suffix, "error", err)
		}
	}
	return nil
}
