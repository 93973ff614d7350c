// Package logging installs the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

type options struct {
	maxSizeMB  int
	maxBackups int
}

type Option func(*options)

func WithMaxSizeMB(size int) Option {
	return func(o *options) {
		o.maxSizeMB = size
	}
}

func WithMaxBackups(count int) Option {
	return func(o *options) {
		o.maxBackups = count
	}
}

// NewRotatingFile returns a writer appending to path that rotates the file
// once it exceeds the size limit, keeping a bounded number of backups.
func NewRotatingFile(path string, opts ...Option) (io.WriteCloser, error) {
	o := options{
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	_ = f.Close()

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
	}, nil
}

// Setup installs the default logger. Without debug everything is discarded;
// with debug, records at debug level go to the rotating file at path. The
// returned closer is never nil.
func Setup(debug bool, path string, opts ...Option) (io.Closer, error) {
	if !debug {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return io.NopCloser(nil), nil
	}

	w, err := NewRotatingFile(path, opts...)
	if err != nil {
		return io.NopCloser(nil), err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return w, nil
}
