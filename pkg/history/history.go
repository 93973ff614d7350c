// Package history keeps the questions asked in chat across runs.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/natefinch/atomic"
)

// DefaultLimit bounds how many questions are kept.
const DefaultLimit = 200

type History struct {
	Messages []string `json:"messages"`

	mu    sync.Mutex
	path  string
	limit int
}

type Opt func(*History)

func WithLimit(n int) Opt {
	return func(h *History) {
		if n > 0 {
			h.limit = n
		}
	}
}

// Path returns the history file below dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "history.json")
}

// Load reads the history stored at path. A missing file is an empty history.
func Load(path string, opts ...Opt) (*History, error) {
	h := &History{path: path, limit: DefaultLimit}
	for _, opt := range opts {
		opt(h)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Add records a question as the most recent one and saves the history. An
// earlier identical question is dropped.
func (h *History) Add(message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Messages = slices.DeleteFunc(h.Messages, func(m string) bool { return m == message })
	h.Messages = append(h.Messages, message)
	if extra := len(h.Messages) - h.limit; extra > 0 {
		h.Messages = slices.Delete(h.Messages, 0, extra)
	}
	return h.save()
}

// Recent returns up to n questions, oldest first.
func (h *History) Recent(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := max(len(h.Messages)-n, 0)
	return slices.Clone(h.Messages[start:])
}

// Get returns the i-th stored question, counting from 1 at the oldest.
func (h *History) Get(i int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i < 1 || i > len(h.Messages) {
		return "", false
	}
	return h.Messages[i-1], true
}

// Len returns the number of stored questions.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Messages)
}

func (h *History) save() error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(h.path, bytes.NewReader(data))
}
