// Package library stores imported rule corpora on disk, one directory per
// library.
package library

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

// ErrNotFound is returned for an unknown library id.
var ErrNotFound = errors.New("library not found")

const (
	librariesDir  = "libraries"
	metadataFile  = "metadata.json"
	documentsFile = "rules_data.json"
)

// Metadata describes one library.
type Metadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	DocCount    int       `json:"doc_count"`
	Path        string    `json:"path"`
}

// Manager owns the libraries directory below a data root.
type Manager struct {
	root     string
	debounce time.Duration

	mu sync.Mutex
}

type Opt func(*Manager)

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) Opt {
	return func(m *Manager) {
		m.debounce = d
	}
}

func NewManager(dataDir string, opts ...Opt) (*Manager, error) {
	m := &Manager{
		root:     filepath.Join(dataDir, librariesDir),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("creating libraries directory: %w", err)
	}
	return m, nil
}

func (m *Manager) dir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return filepath.Join(m.root, id), nil
}

// DocumentsPath returns the documents file of a library.
func (m *Manager) DocumentsPath(id string) (string, error) {
	dir, err := m.dir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, documentsFile), nil
}

// Create makes an empty library.
func (m *Manager) Create(title, description string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()[:8]
	dir := filepath.Join(m.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("creating library: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	meta := Metadata{
		ID:          id,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now(),
		Path:        abs,
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta, true); err != nil {
		return Metadata{}, err
	}

	slog.Debug("Created library", "id", id, "title", title)
	return meta, nil
}

// List returns every readable library, newest first.
func (m *Manager) List() ([]Metadata, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("listing libraries: %w", err)
	}

	var libs []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(m.root, e.Name()))
		if err != nil {
			slog.Debug("Skipping library directory", "dir", e.Name(), "error", err)
			continue
		}
		libs = append(libs, meta)
	}

	slices.SortFunc(libs, func(a, b Metadata) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return libs, nil
}

func (m *Manager) Get(id string) (Metadata, error) {
	dir, err := m.dir(id)
	if err != nil {
		return Metadata{}, err
	}
	meta, err := readMetadata(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return meta, err
}

// Delete removes a library and all its files.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir, err := m.dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return os.RemoveAll(dir)
}

// UpdateDocCount records the number of documents of a library.
func (m *Manager) UpdateDocCount(id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDocCount(id, count)
}

func (m *Manager) updateDocCount(id string, count int) error {
	meta, err := m.Get(id)
	if err != nil {
		return err
	}
	meta.DocCount = count
	return writeJSON(filepath.Join(m.root, id, metadataFile), meta, true)
}

// SaveDocuments replaces the documents of a library and updates its count.
func (m *Manager) SaveDocuments(id string, docs []types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.DocumentsPath(id)
	if err != nil {
		return err
	}
	if _, err := m.Get(id); err != nil {
		return err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	if err := writeJSON(path, docs, false); err != nil {
		return err
	}
	return m.updateDocCount(id, len(docs))
}

// LoadDocuments reads every document of a library. A library that was never
// imported has none.
func (m *Manager) LoadDocuments(id string) ([]types.Document, error) {
	path, err := m.DocumentsPath(id)
	if err != nil {
		return nil, err
	}
	if _, err := m.Get(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var docs []types.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return docs, nil
}

// Preview returns at most limit documents of a library.
func (m *Manager) Preview(id string, limit int) ([]types.Document, error) {
	docs, err := m.LoadDocuments(id)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func readMetadata(dir string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	return meta, nil
}

func writeJSON(path string, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
