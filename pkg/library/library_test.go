package library

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

func newManager(t *testing.T, opts ...Opt) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), opts...)
	require.NoError(t, err)
	return m
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	meta, err := m.Create("Basic Rules", "5e SRD")
	require.NoError(t, err)
	assert.Len(t, meta.ID, 8)
	assert.Equal(t, "Basic Rules", meta.Title)
	assert.Zero(t, meta.DocCount)
	assert.True(t, filepath.IsAbs(meta.Path))

	got, err := m.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, got.ID)
	assert.Equal(t, "5e SRD", got.Description)
}

func TestGet_Unknown(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	_, err := m.Get("deadbeef")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get("../etc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	first, err := m.Create("first", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := m.Create("second", "")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(m.root, "broken"), 0o755))

	libs, err := m.List()
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, second.ID, libs[0].ID)
	assert.Equal(t, first.ID, libs[1].ID)
}

func TestDocuments_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	meta, err := m.Create("rules", "")
	require.NoError(t, err)

	docs, err := m.LoadDocuments(meta.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	want := []types.Document{
		types.NewDocument("combat/grapple.htm", "grapple", "Grapple rules"),
		types.NewDocument("combat/shove.htm", "shove", "Shove rules"),
		types.NewDocument("combat/cover.htm", "cover", "Cover rules"),
	}
	require.NoError(t, m.SaveDocuments(meta.ID, want))

	got, err := m.LoadDocuments(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	updated, err := m.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.DocCount)

	preview, err := m.Preview(meta.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, want[:2], preview)

	raw, err := os.ReadFile(filepath.Join(m.root, meta.ID, documentsFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"page_content":"Grapple rules"`)
	assert.Contains(t, string(raw), `"full_path":"combat/grapple.htm"`)
}

func TestUpdateDocCount(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	meta, err := m.Create("rules", "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateDocCount(meta.ID, 42))
	got, err := m.Get(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.DocCount)

	require.ErrorIs(t, m.UpdateDocCount("missing", 1), ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	meta, err := m.Create("rules", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(meta.ID))
	_, err = m.Get(meta.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.Delete(meta.ID), ErrNotFound)
}

func TestWatch_ReportsDocumentChanges(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, ignore)

	m := newManager(t, WithDebounce(20*time.Millisecond))
	meta, err := m.Create("rules", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, meta.ID, func() { changes.Add(1) })
	}()

	// give the watcher time to register before writing
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.SaveDocuments(meta.ID, []types.Document{
		types.NewDocument("a.htm", "a", "content"),
	}))

	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_UnknownLibrary(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	require.ErrorIs(t, m.Watch(t.Context(), "missing", func() {}), ErrNotFound)
}
