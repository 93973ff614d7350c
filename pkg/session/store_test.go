package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()

	c := &clock{t: time.Date(2024, 3, 1, 14, 30, 0, 0, time.Local)}
	store, err := NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "sessions.db"), WithClock(c.now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "New session 14:30", sess.Title)

	got, err := store.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Title, got.Title)
	assert.Empty(t, got.Messages)
}

func TestAddMessage_TitleAndTrace(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)

	require.NoError(t, store.AddMessage(t.Context(), sess.ID, Message{
		Role:    RoleUser,
		Content: "  How does grappling work against larger creatures?",
	}))
	require.NoError(t, store.AddMessage(t.Context(), sess.ID, Message{
		Role:    RoleAssistant,
		Content: "Only up to one size larger.",
		Trace: []Step{
			{Kind: "Think", Label: "Initial Query", Content: "extracted keywords: grapple size"},
			{Kind: "Decision", Label: "Evaluation", Content: "STOP"},
		},
	}))
	require.NoError(t, store.AddMessage(t.Context(), sess.ID, Message{
		Role:    RoleUser,
		Content: "And shoving?",
	}))

	got, err := store.Get(t.Context(), sess.ID)
	require.NoError(t, err)

	assert.Equal(t, "How does grappling w", got.Title)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
	assert.Empty(t, got.Messages[0].Trace)
	assert.Equal(t, "Only up to one size larger.", got.Messages[1].Content)
	assert.Len(t, got.Messages[1].Trace, 2)
	assert.Equal(t, "STOP", got.Messages[1].Trace[1].Content)
	assert.Equal(t, "And shoving?", got.Messages[2].Content)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestAddMessages_Exchange(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)

	require.NoError(t, store.AddMessages(t.Context(), sess.ID,
		Message{Role: RoleUser, Content: "Can I shove prone?"},
		Message{Role: RoleAssistant, Content: "Yes.", Trace: []Step{{Kind: "Decision", Content: "STOP"}}},
	))

	got, err := store.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Can I shove prone?", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleAssistant, got.Messages[1].Role)
	assert.Len(t, got.Messages[1].Trace, 1)
}

func TestAddMessages_AllOrNothing(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)

	_, err = store.db.ExecContext(t.Context(), `CREATE TRIGGER reject_answers BEFORE INSERT ON messages
		WHEN NEW.role = 'assistant' BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	err = store.AddMessages(t.Context(), sess.ID,
		Message{Role: RoleUser, Content: "Can I shove prone?"},
		Message{Role: RoleAssistant, Content: "Yes."},
	)
	require.ErrorContains(t, err, "disk full")

	got, err := store.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
	assert.Equal(t, sess.Title, got.Title)
}

func TestAddMessage_UnknownSession(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	err := store.AddMessage(t.Context(), "missing", Message{Role: RoleUser, Content: "hi"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.AddMessage(t.Context(), "", Message{}), ErrEmptyID)
}

func TestList_MostRecentlyUpdatedFirst(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	first, err := store.NewSession(t.Context())
	require.NoError(t, err)
	second, err := store.NewSession(t.Context())
	require.NoError(t, err)

	sums, err := store.List(t.Context())
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, second.ID, sums[0].ID)

	require.NoError(t, store.AddMessage(t.Context(), first.ID, Message{Role: RoleUser, Content: "cover"}))

	sums, err = store.List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first.ID, sums[0].ID)
	assert.Equal(t, "cover", sums[0].Title)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)
	require.NoError(t, store.AddMessage(t.Context(), sess.ID, Message{Role: RoleUser, Content: "prone"}))

	require.NoError(t, store.Delete(t.Context(), sess.ID))

	_, err = store.Get(t.Context(), sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Delete(t.Context(), sess.ID), ErrNotFound)

	var orphans int
	require.NoError(t, store.db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM messages").Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestMigrations_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(t.Context(), path)
	require.NoError(t, err)
	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(t.Context(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Get(t.Context(), sess.ID)
	require.NoError(t, err)

	names, err := NewMigrationManager(store.db).AppliedMigrations(t.Context())
	require.NoError(t, err)
	assert.Len(t, names, len(getAllMigrations()))
}

func TestNewSQLiteStore_RecoversFromBrokenSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database file at all, just some bytes"), 0o600))

	store, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.FileExists(t, path+".bak")
	_, err = store.NewSession(t.Context())
	require.NoError(t, err)
}
