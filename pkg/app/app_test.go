package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/environment"
	"github.com/docker/rulelawyer/pkg/fake"
	"github.com/docker/rulelawyer/pkg/model/provider"
	"github.com/docker/rulelawyer/pkg/rag/types"
	"github.com/docker/rulelawyer/pkg/session"
	"github.com/docker/rulelawyer/pkg/userconfig"
)

func testSettings(t *testing.T) *userconfig.Settings {
	t.Helper()
	settings := userconfig.Defaults()
	settings.DataDir = t.TempDir()
	return &settings
}

func rulesCorpus() []types.Document {
	return []types.Document{
		types.NewDocument("combat/grapple.htm", "grapple", "To grapple, make an Athletics check contested by the target."),
		types.NewDocument("combat/shove.htm", "shove", "To shove a creature, make an Athletics check."),
		types.NewDocument("magic/counterspell.htm", "counterspell", "You attempt to interrupt a creature casting a spell."),
	}
}

func openWithLibrary(t *testing.T, model *fake.Model, opts ...Opt) *App {
	t.Helper()

	settings := testSettings(t)
	a, err := Open(t.Context(), settings, append([]Opt{WithModel(model)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	meta, err := a.Libraries().Create("Rules", "")
	require.NoError(t, err)
	require.NoError(t, a.Libraries().SaveDocuments(meta.ID, rulesCorpus()))

	a.settings.ActiveLibrary = meta.ID
	require.NoError(t, a.StartAgent(t.Context()))
	return a
}

func TestConfigMapping(t *testing.T) {
	t.Parallel()

	settings := userconfig.Defaults()
	settings.TopK = 4
	settings.MaxRounds = 3
	settings.Provider = "anthropic"
	settings.Model = "claude-sonnet-4-0"

	cfg := AgentConfig(&settings)
	assert.Equal(t, 4, cfg.TopK)
	assert.Equal(t, 8, cfg.PoolCapacity)
	assert.Equal(t, 3, cfg.MaxRounds)
	assert.Equal(t, 30, cfg.ShortQueryThreshold)
	assert.Equal(t, 5, cfg.HistoryLimit)

	mc := ModelConfig(&settings)
	assert.Equal(t, "anthropic", mc.Provider)
	assert.Equal(t, "claude-sonnet-4-0", mc.Model)
	assert.InDelta(t, 0.1, *mc.Temperature, 1e-9)
}

func TestIndexOptions(t *testing.T) {
	t.Parallel()

	settings := userconfig.Defaults()
	opts, err := IndexOptions(&settings)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	settings.Fusion = "weighted"
	_, err = IndexOptions(&settings)
	require.ErrorContains(t, err, "requires weights")

	settings.FusionWeights = []float64{2, 1}
	_, err = IndexOptions(&settings)
	require.NoError(t, err)
}

func TestStartAgent_TunedHybridScorer(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Scorer = "hybrid"
	settings.Fusion = "max"
	settings.BM25K1 = 1.2
	settings.BM25B = 0.5
	a, err := Open(t.Context(), settings, WithModel(fake.NewModel()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	meta, err := a.Libraries().Create("Rules", "")
	require.NoError(t, err)
	require.NoError(t, a.Libraries().SaveDocuments(meta.ID, rulesCorpus()))
	a.settings.ActiveLibrary = meta.ID
	require.NoError(t, a.StartAgent(t.Context()))

	docs, err := a.Search(t.Context(), "counterspell", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "magic/counterspell.htm", docs[0].Key())
}

func TestStartAgent_InvalidFusion(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Fusion = "weighted"
	a, err := Open(t.Context(), settings, WithModel(fake.NewModel()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.ErrorContains(t, a.StartAgent(t.Context()), "requires weights")
}

func TestStartAgent_MissingAPIKey(t *testing.T) {
	t.Parallel()

	a, err := Open(t.Context(), testSettings(t), WithEnvironment(environment.NewMultiProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	err = a.StartAgent(t.Context())
	require.ErrorIs(t, err, provider.ErrMissingAPIKey)
}

func TestStartAgent_UnknownLibrary(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.ActiveLibrary = "missing1"
	a, err := Open(t.Context(), settings, WithModel(fake.NewModel()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.Error(t, a.StartAgent(t.Context()))
}

func TestAsk_NotStarted(t *testing.T) {
	t.Parallel()

	a, err := Open(t.Context(), testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Ask(t.Context(), "grapple")
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestAskInSession_StoresExchange(t *testing.T) {
	t.Parallel()

	model := fake.NewModel("blacklist ids: none", "decision: STOP", "answer: Make an Athletics check.")
	var seen []agent.TraceKind
	a := openWithLibrary(t, model, WithOnStep(func(e agent.TraceEntry) { seen = append(seen, e.Kind) }))

	require.NoError(t, a.NewSession(t.Context()))
	sessionID := a.Session()
	require.NotEmpty(t, sessionID)

	var observed int
	res, err := a.AskInSession(t.Context(), sessionID, "How do I grapple?", func(agent.TraceEntry) { observed++ })
	require.NoError(t, err)
	assert.Equal(t, "Make an Athletics check.", res.Answer)
	require.NotEmpty(t, res.Pool)
	assert.Equal(t, "combat/grapple.htm", res.Pool[0].Path)
	assert.Equal(t, len(res.Trace), observed)
	assert.Len(t, seen, len(res.Trace))

	sess, err := a.Sessions().Get(t.Context(), sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, session.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "How do I grapple?", sess.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Make an Athletics check.", sess.Messages[1].Content)
	assert.Equal(t, Steps(res.Trace), sess.Messages[1].Trace)
	assert.Equal(t, "How do I grapple?", sess.Title)
}

type failingStore struct {
	session.Store
	err error
}

func (s failingStore) AddMessages(context.Context, string, ...session.Message) error {
	return s.err
}

func TestAskInSession_StoreFailureSurfaces(t *testing.T) {
	t.Parallel()

	store, err := session.NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)

	model := fake.NewModel("blacklist ids: none", "decision: STOP", "answer: contest")
	var observed []agent.TraceKind
	a := openWithLibrary(t, model, WithSessionStore(failingStore{Store: store, err: errors.New("disk full")}))
	require.NoError(t, a.NewSession(t.Context()))

	res, err := a.AskInSession(t.Context(), a.Session(), "grapple", func(e agent.TraceEntry) { observed = append(observed, e.Kind) })
	require.ErrorContains(t, err, "disk full")
	require.NotNil(t, res)
	require.ErrorContains(t, res.Err, "disk full")
	assert.Equal(t, "storing exchange: disk full", res.Error())
	assert.Equal(t, "contest", res.Answer)
	assert.Equal(t, agent.KindError, res.Trace[len(res.Trace)-1].Kind)
	assert.Equal(t, agent.KindError, observed[len(observed)-1])
	assert.Empty(t, a.Agent().History())

	sess, err := store.Get(t.Context(), a.Session())
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)
}

func TestAsk_FailureIsNotStored(t *testing.T) {
	t.Parallel()

	model := fake.NewModel()
	model.Fail(errors.New("rate limited"))
	a := openWithLibrary(t, model)
	require.NoError(t, a.NewSession(t.Context()))

	res, err := a.Ask(t.Context(), "How do I grapple?")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, agent.KindError, res.Trace[len(res.Trace)-1].Kind)

	sess, err := a.Sessions().Get(t.Context(), a.Session())
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)
}

func TestAsk_WithoutSessionIsNotStored(t *testing.T) {
	t.Parallel()

	model := fake.NewModel("blacklist ids: none", "decision: STOP", "answer: Yes.")
	a := openWithLibrary(t, model)

	_, err := a.Ask(t.Context(), "grapple")
	require.NoError(t, err)

	sessions, err := a.Sessions().List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestUseSession_RestoresMemory(t *testing.T) {
	t.Parallel()

	a := openWithLibrary(t, fake.NewModel())
	store := a.Sessions()

	sess, err := store.NewSession(t.Context())
	require.NoError(t, err)
	for _, m := range []session.Message{
		{Role: session.RoleUser, Content: "Can I grapple?"},
		{Role: session.RoleAssistant, Content: "Yes."},
		{Role: session.RoleUser, Content: "unanswered"},
	} {
		require.NoError(t, store.AddMessage(t.Context(), sess.ID, m))
	}

	require.NoError(t, a.UseSession(t.Context(), sess.ID))
	assert.Equal(t, sess.ID, a.Session())
	assert.Equal(t, []types.Turn{{User: "Can I grapple?", Assistant: "Yes."}}, a.Agent().History())

	require.ErrorIs(t, a.UseSession(t.Context(), "missing"), session.ErrNotFound)
}

func TestReset(t *testing.T) {
	t.Parallel()

	model := fake.NewModel("blacklist ids: none", "decision: STOP", "answer: Yes.")
	a := openWithLibrary(t, model)

	_, err := a.Ask(t.Context(), "grapple")
	require.NoError(t, err)
	require.Len(t, a.Agent().History(), 1)

	require.NoError(t, a.Reset(t.Context()))
	assert.Empty(t, a.Agent().History())
}

func TestImport_Directory(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	page := "<html><body><h1>Grapple</h1><p>" + strings.Repeat("Make an Athletics check contested by the target. ", 3) + "</p></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(src, "grapple.htm"), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "empty.htm"), []byte("<p>tiny</p>"), 0o644))

	a, err := Open(t.Context(), testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var progress []types.Progress
	meta, err := a.Import(t.Context(), "Basic Rules", "imported in tests", src, func(p types.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.DocCount)
	assert.Equal(t, "Basic Rules", meta.Title)
	require.NotEmpty(t, progress)
	assert.InDelta(t, 1.0, progress[len(progress)-1].Fraction, 1e-9)

	docs, err := a.Libraries().LoadDocuments(meta.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "grapple.htm", docs[0].Key())
}

func TestImport_NothingFoundLeavesNoLibrary(t *testing.T) {
	t.Parallel()

	a, err := Open(t.Context(), testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Import(t.Context(), "Empty", "", t.TempDir(), nil)
	require.ErrorContains(t, err, "no pages with content")

	libs, err := a.Libraries().List()
	require.NoError(t, err)
	assert.Empty(t, libs)
}

func TestTurns(t *testing.T) {
	t.Parallel()

	turns := Turns([]session.Message{
		{Role: session.RoleAssistant, Content: "orphan"},
		{Role: session.RoleUser, Content: "q1"},
		{Role: session.RoleAssistant, Content: "a1"},
		{Role: session.RoleUser, Content: "q2"},
		{Role: session.RoleUser, Content: "q3"},
		{Role: session.RoleAssistant, Content: "a3"},
	})
	assert.Equal(t, []types.Turn{{User: "q1", Assistant: "a1"}, {User: "q3", Assistant: "a3"}}, turns)
}
