package retriever

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/rulelawyer/pkg/rag/fusion"
	"github.com/docker/rulelawyer/pkg/rag/index"
	"github.com/docker/rulelawyer/pkg/rag/tokenize"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

func rules() []types.Document {
	return []types.Document{
		types.NewDocument("combat/grapple.htm", "grapple", "Grapple. You can grapple a creature that is no more than one size larger than you."),
		types.NewDocument("combat/escape.htm", "escape", "Escaping a grapple. A grappled creature can use its action to escape the grapple."),
		types.NewDocument("magic/fireball.htm", "fireball", "Fireball. A bright streak flashes from your pointing finger."),
	}
}

func keys(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Key()
	}
	return out
}

func TestSearch(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New())
	require.NoError(t, err)

	docs, err := r.Search(t.Context(), "grapple", nil, 10)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"combat/grapple.htm", "combat/escape.htm"}, keys(docs))
	assert.Equal(t, 3, r.Len())
}

func TestSearch_Excluded(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New())
	require.NoError(t, err)

	docs, err := r.Search(t.Context(), "grapple", map[string]bool{"combat/escape.htm": true}, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"combat/grapple.htm"}, keys(docs))
}

func TestSearch_NoTerms(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New())
	require.NoError(t, err)

	docs, err := r.Search(t.Context(), "the of ...", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSearch_NotLoaded(t *testing.T) {
	t.Parallel()

	_, err := New(tokenize.New()).Search(t.Context(), "grapple", nil, 10)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestSearch_BleveIndex(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New(), WithIndexKind(index.KindBleve))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	docs, err := r.Search(t.Context(), "fireball", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"magic/fireball.htm"}, keys(docs))
}

func TestSearch_TunedHybridIndex(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New(),
		WithIndexKind(index.KindHybrid),
		WithIndexOptions(
			index.WithBM25Options(index.WithK1(1.2), index.WithB(0.5)),
			index.WithFusion(fusion.Weighted([]float64{2, 1})),
		))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	docs, err := r.Search(t.Context(), "escape", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"combat/escape.htm"}, keys(docs))
}

func TestReload_SwapsCorpus(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New())
	require.NoError(t, err)

	_, err = r.Search(t.Context(), "fireball", nil, 10)
	require.NoError(t, err)

	require.NoError(t, r.Reload([]types.Document{
		types.NewDocument("magic/cone.htm", "cone", "Cone of cold. A blast of cold air erupts from your hands."),
		types.NewDocument("magic/shield.htm", "shield", "Shield. An invisible barrier of magical force appears."),
		types.NewDocument("magic/light.htm", "light", "Light. You touch one object that sheds bright light."),
	}))

	docs, err := r.Search(t.Context(), "fireball", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = r.Search(t.Context(), "cold", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"magic/cone.htm"}, keys(docs))
}

type countingIndex struct {
	index.Index
	calls *atomic.Int32
}

func (c countingIndex) Score(ctx context.Context, tokens []string) ([]float64, error) {
	c.calls.Add(1)
	return c.Index.Score(ctx, tokens)
}

func TestScore_Memoized(t *testing.T) {
	t.Parallel()

	r, err := Load(rules(), tokenize.New())
	require.NoError(t, err)

	var calls atomic.Int32
	idx := countingIndex{Index: r.index, calls: &calls}

	for range 3 {
		scores, err := r.score(t.Context(), idx, r.memo, []string{"grapple"})
		require.NoError(t, err)
		assert.Len(t, scores, 3)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err = r.score(t.Context(), idx, r.memo, []string{"escape"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
