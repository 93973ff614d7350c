package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

func doc(key string) types.Document {
	return types.NewDocument(key, key, "content of "+key)
}

func docs(keys ...string) []types.Document {
	out := make([]types.Document, len(keys))
	for i, k := range keys {
		out[i] = doc(k)
	}
	return out
}

func TestAbsorb_EvictsLeastRecentlyTouched(t *testing.T) {
	t.Parallel()

	p := New(3)

	evicted := p.Absorb(docs("A", "B", "C", "D"))
	assert.Equal(t, []string{"A"}, evicted)
	assert.Equal(t, []string{"B", "C", "D"}, p.Keys())

	evicted = p.Absorb(docs("B"))
	assert.Empty(t, evicted)
	assert.Equal(t, []string{"C", "D", "B"}, p.Keys())
}

func TestAbsorb_ReinsertReplacesContent(t *testing.T) {
	t.Parallel()

	p := New(4)
	p.Absorb(docs("A", "B"))

	updated := types.NewDocument("A", "A", "fresh")
	p.Absorb([]types.Document{updated})

	all := p.Documents()
	require.Len(t, all, 2)
	assert.Equal(t, "B", all[0].Key())
	assert.Equal(t, "fresh", all[1].Content)
}

func TestAbsorb_DuplicatesInOneBatch(t *testing.T) {
	t.Parallel()

	p := New(8)
	p.Absorb(docs("A", "B", "A", "C"))

	assert.Equal(t, []string{"B", "A", "C"}, p.Keys())
}

func TestAbsorb_RefreshedEntrySurvivesEviction(t *testing.T) {
	t.Parallel()

	p := New(3)
	p.Absorb(docs("A", "B", "C"))
	p.Absorb(docs("A", "D"))

	assert.Equal(t, []string{"C", "A", "D"}, p.Keys())
}

func TestAbsorb_IgnoresDocumentsWithoutKey(t *testing.T) {
	t.Parallel()

	p := New(3)
	p.Absorb([]types.Document{{Content: "orphan"}, doc("A")})

	assert.Equal(t, []string{"A"}, p.Keys())
}

func TestApplyBlacklist_PreservesOrder(t *testing.T) {
	t.Parallel()

	p := New(8)
	p.Absorb(docs("A", "B", "C", "D"))

	removed := p.ApplyBlacklist(map[string]bool{"B": true, "D": true, "Z": true})

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"A", "C"}, p.Keys())
}

func TestApplyBlacklist_RepeatedIsNoop(t *testing.T) {
	t.Parallel()

	p := New(8)
	p.Absorb(docs("A", "B"))

	blacklist := map[string]bool{"A": true}
	assert.Equal(t, 1, p.ApplyBlacklist(blacklist))
	assert.Equal(t, 0, p.ApplyBlacklist(blacklist))
	assert.Equal(t, []string{"B"}, p.Keys())
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()

	p := New(3)
	p.Absorb(docs("A", "B"))

	c := p.Clone()
	c.Absorb(docs("C", "D"))

	assert.Equal(t, []string{"A", "B"}, p.Keys())
	assert.Equal(t, []string{"B", "C", "D"}, c.Keys())
	assert.Equal(t, 3, c.Capacity())
}

func TestNew_DefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, DefaultCapacity, New(-2).Capacity())
}

func TestReset(t *testing.T) {
	t.Parallel()

	p := New(3)
	p.Absorb(docs("A"))
	p.Reset()

	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Contains("A"))
	assert.Empty(t, p.Documents())
}
