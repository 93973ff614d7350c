// Package pool implements the bounded working set of documents an agent has
// touched across retrieval rounds.
package pool

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

// DefaultCapacity is the number of documents kept when no capacity is given.
const DefaultCapacity = 8

// Pool is a key-deduplicated, capacity-bounded ordered set of documents.
//
// Iteration order is touch order: the oldest-touched document comes first.
// Absorbing a document whose key is already present removes the old entry and
// appends the new one, making it the most recently touched. When the pool grows
// beyond its capacity, entries are evicted from the front. Eviction is by
// recency only; a relevant document that is never re-surfaced ages out.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	capacity int
	entries  *orderedmap.OrderedMap[string, types.Document]
}

// New returns an empty pool. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		entries:  orderedmap.New[string, types.Document](),
	}
}

// Absorb merges incoming documents, in order, and returns the keys evicted to
// get back under capacity. Documents without a key are ignored.
func (p *Pool) Absorb(incoming []types.Document) []string {
	for _, doc := range incoming {
		key := doc.Key()
		if key == "" {
			continue
		}
		// Set keeps the position of an existing key, so delete first to move
		// the document to the back.
		p.entries.Delete(key)
		p.entries.Set(key, doc)
	}

	var evicted []string
	for p.entries.Len() > p.capacity {
		oldest := p.entries.Oldest()
		evicted = append(evicted, oldest.Key)
		p.entries.Delete(oldest.Key)
	}
	return evicted
}

// ApplyBlacklist removes every document whose key is in keys and reports how
// many were removed. The order of the remaining documents is preserved.
func (p *Pool) ApplyBlacklist(keys map[string]bool) int {
	removed := 0
	for key := range keys {
		if _, ok := p.entries.Delete(key); ok {
			removed++
		}
	}
	return removed
}

// Documents returns the pooled documents, oldest-touched first.
func (p *Pool) Documents() []types.Document {
	docs := make([]types.Document, 0, p.entries.Len())
	for pair := p.entries.Oldest(); pair != nil; pair = pair.Next() {
		docs = append(docs, pair.Value)
	}
	return docs
}

// Keys returns the pooled keys, oldest-touched first.
func (p *Pool) Keys() []string {
	keys := make([]string, 0, p.entries.Len())
	for pair := p.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (p *Pool) Contains(key string) bool {
	_, ok := p.entries.Get(key)
	return ok
}

func (p *Pool) Len() int {
	return p.entries.Len()
}

func (p *Pool) Capacity() int {
	return p.capacity
}

// Clone returns an independent copy with the same order and capacity.
func (p *Pool) Clone() *Pool {
	c := New(p.capacity)
	c.Absorb(p.Documents())
	return c
}

// Reset drops every document.
func (p *Pool) Reset() {
	p.entries = orderedmap.New[string, types.Document]()
}
