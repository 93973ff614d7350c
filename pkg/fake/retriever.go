package fake

import (
	"context"
	"maps"
	"sync"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

// Search is one recorded retriever call.
type Search struct {
	Query    string
	Excluded map[string]bool
	TopK     int
}

// Retriever returns canned results per query. Excluded keys are honoured and
// results are cut to topK, like the real retriever.
type Retriever struct {
	mu       sync.Mutex
	results  map[string][]types.Document
	err      error
	searches []Search
}

func NewRetriever(results map[string][]types.Document) *Retriever {
	if results == nil {
		results = map[string][]types.Document{}
	}
	return &Retriever{results: results}
}

// FailWith makes every later search fail.
func (r *Retriever) FailWith(err error) *Retriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

func (r *Retriever) Search(ctx context.Context, query string, excluded map[string]bool, topK int) ([]types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.searches = append(r.searches, Search{Query: query, Excluded: maps.Clone(excluded), TopK: topK})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	var out []types.Document
	for _, doc := range r.results[query] {
		if excluded[doc.Key()] {
			continue
		}
		out = append(out, doc)
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

// Searches returns the calls received so far.
func (r *Retriever) Searches() []Search {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Search(nil), r.searches...)
}
