// Package retriever answers "which documents match this query" by chaining
// the tokenizer, a lexical index and the ranked candidate selector.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kofalt/go-memoize"

	"github.com/docker/rulelawyer/pkg/rag/index"
	"github.com/docker/rulelawyer/pkg/rag/selector"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// ErrNotLoaded is returned by Search before any corpus was loaded.
var ErrNotLoaded = errors.New("no document index loaded")

const (
	memoExpiration = 10 * time.Minute
	memoCleanup    = 30 * time.Minute
)

// Retriever is safe for concurrent use. Reload swaps the index atomically:
// searches in flight keep using the index they started with.
type Retriever struct {
	kind      string
	indexOpts []index.BuildOpt
	tok       index.Tokenizer

	mu    sync.RWMutex
	index index.Index
	memo  *memoize.Memoizer
}

type Opt func(*Retriever)

// WithIndexKind selects the index implementation, see index.Build.
func WithIndexKind(kind string) Opt {
	return func(r *Retriever) {
		r.kind = kind
	}
}

// WithIndexOptions tunes every index the retriever builds.
func WithIndexOptions(opts ...index.BuildOpt) Opt {
	return func(r *Retriever) {
		r.indexOpts = append(r.indexOpts, opts...)
	}
}

func New(tok index.Tokenizer, opts ...Opt) *Retriever {
	r := &Retriever{tok: tok, kind: index.KindBM25}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load builds a retriever over docs.
func Load(docs []types.Document, tok index.Tokenizer, opts ...Opt) (*Retriever, error) {
	r := New(tok, opts...)
	if err := r.Reload(docs); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the corpus and drops every memoized score vector.
func (r *Retriever) Reload(docs []types.Document) error {
	start := time.Now()
	idx, err := index.Build(r.kind, docs, r.tok, r.indexOpts...)
	if err != nil {
		return fmt.Errorf("building %s index: %w", r.kind, err)
	}

	r.mu.Lock()
	old := r.index
	r.index = idx
	r.memo = memoize.NewMemoizer(memoExpiration, memoCleanup)
	r.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("Failed to close previous index", "kind", r.kind, "error", err)
		}
	}

	slog.Debug("Document index loaded", "kind", r.kind, "documents", len(docs), "duration", time.Since(start))
	return nil
}

// Len returns the size of the loaded corpus.
func (r *Retriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index == nil {
		return 0
	}
	return r.index.Len()
}

// Search returns up to topK documents for query, skipping excluded keys.
func (r *Retriever) Search(ctx context.Context, query string, excluded map[string]bool, topK int) ([]types.Document, error) {
	r.mu.RLock()
	idx, memo := r.index, r.memo
	r.mu.RUnlock()

	if idx == nil {
		return nil, ErrNotLoaded
	}

	tokens := r.tok.Tokenize(query)
	if len(tokens) == 0 {
		slog.Debug("Query has no index terms", "query", query)
		return nil, nil
	}

	scores, err := r.score(ctx, idx, memo, tokens)
	if err != nil {
		return nil, err
	}

	docs := selector.Select(idx, scores, excluded, topK)
	slog.Debug("Retrieved documents", "query", query, "terms", len(tokens), "excluded", len(excluded), "results", len(docs))
	return docs, nil
}

func (r *Retriever) score(ctx context.Context, idx index.Index, memo *memoize.Memoizer, tokens []string) ([]float64, error) {
	key := strings.Join(tokens, "\x1f")
	v, err, cached := memo.Memoize(key, func() (any, error) {
		return idx.Score(ctx, tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("scoring query: %w", err)
	}
	if cached {
		slog.Debug("Using memoized scores", "terms", len(tokens))
	}
	return v.([]float64), nil
}

// Close releases the loaded index.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		return nil
	}
	err := r.index.Close()
	r.index = nil
	return err
}
