// Package index scores every document of a corpus against a tokenized query.
package index

import (
	"context"
	"fmt"

	"github.com/docker/rulelawyer/pkg/rag/fusion"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// Index is a lexical scorer over a fixed, ordered corpus. Score returns one
// value per document, aligned with corpus order; larger is more relevant and
// zero means no match.
type Index interface {
	Score(ctx context.Context, tokens []string) ([]float64, error)
	Len() int
	Document(i int) types.Document
	Close() error
}

const (
	KindBM25   = "bm25"
	KindBleve  = "bleve"
	KindHybrid = "hybrid"
)

// Tokenizer turns document text into index terms.
type Tokenizer interface {
	Tokenize(text string) []string
}

type buildOptions struct {
	bm25 []BM25Opt
	fuse fusion.Func
}

type BuildOpt func(*buildOptions)

// WithBM25Options tunes the BM25 index, alone or as part of a hybrid.
func WithBM25Options(opts ...BM25Opt) BuildOpt {
	return func(o *buildOptions) {
		o.bm25 = append(o.bm25, opts...)
	}
}

// WithFusion sets how a hybrid index merges its scores.
func WithFusion(fuse fusion.Func) BuildOpt {
	return func(o *buildOptions) {
		o.fuse = fuse
	}
}

// Build creates an index of the given kind over docs. An empty kind selects
// BM25; hybrid fuses BM25 and bleve, by reciprocal rank unless WithFusion
// says otherwise.
func Build(kind string, docs []types.Document, tok Tokenizer, opts ...BuildOpt) (Index, error) {
	o := buildOptions{fuse: fusion.ReciprocalRank(fusion.DefaultK)}
	for _, opt := range opts {
		opt(&o)
	}

	switch kind {
	case "", KindBM25:
		return NewBM25(docs, tok, o.bm25...), nil
	case KindBleve:
		return NewBleve(docs)
	case KindHybrid:
		bl, err := NewBleve(docs)
		if err != nil {
			return nil, err
		}
		return NewHybrid(o.fuse, NewBM25(docs, tok, o.bm25...), bl)
	default:
		return nil, fmt.Errorf("unknown index kind: %s", kind)
	}
}
