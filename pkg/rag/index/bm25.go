package index

import (
	"context"
	"math"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

// Okapi BM25 parameters.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// BM25 is an in-memory Okapi BM25 index. Terms with a negative idf (present
// in more than half of the corpus) are floored to epsilon times the average idf.
type BM25 struct {
	docs      []types.Document
	termFreqs []map[string]int
	docLens   []float64
	avgDocLen float64
	idf       map[string]float64

	k1 float64
	b  float64
}

type BM25Opt func(*bm25Params)

type bm25Params struct {
	k1, b, epsilon float64
}

func WithK1(k1 float64) BM25Opt {
	return func(p *bm25Params) { p.k1 = k1 }
}

func WithB(b float64) BM25Opt {
	return func(p *bm25Params) { p.b = b }
}

func WithEpsilon(epsilon float64) BM25Opt {
	return func(p *bm25Params) { p.epsilon = epsilon }
}

func NewBM25(docs []types.Document, tok Tokenizer, opts ...BM25Opt) *BM25 {
	params := bm25Params{k1: DefaultK1, b: DefaultB, epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(&params)
	}

	idx := &BM25{
		docs:      docs,
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]float64, len(docs)),
		k1:        params.k1,
		b:         params.b,
	}

	docFreq := make(map[string]int)
	total := 0.0
	for i, doc := range docs {
		terms := tok.Tokenize(doc.Content)
		freqs := make(map[string]int, len(terms))
		for _, term := range terms {
			freqs[term]++
		}
		for term := range freqs {
			docFreq[term]++
		}
		idx.termFreqs[i] = freqs
		idx.docLens[i] = float64(len(terms))
		total += float64(len(terms))
	}
	if len(docs) > 0 {
		idx.avgDocLen = total / float64(len(docs))
	}

	idx.idf = make(map[string]float64, len(docFreq))
	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for term, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreq) > 0 {
		floor := params.epsilon * idfSum / float64(len(docFreq))
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}

	return idx
}

func (idx *BM25) Score(ctx context.Context, tokens []string) ([]float64, error) {
	scores := make([]float64, len(idx.docs))
	if idx.avgDocLen == 0 {
		return scores, nil
	}

	for _, term := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range idx.termFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			norm := tf + idx.k1*(1-idx.b+idx.b*idx.docLens[i]/idx.avgDocLen)
			scores[i] += idf * tf * (idx.k1 + 1) / norm
		}
	}
	return scores, nil
}

func (idx *BM25) Len() int {
	return len(idx.docs)
}

func (idx *BM25) Document(i int) types.Document {
	return idx.docs[i]
}

func (idx *BM25) Close() error {
	return nil
}
