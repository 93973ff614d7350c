// Package fusion merges the score vectors that several indexes computed over
// the same corpus. Every vector has one score per document; zero means the
// index did not match the document, and fused scores keep that meaning.
package fusion

import (
	"cmp"
	"fmt"
	"slices"
)

// DefaultK is the usual reciprocal rank smoothing constant.
const DefaultK = 60

// Func fuses aligned score vectors into one.
type Func func(vectors [][]float64) ([]float64, error)

// New returns the fusion function for a strategy name: rrf (default),
// weighted or max.
func New(strategy string, k int, weights []float64) (Func, error) {
	switch strategy {
	case "rrf", "":
		return ReciprocalRank(cmp.Or(k, DefaultK)), nil
	case "weighted":
		if len(weights) == 0 {
			return nil, fmt.Errorf("weighted fusion requires weights")
		}
		return Weighted(weights), nil
	case "max":
		return Max(), nil
	default:
		return nil, fmt.Errorf("unknown fusion strategy: %s", strategy)
	}
}

// ReciprocalRank sums 1/(k+rank) over the vectors in which a document
// matched. Ranks start at 1; equal scores rank by document order.
func ReciprocalRank(k int) Func {
	return func(vectors [][]float64) ([]float64, error) {
		n, err := length(vectors)
		if err != nil {
			return nil, err
		}

		fused := make([]float64, n)
		for _, scores := range vectors {
			for rank, doc := range ranking(scores) {
				fused[doc] += 1 / float64(k+rank+1)
			}
		}
		return fused, nil
	}
}

// Weighted scales each vector to a maximum of 1 and sums them with the given
// weights. Missing weights count as 1.
func Weighted(weights []float64) Func {
	return func(vectors [][]float64) ([]float64, error) {
		n, err := length(vectors)
		if err != nil {
			return nil, err
		}

		fused := make([]float64, n)
		for i, scores := range vectors {
			w := 1.0
			if i < len(weights) {
				w = weights[i]
			}
			top := slices.Max(append([]float64{0}, scores...))
			if top <= 0 {
				continue
			}
			for doc, s := range scores {
				if s > 0 {
					fused[doc] += w * s / top
				}
			}
		}
		return fused, nil
	}
}

// Max keeps the best scaled score of each document.
func Max() Func {
	return func(vectors [][]float64) ([]float64, error) {
		n, err := length(vectors)
		if err != nil {
			return nil, err
		}

		fused := make([]float64, n)
		for _, scores := range vectors {
			top := slices.Max(append([]float64{0}, scores...))
			if top <= 0 {
				continue
			}
			for doc, s := range scores {
				if s > 0 {
					fused[doc] = max(fused[doc], s/top)
				}
			}
		}
		return fused, nil
	}
}

func length(vectors [][]float64) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	n := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != n {
			return 0, fmt.Errorf("score vectors differ in length: %d and %d", n, len(v))
		}
	}
	return n, nil
}

// ranking returns the matching documents, best first.
func ranking(scores []float64) []int {
	var docs []int
	for i, s := range scores {
		if s > 0 {
			docs = append(docs, i)
		}
	}
	slices.SortStableFunc(docs, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return docs
}
