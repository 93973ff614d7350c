// Package selector turns a raw per-document score vector into an ordered list
// of accepted documents.
package selector

import (
	"cmp"
	"slices"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

const (
	// windowFactor and minWindow size the candidate window: enough headroom to
	// survive exclusion while bounding the scan.
	windowFactor = 5
	minWindow    = 50
)

// Corpus gives positional access to the documents the scores refer to.
type Corpus interface {
	Len() int
	Document(i int) types.Document
}

// Candidate is a document that made it into the window of one retrieval round.
type Candidate struct {
	Document types.Document
	Score    float64
	Index    int
}

// WindowSize returns the number of top-ranked candidates considered for a
// request of desired documents over a corpus of size n.
func WindowSize(desired, n int) int {
	return min(max(desired*windowFactor, minWindow), n)
}

// Rank orders corpus indices by descending score and returns the top window of
// them. Equal scores keep ascending corpus order, so a lower index wins a tie.
func Rank(corpus Corpus, scores []float64, desired int) []Candidate {
	n := min(corpus.Len(), len(scores))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	slices.SortStableFunc(indices, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	window := indices[:WindowSize(desired, n)]
	candidates := make([]Candidate, len(window))
	for i, idx := range window {
		candidates[i] = Candidate{
			Document: corpus.Document(idx),
			Score:    scores[idx],
			Index:    idx,
		}
	}
	return candidates
}

// Select returns up to desired documents in descending score order, skipping
// documents whose key is excluded.
//
// The scan over the ranked window is an early exit, not a filter: the first
// non-positive score ends it, since nothing ranked below can be relevant.
// Returning fewer documents than requested is a valid outcome.
func Select(corpus Corpus, scores []float64, excluded map[string]bool, desired int) []types.Document {
	if desired <= 0 {
		return nil
	}

	var accepted []types.Document
	for _, c := range Rank(corpus, scores, desired) {
		if c.Score <= 0 {
			break
		}
		if excluded[c.Document.Key()] {
			continue
		}

		accepted = append(accepted, c.Document)
		if len(accepted) >= desired {
			break
		}
	}
	return accepted
}
