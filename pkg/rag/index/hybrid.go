package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/rulelawyer/pkg/rag/fusion"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// Hybrid scores with several indexes over the same corpus and fuses their
// score vectors.
type Hybrid struct {
	parts []Index
	fuse  fusion.Func
}

var _ Index = (*Hybrid)(nil)

func NewHybrid(fuse fusion.Func, parts ...Index) (*Hybrid, error) {
	if len(parts) == 0 {
		return nil, errors.New("hybrid index needs at least one index")
	}
	for _, p := range parts[1:] {
		if p.Len() != parts[0].Len() {
			return nil, fmt.Errorf("indexes differ in size: %d and %d", parts[0].Len(), p.Len())
		}
	}
	return &Hybrid{parts: parts, fuse: fuse}, nil
}

func (h *Hybrid) Score(ctx context.Context, tokens []string) ([]float64, error) {
	vectors := make([][]float64, len(h.parts))
	for i, p := range h.parts {
		scores, err := p.Score(ctx, tokens)
		if err != nil {
			return nil, err
		}
		vectors[i] = scores
	}
	return h.fuse(vectors)
}

func (h *Hybrid) Len() int {
	return h.parts[0].Len()
}

func (h *Hybrid) Document(i int) types.Document {
	return h.parts[0].Document(i)
}

func (h *Hybrid) Close() error {
	var errs []error
	for _, p := range h.parts {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
