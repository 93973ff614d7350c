package agent

import (
	"github.com/docker/rulelawyer/pkg/rag/prompts"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// history is a bounded conversation memory; the oldest turn goes first.
type history struct {
	limit int
	turns []types.Turn
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) Append(t types.Turn) {
	h.turns = append(h.turns, t)
	if over := len(h.turns) - h.limit; over > 0 {
		h.turns = append([]types.Turn(nil), h.turns[over:]...)
	}
}

func (h *history) Turns() []types.Turn {
	out := make([]types.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *history) Render() string {
	return prompts.RenderHistory(h.turns)
}

func (h *history) Reset() {
	h.turns = nil
}
