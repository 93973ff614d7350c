package agent

import (
	"context"
	"fmt"

	"github.com/docker/rulelawyer/pkg/rag/decision"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
)

// synthesize answers the question from the final pool.
func (c *controller) synthesize(ctx context.Context) (string, error) {
	c.rec.record(KindThink, "Final Generate", "generating final answer")

	rendered, _ := prompts.RenderDocuments(c.agent.pool.Documents())
	p := prompts.FinalAnswer(c.history, c.input, rendered)
	raw, err := c.agent.complete(ctx, p.Name, p.Messages())
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return decision.ParseAnswer(raw), nil
}
