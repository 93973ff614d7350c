package agent

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/docker/rulelawyer/pkg/rag/decision"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
)

// initialQuery turns the user input into the first search query. Short input
// is already a query and skips the model.
func (c *controller) initialQuery(ctx context.Context) (string, error) {
	if utf8.RuneCountInString(c.input) <= c.agent.config.ShortQueryThreshold {
		c.rec.record(KindThink, "Initial Query", "input short, used directly as query")
		return c.input, nil
	}

	p := prompts.QueryExtraction(c.history, c.input)
	raw, err := c.agent.complete(ctx, p.Name, p.Messages())
	if err != nil {
		return "", fmt.Errorf("extracting query: %w", err)
	}

	query := decision.ParseQuery(raw)
	c.rec.record(KindThink, "Initial Query", "extracted keywords: "+query)
	return query, nil
}
