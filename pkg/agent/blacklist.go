package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/rulelawyer/pkg/rag/decision"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// judge asks the model which pool documents are unrelated to the question and
// returns their keys, leaving out keys already blacklisted. An empty pool is
// never sent to the model.
func (c *controller) judge(ctx context.Context, docs []types.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	rendered, ids := prompts.RenderDocuments(docs)
	p := prompts.BlacklistJudgment(c.input, rendered)
	raw, err := c.agent.complete(ctx, p.Name, p.Messages())
	if err != nil {
		return nil, fmt.Errorf("judging document pool: %w", err)
	}

	var keys []string
	seen := map[string]bool{}
	for _, id := range decision.ParseBlacklist(raw) {
		key, ok := ids[id]
		if !ok {
			slog.Debug("Ignoring out of range blacklist id", "id", id, "pool", len(docs))
			continue
		}
		if c.blacklist[key] || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
