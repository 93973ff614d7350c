package agent

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/rulelawyer/pkg/rag/decision"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
)

type state int

const (
	stateInit state = iota
	stateRound
	stateDeciding
	stateContinuing
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateRound:
		return "round"
	case stateDeciding:
		return "deciding"
	case stateContinuing:
		return "continuing"
	case stateStopped:
		return "stopped"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// controller drives one invocation through its states. It is discarded when
// the invocation ends; only the agent's pool outlives it.
type controller struct {
	agent   *Agent
	rec     *traceRecorder
	input   string
	history string

	state     state
	query     string
	round     int
	blacklist map[string]bool
	verdict   decision.Decision
}

func (c *controller) run(ctx context.Context) (string, error) {
	for c.state != stateStopped {
		next, err := c.step(ctx)
		if err != nil {
			return "", err
		}
		c.state = next
	}
	return c.synthesize(ctx)
}

func (c *controller) step(ctx context.Context) (state, error) {
	switch c.state {
	case stateInit:
		q, err := c.initialQuery(ctx)
		if err != nil {
			return c.state, err
		}
		c.query = q
		return stateRound, nil
	case stateRound:
		if err := c.runRound(ctx); err != nil {
			return c.state, err
		}
		return stateDeciding, nil
	case stateDeciding:
		return c.decide(ctx)
	case stateContinuing:
		c.query = c.verdict.NextQuery
		return stateRound, nil
	default:
		return c.state, fmt.Errorf("unexpected controller state %s", c.state)
	}
}

// runRound retrieves for the current query, absorbs the results and purges
// whatever the model judges irrelevant.
func (c *controller) runRound(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.round++

	ctx, span := c.agent.startSpan(ctx, "agent.round", trace.WithAttributes(
		attribute.Int("round", c.round),
		attribute.String("query", c.query),
	))
	defer span.End()

	c.rec.record(KindLoop, fmt.Sprintf("Round %d", c.round), "start retrieval: "+c.query)

	docs, err := c.agent.retriever.Search(ctx, c.query, c.blacklist, c.agent.config.TopK)
	if err != nil {
		return fmt.Errorf("retrieving %q: %w", c.query, err)
	}

	p := c.agent.pool
	before := p.Len()
	p.Absorb(docs)
	c.rec.record(KindSystem, "Pool Update", fmt.Sprintf("Docs: %d -> %d", before, p.Len()))

	bad, err := c.judge(ctx, p.Documents())
	if err != nil {
		return err
	}
	if len(bad) == 0 {
		return nil
	}
	for _, key := range bad {
		c.blacklist[key] = true
	}
	p.ApplyBlacklist(c.blacklist)
	c.rec.record(KindAction, "Blacklist", fmt.Sprintf("blacklisted %d documents", len(bad)))
	return nil
}

// decide asks whether the cleaned pool suffices. The loop only continues on a
// NEXT verdict with a fresh query and rounds to spare.
func (c *controller) decide(ctx context.Context) (state, error) {
	rendered, _ := prompts.RenderDocuments(c.agent.pool.Documents())
	p := prompts.Evaluation(c.input, rendered)
	raw, err := c.agent.complete(ctx, p.Name, p.Messages())
	if err != nil {
		return c.state, fmt.Errorf("evaluating document pool: %w", err)
	}

	c.verdict = decision.ParseDecision(raw)
	c.rec.record(KindDecision, "Evaluation", c.verdict.String())

	if c.round >= c.agent.config.MaxRounds || !c.verdict.Continue(c.query) {
		return stateStopped, nil
	}
	return stateContinuing, nil
}
