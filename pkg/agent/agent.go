// Package agent implements the iterative retrieval loop: it refines the
// question into a search query, gathers documents over a bounded number of
// rounds while pruning irrelevant ones, and synthesizes an answer from what is
// left in the document pool.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/rag/pool"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// ErrBusy is returned when Invoke is called while another invocation on the
// same agent is still running.
var ErrBusy = errors.New("agent is busy with another question")

// Model turns a fully formed prompt into free text.
type Model interface {
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error)
}

// Retriever returns up to topK documents relevant to query, never one whose
// key is in excluded.
type Retriever interface {
	Search(ctx context.Context, query string, excluded map[string]bool, topK int) ([]types.Document, error)
}

// Config bounds the loop.
type Config struct {
	TopK                int `json:"top_k"`
	PoolCapacity        int `json:"pool_capacity"`
	MaxRounds           int `json:"max_rounds"`
	ShortQueryThreshold int `json:"short_query_threshold"`
	HistoryLimit        int `json:"history_limit"`
}

func DefaultConfig() Config {
	return Config{
		TopK:                10,
		PoolCapacity:        pool.DefaultCapacity,
		MaxRounds:           2,
		ShortQueryThreshold: 30,
		HistoryLimit:        5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.PoolCapacity <= 0 {
		c.PoolCapacity = d.PoolCapacity
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.ShortQueryThreshold <= 0 {
		c.ShortQueryThreshold = d.ShortQueryThreshold
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	return c
}

// Agent keeps the document pool and the conversation history across
// invocations. Invocations are serialized; a concurrent one fails with ErrBusy.
type Agent struct {
	model     Model
	retriever Retriever
	config    Config
	tracer    trace.Tracer
	onStep    func(TraceEntry)

	mu      sync.Mutex
	pool    *pool.Pool
	history *history
}

// New creates an agent. A model and a retriever are required.
func New(opts ...Opt) (*Agent, error) {
	a := &Agent{
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.model == nil {
		return nil, errors.New("agent: a model is required")
	}
	if a.retriever == nil {
		return nil, errors.New("agent: a retriever is required")
	}

	a.pool = pool.New(a.config.PoolCapacity)
	a.history = newHistory(a.config.HistoryLimit)
	return a, nil
}

func (a *Agent) Config() Config {
	return a.config
}

// Invoke answers one question. On failure it returns both the error and a
// Result carrying it, with the pool restored to its state before the call and
// the history left untouched. A call made while another one runs is rejected
// with ErrBusy and a Result whose trace holds only the Error entry.
func (a *Agent) Invoke(ctx context.Context, question string) (*Result, error) {
	if !a.mu.TryLock() {
		return &Result{
			Trace: []TraceEntry{{Kind: KindError, Label: "Error", Content: ErrBusy.Error(), Timestamp: time.Now()}},
			Err:   ErrBusy,
		}, ErrBusy
	}
	defer a.mu.Unlock()

	ctx, span := a.startSpan(ctx, "agent.invoke", trace.WithAttributes(
		attribute.Int("question.length", len(question)),
		attribute.Int("pool.size", a.pool.Len()),
	))
	defer span.End()

	rec := newTraceRecorder(a.onStep)
	saved := a.pool.Clone()

	c := &controller{
		agent:     a,
		rec:       rec,
		input:     question,
		history:   a.history.Render(),
		blacklist: map[string]bool{},
	}
	answer, err := c.run(ctx)
	if err != nil {
		a.pool = saved
		rec.record(KindError, "Error", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation failed")
		slog.Error("Invocation failed", "rounds", c.round, "error", err)

		return &Result{
			Pool:  snapshots(a.pool.Documents()),
			Trace: rec.Entries(),
			Err:   err,
		}, err
	}

	a.history.Append(types.Turn{User: question, Assistant: answer})
	span.SetAttributes(attribute.Int("rounds", c.round), attribute.Int("blacklisted", len(c.blacklist)))

	return &Result{
		Answer: answer,
		Pool:   snapshots(a.pool.Documents()),
		Trace:  rec.Entries(),
	}, nil
}

// Reset clears the document pool and the conversation history.
func (a *Agent) Reset() error {
	if !a.mu.TryLock() {
		return ErrBusy
	}
	defer a.mu.Unlock()

	a.pool.Reset()
	a.history.Reset()
	slog.Debug("Agent state reset")
	return nil
}

// History returns a copy of the remembered turns, oldest first.
func (a *Agent) History() []types.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Turns()
}

// SetHistory seeds the conversation memory, e.g. when resuming a stored
// session. Only the most recent turns within the limit are kept.
func (a *Agent) SetHistory(turns []types.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history.Reset()
	for _, t := range turns {
		a.history.Append(t)
	}
}

func (a *Agent) complete(ctx context.Context, name string, messages []chat.Message) (string, error) {
	ctx, span := a.startSpan(ctx, "agent.model", trace.WithAttributes(attribute.String("prompt", name)))
	defer span.End()

	out, err := a.model.CreateChatCompletion(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return "", err
	}
	return out, nil
}

func (a *Agent) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if a.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return a.tracer.Start(ctx, name, opts...)
}
