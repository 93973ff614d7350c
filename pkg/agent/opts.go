package agent

import (
	"go.opentelemetry.io/otel/trace"
)

type Opt func(a *Agent)

func WithModel(model Model) Opt {
	return func(a *Agent) {
		a.model = model
	}
}

func WithRetriever(retriever Retriever) Opt {
	return func(a *Agent) {
		a.retriever = retriever
	}
}

// WithConfig overrides the loop parameters. Zero fields keep their defaults.
func WithConfig(cfg Config) Opt {
	return func(a *Agent) {
		a.config = cfg.withDefaults()
	}
}

// WithTracer enables OpenTelemetry spans for invocations, rounds and model
// calls.
func WithTracer(tracer trace.Tracer) Opt {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// WithOnStep registers a callback invoked synchronously for every trace entry
// as it is recorded.
func WithOnStep(fn func(TraceEntry)) Opt {
	return func(a *Agent) {
		a.onStep = fn
	}
}
