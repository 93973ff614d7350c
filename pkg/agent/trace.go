package agent

import (
	"log/slog"
	"time"
)

// TraceKind classifies a trace entry for rendering.
type TraceKind string

const (
	KindThink    TraceKind = "Think"
	KindLoop     TraceKind = "Loop"
	KindSystem   TraceKind = "System"
	KindAction   TraceKind = "Action"
	KindDecision TraceKind = "Decision"
	KindError    TraceKind = "Error"
)

// TraceEntry is one observable step of an invocation.
type TraceEntry struct {
	Kind      TraceKind `json:"kind"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// traceRecorder is append-only and lives for a single invocation.
type traceRecorder struct {
	entries []TraceEntry
	onStep  func(TraceEntry)
	now     func() time.Time
}

func newTraceRecorder(onStep func(TraceEntry)) *traceRecorder {
	return &traceRecorder{
		onStep: onStep,
		now:    time.Now,
	}
}

func (r *traceRecorder) record(kind TraceKind, label, content string) {
	entry := TraceEntry{
		Kind:      kind,
		Label:     label,
		Content:   content,
		Timestamp: r.now(),
	}
	r.entries = append(r.entries, entry)

	slog.Debug("Agent step", "kind", kind, "label", label, "content", content)
	if r.onStep != nil {
		r.onStep(entry)
	}
}

// Entries returns a copy of the recorded trace.
func (r *traceRecorder) Entries() []TraceEntry {
	out := make([]TraceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
