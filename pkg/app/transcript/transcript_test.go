package transcript

import (
	"testing"

	"gotest.tools/v3/golden"

	"github.com/docker/rulelawyer/pkg/session"
)

func grapplingSession() *session.Session {
	return &session.Session{
		ID:    "s1",
		Title: "How does grappling w",
		Messages: []session.Message{
			{Role: session.RoleUser, Content: "How does grappling work?"},
			{
				Role:    session.RoleAssistant,
				Content: "Make an Athletics check contested by the target.",
				Trace: []session.Step{
					{Kind: "Think", Label: "Query Refine", Content: "extracted keywords: grapple"},
					{Kind: "Loop", Label: "Round 1", Content: "start retrieval: grapple"},
					{Kind: "Decision", Label: "Evaluation", Content: "STOP"},
				},
			},
		},
	}
}

func TestSimple(t *testing.T) {
	sess := &session.Session{
		Title:    "New session 14:30",
		Messages: []session.Message{{Role: session.RoleUser, Content: "Hello"}},
	}
	golden.Assert(t, Markdown(sess), "simple.golden")
}

func TestMarkdownWithReasoning(t *testing.T) {
	golden.Assert(t, Markdown(grapplingSession()), "reasoning.golden")
}

func TestPlainText(t *testing.T) {
	golden.Assert(t, PlainText(grapplingSession()), "plain.golden")
}
