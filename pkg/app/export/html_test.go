package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/rulelawyer/pkg/session"
)

func sampleSession() *session.Session {
	return &session.Session{
		ID:    "s1",
		Title: "Grappling: rules?",
		Messages: []session.Message{
			{Role: session.RoleUser, Content: "How does <b>grappling</b> work?"},
			{
				Role:    session.RoleAssistant,
				Content: "Make an **Athletics** check.",
				Trace:   []session.Step{{Kind: "Loop", Label: "Round 1", Content: "start retrieval: grapple"}},
			},
		},
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	out, err := Generate(sampleSession(), time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, out, "<title>Grappling: rules?</title>")
	assert.Contains(t, out, "Exported 2026-03-01 14:30")
	assert.Contains(t, out, "<strong>Athletics</strong>")
	assert.Contains(t, out, "Reasoning (1 steps)")
	assert.Contains(t, out, "start retrieval: grapple")
	assert.NotContains(t, out, "<b>grappling</b>")
}

func TestToFile(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "export")
	path, err := ToFile(sampleSession(), target)
	require.NoError(t, err)
	assert.Equal(t, target+".html", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")
}

func TestToFile_Empty(t *testing.T) {
	t.Parallel()

	_, err := ToFile(&session.Session{Title: "empty"}, "")
	require.ErrorContains(t, err, "session is empty")

	_, err = ToFile(nil, "")
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Grappling_-rules_", sanitizeFilename("Grappling: rules?"))
}
