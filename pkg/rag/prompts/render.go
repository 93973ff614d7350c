package prompts

import (
	"fmt"
	"strings"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

const (
	// EmptyPool is rendered in place of the document list when there is nothing to show.
	EmptyPool = "The document pool is empty."
	// NoHistory is rendered when the conversation has no completed turns.
	NoHistory = "none"

	previewRunes = 250
)

// RenderDocuments formats documents as an indexed list for the model and
// returns the index assignment. Indices follow the order of docs, so the same
// slice must be used to resolve any index the model answers with.
func RenderDocuments(docs []types.Document) (string, map[int]string) {
	ids := make(map[int]string, len(docs))
	if len(docs) == 0 {
		return EmptyPool, ids
	}

	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteByte('\n')
		}
		path := doc.Key()
		if path == "" {
			path = "unknown"
		}
		fmt.Fprintf(&b, "[ID: %d] path: %s\n      content: %s...", i, path, Preview(doc.Content, previewRunes))
		ids[i] = doc.Key()
	}
	return b.String(), ids
}

// Preview returns the first n runes of s on a single line.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}

// RenderHistory formats completed turns as alternating User/AI lines.
func RenderHistory(turns []types.Turn) string {
	if len(turns) == 0 {
		return NoHistory
	}

	lines := make([]string, 0, 2*len(turns))
	for _, t := range turns {
		lines = append(lines, "User: "+t.User, "AI: "+t.Assistant)
	}
	return strings.Join(lines, "\n")
}
