package agent

import (
	"github.com/docker/rulelawyer/pkg/rag/prompts"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

const snippetLength = 100

// DocSnapshot is the user-facing view of one document of the final pool.
type DocSnapshot struct {
	ID      int    `json:"id"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Result is the outcome of one invocation. On failure Err is set and the
// trace ends with an Error entry. Answer is empty unless the loop finished
// and only a later step, such as storing the exchange, failed.
type Result struct {
	Answer string        `json:"answer"`
	Pool   []DocSnapshot `json:"final_pool"`
	Trace  []TraceEntry  `json:"trace"`
	Err    error         `json:"-"`
}

// Error returns the failure message, or an empty string.
func (r *Result) Error() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func snapshots(docs []types.Document) []DocSnapshot {
	out := make([]DocSnapshot, len(docs))
	for i, d := range docs {
		out[i] = DocSnapshot{
			ID:      i,
			Path:    d.Key(),
			Snippet: prompts.Preview(d.Content, snippetLength),
			Source:  d.Title(),
		}
	}
	return out
}
