package server

import (
	"time"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/library"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

// AskRequest is the body of an ask call and the client frame of the stream.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the outcome of one question. Error is set when the
// invocation failed; the trace then ends with an Error entry.
type AskResponse struct {
	Answer    string              `json:"answer"`
	FinalPool []agent.DocSnapshot `json:"final_pool"`
	Trace     []agent.TraceEntry  `json:"trace"`
	Error     string              `json:"error,omitempty"`
}

func newAskResponse(res *agent.Result) AskResponse {
	resp := AskResponse{
		Answer:    res.Answer,
		FinalPool: res.Pool,
		Trace:     res.Trace,
		Error:     res.Error(),
	}
	if resp.FinalPool == nil {
		resp.FinalPool = []agent.DocSnapshot{}
	}
	if resp.Trace == nil {
		resp.Trace = []agent.TraceEntry{}
	}
	return resp
}

// LibraryResponse is the listing view of a library.
type LibraryResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DocCount    int       `json:"doc_count"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

func newLibraryResponse(meta library.Metadata, active string) LibraryResponse {
	return LibraryResponse{
		ID:          meta.ID,
		Title:       meta.Title,
		Description: meta.Description,
		DocCount:    meta.DocCount,
		CreatedAt:   meta.CreatedAt,
		Active:      meta.ID == active,
	}
}

// PreviewDocument is one document of a library preview.
type PreviewDocument struct {
	Path    string `json:"path"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

func newPreview(docs []types.Document) []PreviewDocument {
	out := make([]PreviewDocument, len(docs))
	for i, d := range docs {
		out[i] = PreviewDocument{Path: d.Key(), Source: d.Title(), Content: d.Content}
	}
	return out
}

// Stream frame types.
const (
	FrameStep   = "step"
	FrameResult = "result"
	FrameError  = "error"
)

// Frame is one server message on the streaming endpoint.
type Frame struct {
	Type   string            `json:"type"`
	Step   *agent.TraceEntry `json:"step,omitempty"`
	Result *AskResponse      `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}
