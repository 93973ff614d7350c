// Package mcp exposes the rules assistant as Model Context Protocol tools.
package mcp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
	"github.com/docker/rulelawyer/pkg/rag/types"
	"github.com/docker/rulelawyer/pkg/version"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 20
	searchSnippetLength  = 300
)

// Backend answers questions and runs plain retrievals. *app.App implements it.
type Backend interface {
	Ask(ctx context.Context, question string) (*agent.Result, error)
	Search(ctx context.Context, query string, topK int) ([]types.Document, error)
}

type AskInput struct {
	Question string `json:"question" jsonschema:"the rules question to answer"`
}

type Source struct {
	Path    string `json:"path" jsonschema:"unique path of the rules document"`
	Source  string `json:"source,omitempty" jsonschema:"human readable label of the document"`
	Snippet string `json:"snippet" jsonschema:"beginning of the document content"`
}

type AskOutput struct {
	Answer  string   `json:"answer" jsonschema:"the synthesized answer"`
	Sources []Source `json:"sources" jsonschema:"documents the answer was built from"`
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"keywords to look up in the rules library"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of documents to return"`
}

type SearchOutput struct {
	Documents []Source `json:"documents" jsonschema:"matching documents, best first"`
}

// NewServer builds an MCP server with the ask_rules and search_rules tools.
func NewServer(backend Backend) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "rulelawyer",
		Version: version.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_rules",
		Description: "Answer a tabletop rules question from the active rules library, with the documents used as sources.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, askHandler(backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_rules",
		Description: "Look up rules documents by keywords without asking the model.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, searchHandler(backend))

	return server
}

func askHandler(backend Backend) func(context.Context, *mcp.CallToolRequest, AskInput) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
		slog.Debug("MCP tool called", "tool", "ask_rules", "question", input.Question)

		if input.Question == "" {
			return nil, AskOutput{}, errors.New("question is empty")
		}

		res, err := backend.Ask(ctx, input.Question)
		if err != nil {
			slog.Error("Question failed", "error", err)
			return nil, AskOutput{}, fmt.Errorf("answering question: %w", err)
		}

		out := AskOutput{
			Answer:  cmp.Or(res.Answer, "No answer was produced."),
			Sources: make([]Source, len(res.Pool)),
		}
		for i, doc := range res.Pool {
			out.Sources[i] = Source{Path: doc.Path, Source: doc.Source, Snippet: doc.Snippet}
		}
		return nil, out, nil
	}
}

func searchHandler(backend Backend) func(context.Context, *mcp.CallToolRequest, SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		slog.Debug("MCP tool called", "tool", "search_rules", "query", input.Query, "top_k", input.TopK)

		topK := input.TopK
		if topK <= 0 {
			topK = defaultSearchResults
		}
		topK = min(topK, maxSearchResults)

		docs, err := backend.Search(ctx, input.Query, topK)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("searching library: %w", err)
		}

		out := SearchOutput{Documents: make([]Source, len(docs))}
		for i, d := range docs {
			out.Documents[i] = Source{
				Path:    d.Key(),
				Source:  d.Title(),
				Snippet: prompts.Preview(d.Content, searchSnippetLength),
			}
		}
		return nil, out, nil
	}
}

// ServeStdio runs the server over stdin/stdout until ctx is done.
func ServeStdio(ctx context.Context, backend Backend) error {
	slog.Debug("MCP server starting with stdio transport")

	if err := NewServer(backend).Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// ServeHTTP runs a streamable HTTP MCP server on ln until ctx is done.
func ServeHTTP(ctx context.Context, backend Backend, ln net.Listener) error {
	slog.Debug("Starting HTTP MCP server", "addr", ln.Addr())

	server := NewServer(backend)
	httpServer := &http.Server{
		Handler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return httpServer.Shutdown(context.WithoutCancel(ctx))
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
