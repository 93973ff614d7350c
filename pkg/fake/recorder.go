// Package fake provides test doubles for the model and the retriever, and a
// VCR transport that records or replays model API traffic.
package fake

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

// NewRecorder returns a transport backed by the cassette at path. In record
// mode every request goes to the real API and is appended to the cassette; in
// replay mode requests are answered from the cassette and never leave the
// process. The cassette is written by Stop.
func NewRecorder(path string, record bool) (*recorder.Recorder, error) {
	mode := recorder.ModeReplayOnly
	if record {
		mode = recorder.ModeRecordOnly
	}

	rec, err := recorder.New(strings.TrimSuffix(path, ".yaml"),
		recorder.WithMode(mode),
		recorder.WithMatcher(DefaultMatcher),
		recorder.WithSkipRequestLatency(true),
		recorder.WithHook(RemoveHeadersHook, recorder.AfterCaptureHook),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create VCR recorder: %w", err)
	}
	return rec, nil
}

// credentialHeaders never reach a cassette.
var credentialHeaders = []string{
	"Authorization",
	"X-Api-Key",
	"Api-Key",
	"X-Goog-Api-Key",
	"Cookie",
	"Set-Cookie",
}

// RemoveHeadersHook strips credentials before saving. Other headers, such as
// Content-Type, are kept so replayed responses decode like live ones.
func RemoveHeadersHook(i *cassette.Interaction) error {
	i.Request.Headers = i.Request.Headers.Clone()
	i.Response.Headers = i.Response.Headers.Clone()
	for _, h := range credentialHeaders {
		i.Request.Headers.Del(h)
		i.Response.Headers.Del(h)
	}
	return nil
}

var headerMatcher = cassette.NewDefaultMatcher(cassette.WithIgnoreHeaders(credentialHeaders...))

// DefaultMatcher matches on method, URL and request body. Requests without a
// body also match on headers, credentials aside.
func DefaultMatcher(r *http.Request, i cassette.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return headerMatcher(r, i)
	}
	if r.Method != i.Method {
		return false
	}
	if r.URL.String() != i.URL {
		return false
	}

	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Failed to read request body for matching", "error", err)
		return false
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewBuffer(reqBody))

	return string(reqBody) == i.Body
}
