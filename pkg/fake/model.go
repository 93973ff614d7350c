package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/rulelawyer/pkg/chat"
)

// Reply is one scripted model answer.
type Reply struct {
	Text string
	Err  error
}

// Model answers calls with scripted replies, in order, and records every
// conversation it was sent. A call beyond the script fails.
type Model struct {
	mu      sync.Mutex
	replies []Reply
	calls   [][]chat.Message
	block   chan struct{}
}

func NewModel(replies ...string) *Model {
	m := &Model{}
	for _, r := range replies {
		m.replies = append(m.replies, Reply{Text: r})
	}
	return m
}

// Then appends a reply to the script.
func (m *Model) Then(text string) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Text: text})
	return m
}

// Fail appends a failing call to the script.
func (m *Model) Fail(err error) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Err: err})
	return m
}

// BlockUntil makes every call wait until release is closed or the context ends.
func (m *Model) BlockUntil(release chan struct{}) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = release
	return m
}

func (m *Model) ID() string {
	return "fake/scripted"
}

func (m *Model) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	m.mu.Lock()
	block := m.block
	m.calls = append(m.calls, messages)
	n := len(m.calls)
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.replies) {
		return "", fmt.Errorf("unexpected model call #%d", n)
	}
	r := m.replies[n-1]
	return r.Text, r.Err
}

// Calls returns the conversations received so far.
func (m *Model) Calls() [][]chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]chat.Message(nil), m.calls...)
}

// CallCount returns how many calls were made.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// UserPrompt returns the user message of call i.
func (m *Model) UserPrompt(i int) string {
	calls := m.Calls()
	if i >= len(calls) {
		return ""
	}
	var parts []string
	for _, msg := range calls[i] {
		if msg.Role == chat.MessageRoleUser {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}
