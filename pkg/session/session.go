package session

import (
	"strings"
	"time"
	"unicode/utf8"
)

const titleLength = 20

// Role of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Step is the stored form of one agent trace entry.
type Step struct {
	Kind    string `json:"kind"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content"`
}

// Message is one utterance of a conversation. Assistant messages carry the
// trace of the invocation that produced them.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Trace     []Step    `json:"trace,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a stored conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

func defaultTitle(now time.Time) string {
	return "New session " + now.Format("15:04")
}

// titleFrom derives a session title from the first user message.
func titleFrom(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > titleLength {
		content = string([]rune(content)[:titleLength])
	}
	return strings.TrimSpace(content)
}
