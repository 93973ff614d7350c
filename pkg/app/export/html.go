// Package export writes stored sessions as standalone HTML pages.
package export

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/docker/rulelawyer/pkg/session"
)

// markdown is the goldmark Markdown parser with common extensions.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM, // GitHub Flavored Markdown (tables, strikethrough, etc.)
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
.meta { color: #666; font-size: .9rem; }
.message { border-radius: .5rem; padding: .75rem 1rem; margin: 1rem 0; }
.user { background: #eef3ff; }
.assistant { background: #f6f6f6; }
.role { font-weight: 600; margin-bottom: .25rem; }
details { font-size: .9rem; color: #444; margin-bottom: .5rem; }
.step-kind { font-weight: 600; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Exported {{.Exported}} · {{len .Messages}} messages</p>
{{range .Messages}}<div class="message {{.Role}}">
<div class="role">{{.RoleLabel}}</div>
{{if .Steps}}<details><summary>Reasoning ({{len .Steps}} steps)</summary><ul>
{{range .Steps}}<li><span class="step-kind">{{.Kind}}</span>{{if .Label}} ({{.Label}}){{end}}: {{.Content}}</li>
{{end}}</ul></details>
{{end}}{{.Body}}
</div>
{{end}}</body>
</html>
`

var page = template.Must(template.New("session").Parse(pageTemplate))

type messageView struct {
	Role      string
	RoleLabel string
	Steps     []session.Step
	Body      template.HTML
}

type pageView struct {
	Title    string
	Exported string
	Messages []messageView
}

// Generate renders a session as an HTML document. Message text is treated as
// markdown; raw HTML inside it is escaped.
func Generate(sess *session.Session, now time.Time) (string, error) {
	view := pageView{
		Title:    sess.Title,
		Exported: now.Format("2006-01-02 15:04"),
	}
	for _, msg := range sess.Messages {
		var body bytes.Buffer
		if err := markdown.Convert([]byte(msg.Content), &body); err != nil {
			return "", fmt.Errorf("rendering message: %w", err)
		}
		label := "You"
		if msg.Role == session.RoleAssistant {
			label = "Assistant"
		}
		view.Messages = append(view.Messages, messageView{
			Role:      string(msg.Role),
			RoleLabel: label,
			Steps:     msg.Trace,
			Body:      template.HTML(body.String()), //nolint:gosec // goldmark escapes raw HTML without WithUnsafe
		})
	}

	var out bytes.Buffer
	if err := page.Execute(&out, view); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ToFile exports a session to an HTML file.
// If filename is empty, a default name based on the title and timestamp is used.
// Returns the absolute path of the created file.
func ToFile(sess *session.Session, filename string) (string, error) {
	if sess == nil {
		return "", fmt.Errorf("no session to export")
	}
	if len(sess.Messages) == 0 {
		return "", fmt.Errorf("session is empty")
	}

	now := time.Now()
	if filename == "" {
		title := sess.Title
		if title == "" {
			title = "rulelawyer-session"
		}
		filename = fmt.Sprintf("%s-%s.html", sanitizeFilename(title), now.Format("2006-01-02-150405"))
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".html") {
		filename += ".html"
	}

	content, err := Generate(sess, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate HTML: %w", err)
	}
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return filename, nil
	}
	return absPath, nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	name = replacer.Replace(name)
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}
	return name
}
