package transcript

import (
	"fmt"
	"strings"

	"github.com/docker/rulelawyer/pkg/session"
)

// Markdown renders a stored session, reasoning steps included.
func Markdown(sess *session.Session) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "# %s\n", sess.Title)

	for _, msg := range sess.Messages {
		switch msg.Role {
		case session.RoleUser:
			writeUserMessage(&builder, msg)
		case session.RoleAssistant:
			writeAssistantMessage(&builder, msg, true)
		}
	}

	return strings.TrimSpace(builder.String())
}

// PlainText renders only the questions and answers.
func PlainText(sess *session.Session) string {
	var builder strings.Builder

	for _, msg := range sess.Messages {
		switch msg.Role {
		case session.RoleUser:
			writeUserMessage(&builder, msg)
		case session.RoleAssistant:
			writeAssistantMessage(&builder, msg, false)
		}
	}

	return strings.TrimSpace(builder.String())
}

func writeUserMessage(builder *strings.Builder, msg session.Message) {
	fmt.Fprintf(builder, "\n## User\n\n%s\n", msg.Content)
}

func writeAssistantMessage(builder *strings.Builder, msg session.Message, withTrace bool) {
	builder.WriteString("\n## Assistant\n\n")

	if withTrace && len(msg.Trace) > 0 {
		builder.WriteString("### Reasoning\n\n")
		for _, step := range msg.Trace {
			writeStep(builder, step)
		}
		builder.WriteString("\n")
	}

	if msg.Content != "" {
		builder.WriteString(msg.Content)
		builder.WriteString("\n")
	}
}

func writeStep(builder *strings.Builder, step session.Step) {
	fmt.Fprintf(builder, "- **%s**", step.Kind)
	if step.Label != "" && step.Label != step.Kind {
		fmt.Fprintf(builder, " (%s)", step.Label)
	}
	if step.Content != "" {
		fmt.Fprintf(builder, ": %s", strings.ReplaceAll(step.Content, "\n", " "))
	}
	builder.WriteString("\n")
}
