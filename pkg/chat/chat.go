package chat

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one entry of a conversation sent to a model.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content}
}

// Split separates the system instructions from the conversation. Several
// system messages are joined with a blank line.
func Split(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == MessageRoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
