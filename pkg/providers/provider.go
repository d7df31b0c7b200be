package providers

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the boundary to the language model: an ordered message list
// in, text out. Implementations live in subpackages.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	GetDefaultModel() string
}

func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
