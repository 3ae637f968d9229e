package ai

import "context"

// Message is one role-tagged turn handed to a completion provider.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider turns an ordered transcript into a single assistant reply.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
