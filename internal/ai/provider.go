// Package ai talks to chat-completion backends and turns their replies into
// chat answers, code optimizations and code scores.
package ai

import (
	"context"
	"errors"
)

// ErrCollaborator wraps every failure of the model backend, including
// replies that cannot be decoded.
var ErrCollaborator = errors.New("ai collaborator failed")

type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// JSONProvider is implemented by providers that can force a JSON object reply.
type JSONProvider interface {
	ChatJSON(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when the stream ends; at most one error is sent.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
