package ai

import (
	"context"
	"strings"
)

// EchoProvider answers without any network access. Chat repeats the last
// user message; ChatJSON returns an empty object so callers fall back to
// their defaults. It is used when no model backend is configured.
type EchoProvider struct{}

func (EchoProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Echo: " + lastUserContent(messages), nil
}

func (EchoProvider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "{}", nil
}

func (e EchoProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		reply, err := e.Chat(ctx, messages)
		if err != nil {
			errs <- err
			return
		}
		for _, w := range strings.SplitAfter(reply, " ") {
			select {
			case chunks <- w:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
