package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash-latest"

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// session splits messages into a chat session holding the history and the
// parts of the final user turn. System messages become the system instruction.
func (p *GeminiProvider) session(messages []Message, jsonMode bool) (*genai.ChatSession, []genai.Part, error) {
	model := p.client.GenerativeModel(p.model)
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	var system []string
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(history) == 0 {
		return nil, nil, errors.New("gemini: prompt history is empty")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return nil, nil, errors.New("gemini: last message is not from user")
	}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	return cs, last.Parts, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

func (p *GeminiProvider) send(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	cs, parts, err := p.session(messages, jsonMode)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.send(ctx, messages, false)
}

func (p *GeminiProvider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	return p.send(ctx, messages, true)
}

func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		cs, parts, err := p.session(messages, false)
		if err != nil {
			errs <- err
			return
		}
		it := cs.SendMessageStream(ctx, parts...)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("gemini: stream: %w", err)
				return
			}
			if text := responseText(resp); text != "" {
				select {
				case chunks <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return chunks, errs
}
