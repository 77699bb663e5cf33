package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   string      `json:"format,omitempty"`
}

// one reply object, or one line of a streamed reply
type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Done    bool      `json:"done"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, "")
}

// ChatJSON uses Ollama's format=json mode.
func (p *OllamaProvider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, "json")
}

func (p *OllamaProvider) do(ctx context.Context, client *http.Client, body ollamaChatReq) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return resp, nil
}

func toOllamaMsgs(messages []Message) []ollamaMsg {
	out := make([]ollamaMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *OllamaProvider) complete(ctx context.Context, messages []Message, format string) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}

	resp, err := p.do(ctx, p.Client, ollamaChatReq{
		Model:    p.Model,
		Messages: toOllamaMsgs(messages),
		Format:   format,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Message.Content, nil
}

// StreamChat streams assistant content chunks from Ollama's NDJSON stream.
func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.Client == nil {
			errs <- errors.New("ollama: http client is nil")
			return
		}

		client := *p.Client
		client.Timeout = 0

		resp, err := p.do(ctx, &client, ollamaChatReq{
			Model:    p.Model,
			Messages: toOllamaMsgs(messages),
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		// long JSON lines
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var decoded ollamaChatResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != "" {
				errs <- errors.New(decoded.Error)
				return
			}

			if decoded.Message.Content != "" {
				select {
				case chunks <- decoded.Message.Content:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if decoded.Done {
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
