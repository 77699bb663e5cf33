package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider speaks the OpenAI chat completions API. OpenRouter exposes
// the same API, so both are served by this type.
type OpenAIProvider struct {
	Name    string // label used in errors
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string // OpenRouter attribution, optional
	AppName string
	Client  *http.Client
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatReq struct {
	Model          string                `json:"model"`
	Messages       []openAIMsg           `json:"messages"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
}

type openAIChatResp struct {
	Choices []struct {
		Message openAIMsg `json:"message"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		Name:    "openai",
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	p := NewOpenAIProvider(baseURL, apiKey, model)
	p.Name = "openrouter"
	p.SiteURL = siteURL
	p.AppName = appName
	return p
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, nil)
}

// ChatJSON asks for a JSON object reply via response_format.
func (p *OpenAIProvider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, &openAIResponseFormat{Type: "json_object"})
}

func (p *OpenAIProvider) check() error {
	if p.Client == nil {
		return fmt.Errorf("%s: http client is nil", p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("%s: api key is required", p.Name)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("%s: model is required", p.Name)
	}
	return nil
}

func (p *OpenAIProvider) newRequest(ctx context.Context, body openAIChatReq) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}
	return req, nil
}

func toOpenAIMsgs(messages []Message) []openAIMsg {
	out := make([]openAIMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, openAIMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *OpenAIProvider) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", p.Name, msg)
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []Message, format *openAIResponseFormat) (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}

	req, err := p.newRequest(ctx, openAIChatReq{
		Model:          strings.TrimSpace(p.Model),
		Messages:       toOpenAIMsgs(messages),
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.statusError(resp)
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", p.Name)
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat streams assistant content chunks via SSE.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if err := p.check(); err != nil {
			errs <- err
			return
		}

		req, err := p.newRequest(ctx, openAIChatReq{
			Model:    strings.TrimSpace(p.Model),
			Messages: toOpenAIMsgs(messages),
			Stream:   true,
		})
		if err != nil {
			errs <- err
			return
		}

		// streaming can outlive the client timeout; ctx bounds it instead
		client := *p.Client
		client.Timeout = 0

		resp, err := client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- p.statusError(resp)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var decoded openAIStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New(decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			if delta := decoded.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}
