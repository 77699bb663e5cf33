package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
)

const DefaultTimeout = 60 * time.Second

var defaultLearnMoreURLs = map[models.GoalCategory]string{
	models.GoalPerformance:   "https://web.dev/articles/optimize-vitals",
	models.GoalReadability:   "https://github.com/ryanmcdermott/clean-code-javascript",
	models.GoalBestPractices: "https://developer.mozilla.org/en-US/docs/Web/JavaScript/Guide",
	models.GoalErrorHandling: "https://www.joyent.com/node-js/production/design/errors",
}

const fallbackLearnMoreURL = "https://developer.mozilla.org/en-US/docs"

// DefaultScore is reported when the model omits a score.
const DefaultScore = 50

type Improvement struct {
	Category      models.GoalCategory `json:"category"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Severity      string              `json:"severity"` // high | medium | low
	LearnMoreURL  string              `json:"learn_more_url,omitempty"`
	OriginalCode  string              `json:"original_code,omitempty"`
	OptimizedCode string              `json:"optimized_code,omitempty"`
}

type Summary struct {
	TotalIssues         int `json:"total_issues"`
	PerformanceIssues   int `json:"performance_issues"`
	ReadabilityIssues   int `json:"readability_issues"`
	BestPracticesIssues int `json:"best_practices_issues"`
	ErrorHandlingIssues int `json:"error_handling_issues"`
}

type Optimization struct {
	Optimized    string        `json:"optimized"`
	Improvements []Improvement `json:"improvements"`
	Summary      Summary       `json:"summary"`
}

type Feedback struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

type ScoreResult struct {
	Score    int      `json:"score"`
	Feedback Feedback `json:"feedback"`
}

// Assistant runs chat, optimize and score requests against one provider.
// Each call is bounded by the assistant timeout.
type Assistant struct {
	provider Provider
	timeout  time.Duration
}

func NewAssistant(p Provider, timeout time.Duration) *Assistant {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Assistant{provider: p, timeout: timeout}
}

func (a *Assistant) Provider() Provider { return a.provider }

// Close releases the provider when it holds a client, as Gemini does.
func (a *Assistant) Close() error {
	if c, ok := a.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *Assistant) Chat(ctx context.Context, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Chat(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: chat: %w", ErrCollaborator, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "No response generated.", nil
	}
	return reply, nil
}

// Stream starts a streamed chat. The returned channels follow StreamProvider.
// Providers without streaming support yield the whole reply as one chunk.
func (a *Assistant) Stream(ctx context.Context, history []Message) (<-chan string, <-chan error, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	if sp, ok := a.provider.(StreamProvider); ok {
		chunks, errs := sp.StreamChat(ctx, history)
		return chunks, wrapErrs(errs), cancel
	}
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		reply, err := a.provider.Chat(ctx, history)
		if err != nil {
			errs <- fmt.Errorf("%w: chat: %w", ErrCollaborator, err)
			return
		}
		chunks <- reply
	}()
	return chunks, errs, cancel
}

func wrapErrs(in <-chan error) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		for err := range in {
			if err != nil {
				out <- fmt.Errorf("%w: stream: %w", ErrCollaborator, err)
			}
		}
	}()
	return out
}

func (a *Assistant) completeJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msgs := []Message{{Role: "user", Content: prompt}}
	if jp, ok := a.provider.(JSONProvider); ok {
		return jp.ChatJSON(ctx, msgs)
	}
	return a.provider.Chat(ctx, msgs)
}

// extractJSON trims prose or code fences around the outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func (a *Assistant) Optimize(ctx context.Context, code, language string) (*Optimization, error) {
	raw, err := a.completeJSON(ctx, optimizePrompt(code, language))
	if err != nil {
		return nil, fmt.Errorf("%w: optimize: %w", ErrCollaborator, err)
	}
	var out Optimization
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
			return nil, fmt.Errorf("%w: optimize: decode reply: %w", ErrCollaborator, err)
		}
	}
	normalizeOptimization(&out, code)
	return &out, nil
}

func normalizeOptimization(o *Optimization, original string) {
	if strings.TrimSpace(o.Optimized) == "" {
		o.Optimized = original
	}
	if o.Improvements == nil {
		o.Improvements = []Improvement{}
	}
	var sum Summary
	for i := range o.Improvements {
		imp := &o.Improvements[i]
		imp.Category = models.GoalCategory(strings.ToLower(strings.TrimSpace(string(imp.Category))))
		switch sev := strings.ToLower(strings.TrimSpace(imp.Severity)); sev {
		case "high", "medium", "low":
			imp.Severity = sev
		default:
			imp.Severity = "medium"
		}
		if imp.LearnMoreURL == "" {
			if u, ok := defaultLearnMoreURLs[imp.Category]; ok {
				imp.LearnMoreURL = u
			} else {
				imp.LearnMoreURL = fallbackLearnMoreURL
			}
		}

		sum.TotalIssues++
		switch imp.Category {
		case models.GoalPerformance:
			sum.PerformanceIssues++
		case models.GoalReadability:
			sum.ReadabilityIssues++
		case models.GoalBestPractices:
			sum.BestPracticesIssues++
		case models.GoalErrorHandling:
			sum.ErrorHandlingIssues++
		}
	}
	o.Summary = sum
}

type scoreReply struct {
	Score    *float64 `json:"score"`
	Feedback Feedback `json:"feedback"`
}

func (a *Assistant) Score(ctx context.Context, code, language string) (*ScoreResult, error) {
	raw, err := a.completeJSON(ctx, scorePrompt(code, language))
	if err != nil {
		return nil, fmt.Errorf("%w: score: %w", ErrCollaborator, err)
	}
	var r scoreReply
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(extractJSON(raw)), &r); err != nil {
			return nil, fmt.Errorf("%w: score: decode reply: %w", ErrCollaborator, err)
		}
	}

	out := &ScoreResult{Score: DefaultScore, Feedback: r.Feedback}
	if r.Score != nil {
		out.Score = clampScore(*r.Score)
	}
	if out.Feedback.Strengths == nil {
		out.Feedback.Strengths = []string{}
	}
	if out.Feedback.Weaknesses == nil {
		out.Feedback.Weaknesses = []string{}
	}
	if out.Feedback.Suggestions == nil {
		out.Feedback.Suggestions = []string{}
	}
	return out, nil
}

func clampScore(v float64) int {
	s := int(math.Round(v))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
