package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/devassist/internal/models"
)

type fakeProvider struct {
	reply string
	err   error
	last  []Message
	json  bool
}

func (p *fakeProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	p.last = append([]Message(nil), messages...)
	return p.reply, p.err
}

type fakeJSONProvider struct{ fakeProvider }

func (p *fakeJSONProvider) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	p.json = true
	return p.Chat(ctx, messages)
}

type slowProvider struct{}

func (slowProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOptimize_DefaultsURLsAndRecountsSummary(t *testing.T) {
	p := &fakeJSONProvider{fakeProvider{reply: "```json\n" + `{
		"optimized": "const x = 1;",
		"improvements": [
			{"category": "performance", "title": "a", "description": "d", "severity": "HIGH"},
			{"category": "readability", "title": "b", "description": "d", "severity": "low", "learn_more_url": "https://example.com"},
			{"category": "other", "title": "c", "description": "d", "severity": "weird"}
		],
		"summary": {"total_issues": 99}
	}` + "\n```"}}
	a := NewAssistant(p, time.Second)

	out, err := a.Optimize(context.Background(), "var x = 1", "javascript")
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !p.json {
		t.Fatalf("expected JSON mode to be used")
	}
	if !strings.Contains(p.last[0].Content, "var x = 1") || !strings.Contains(p.last[0].Content, "javascript") {
		t.Fatalf("prompt missing code or language")
	}
	if out.Optimized != "const x = 1;" {
		t.Fatalf("optimized: %q", out.Optimized)
	}
	imp := out.Improvements
	if imp[0].LearnMoreURL != defaultLearnMoreURLs[models.GoalPerformance] || imp[0].Severity != "high" {
		t.Fatalf("improvement 0: %+v", imp[0])
	}
	if imp[1].LearnMoreURL != "https://example.com" {
		t.Fatalf("explicit url overwritten: %q", imp[1].LearnMoreURL)
	}
	if imp[2].LearnMoreURL != fallbackLearnMoreURL || imp[2].Severity != "medium" {
		t.Fatalf("improvement 2: %+v", imp[2])
	}
	want := Summary{TotalIssues: 3, PerformanceIssues: 1, ReadabilityIssues: 1}
	if out.Summary != want {
		t.Fatalf("summary: %+v, want %+v", out.Summary, want)
	}
}

func TestOptimize_EmptyReplyKeepsOriginal(t *testing.T) {
	a := NewAssistant(EchoProvider{}, time.Second)
	out, err := a.Optimize(context.Background(), "x := 1", "go")
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if out.Optimized != "x := 1" || out.Improvements == nil || out.Summary.TotalIssues != 0 {
		t.Fatalf("unexpected fallback: %+v", out)
	}
}

func TestScore_ClampsAndDefaults(t *testing.T) {
	cases := []struct {
		reply string
		want  int
	}{
		{`{"score": 87.6, "feedback": {"strengths": ["s"]}}`, 88},
		{`{"score": 140}`, 100},
		{`{"score": -3}`, 0},
		{`{}`, DefaultScore},
	}
	for _, tc := range cases {
		a := NewAssistant(&fakeProvider{reply: tc.reply}, time.Second)
		out, err := a.Score(context.Background(), "code", "go")
		if err != nil {
			t.Fatalf("score %s: %v", tc.reply, err)
		}
		if out.Score != tc.want {
			t.Fatalf("score %s: got %d want %d", tc.reply, out.Score, tc.want)
		}
		if out.Feedback.Weaknesses == nil || out.Feedback.Suggestions == nil {
			t.Fatalf("feedback lists must not be nil")
		}
	}
}

func TestAssistant_WrapsFailures(t *testing.T) {
	a := NewAssistant(&fakeProvider{err: errors.New("network down")}, time.Second)
	if _, err := a.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("chat: expected ErrCollaborator, got %v", err)
	}
	if _, err := a.Optimize(context.Background(), "x", "go"); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("optimize: expected ErrCollaborator, got %v", err)
	}

	bad := NewAssistant(&fakeProvider{reply: "not json at all"}, time.Second)
	if _, err := bad.Score(context.Background(), "x", "go"); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("score decode: expected ErrCollaborator, got %v", err)
	}
}

func TestAssistant_Timeout(t *testing.T) {
	a := NewAssistant(slowProvider{}, 20*time.Millisecond)
	_, err := a.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrCollaborator) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestAssistant_StreamFallsBackToChat(t *testing.T) {
	a := NewAssistant(&fakeProvider{reply: "whole reply"}, time.Second)
	chunks, errs, cancel := a.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	defer cancel()

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream: %v", err)
	}
	if b.String() != "whole reply" {
		t.Fatalf("got %q", b.String())
	}
}

func TestEchoProvider_Stream(t *testing.T) {
	a := NewAssistant(EchoProvider{}, time.Second)
	chunks, errs, cancel := a.Stream(context.Background(), []Message{{Role: "user", Content: "hello there"}})
	defer cancel()

	var b strings.Builder
	n := 0
	for c := range chunks {
		b.WriteString(c)
		n++
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream: %v", err)
	}
	if b.String() != "Echo: hello there" || n < 2 {
		t.Fatalf("got %q in %d chunks", b.String(), n)
	}
}
