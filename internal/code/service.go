// Package code runs the optimize and score actions and keeps the user's
// saved code snippets.
package code

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
	"gorm.io/datatypes"
)

type Store interface {
	store.Snippets
	store.Activities
}

type Service struct {
	store     Store
	assistant *ai.Assistant
}

func NewService(st Store, assistant *ai.Assistant) *Service {
	return &Service{store: st, assistant: assistant}
}

// Request is the input of Optimize and Score. SnippetID, when set on a
// score request, receives the resulting score and feedback.
type Request struct {
	Code      string  `json:"code"`
	Language  string  `json:"language"`
	SnippetID *uint64 `json:"snippetId"`
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Code) == "" || strings.TrimSpace(r.Language) == "" {
		return fmt.Errorf("code and language are required: %w", store.ErrInvalid)
	}
	return nil
}

func (s *Service) logActivity(ctx context.Context, userID uint64, action models.ActionType, language string, start time.Time, success bool) {
	meta, _ := json.Marshal(map[string]any{
		"success":  success,
		"duration": time.Since(start).Milliseconds(),
	})
	lang := strings.ToLower(strings.TrimSpace(language))
	if _, err := s.store.CreateActivity(ctx, &models.ActivityLog{
		UserID:     userID,
		ActionType: action,
		Language:   &lang,
		Metadata:   datatypes.JSON(meta),
	}); err != nil {
		log.Printf("[code] log activity failed uid=%d action=%s err=%v", userID, action, err)
	}
}

func (s *Service) Optimize(ctx context.Context, userID uint64, req Request) (*ai.Optimization, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := s.assistant.Optimize(ctx, req.Code, req.Language)
	s.logActivity(ctx, userID, models.ActionOptimize, req.Language, start, err == nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Score(ctx context.Context, userID uint64, req Request) (*ai.ScoreResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	// check the target before spending a collaborator call on it
	if req.SnippetID != nil {
		if _, err := s.GetSnippet(ctx, userID, *req.SnippetID); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	out, err := s.assistant.Score(ctx, req.Code, req.Language)
	s.logActivity(ctx, userID, models.ActionScore, req.Language, start, err == nil)
	if err != nil {
		return nil, err
	}

	if req.SnippetID != nil {
		fb, err := json.Marshal(out.Feedback)
		if err != nil {
			return nil, err
		}
		feedback := datatypes.JSON(fb)
		if _, err := s.store.UpdateSnippet(ctx, *req.SnippetID, models.SnippetPatch{
			Score:    models.Some(out.Score),
			Feedback: &feedback,
		}); err != nil {
			return nil, fmt.Errorf("store score on snippet %d: %w", *req.SnippetID, err)
		}
	}
	return out, nil
}

// RunJob executes a queued optimize or score job and returns the JSON result.
func (s *Service) RunJob(ctx context.Context, j *models.Job) ([]byte, error) {
	req := Request{Code: j.Code, Language: j.Language, SnippetID: j.SnippetID}
	switch j.Kind {
	case models.JobOptimize:
		out, err := s.Optimize(ctx, j.UserID, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	case models.JobScore:
		out, err := s.Score(ctx, j.UserID, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("job kind %q: %w", j.Kind, store.ErrInvalid)
	}
}

// Snippets

func (s *Service) CreateSnippet(ctx context.Context, userID uint64, sn *models.CodeSnippet) (*models.CodeSnippet, error) {
	if strings.TrimSpace(sn.Title) == "" || strings.TrimSpace(sn.Code) == "" || strings.TrimSpace(sn.Language) == "" {
		return nil, fmt.Errorf("title, code, and language are required: %w", store.ErrInvalid)
	}
	sn.UserID = userID
	return s.store.CreateSnippet(ctx, sn)
}

// GetSnippet hides other users' snippets behind ErrNotFound.
func (s *Service) GetSnippet(ctx context.Context, userID, id uint64) (*models.CodeSnippet, error) {
	sn, err := s.store.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}
	if sn.UserID != userID {
		return nil, fmt.Errorf("snippet %d: %w", id, store.ErrNotFound)
	}
	return sn, nil
}

func (s *Service) ListSnippets(ctx context.Context, userID uint64) ([]models.CodeSnippet, error) {
	return s.store.ListSnippets(ctx, userID)
}

func (s *Service) DeleteSnippet(ctx context.Context, userID, id uint64) error {
	sn, err := s.store.GetSnippet(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sn.UserID != userID {
		return fmt.Errorf("snippet %d: %w", id, store.ErrNotFound)
	}
	return s.store.DeleteSnippet(ctx, id)
}
