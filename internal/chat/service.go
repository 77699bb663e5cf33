package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
	"gorm.io/datatypes"
)

const titleMaxRunes = 50

// Store is the part of store.Store the chat service needs.
type Store interface {
	store.Conversations
	store.Messages
	store.Activities
}

type Service struct {
	store             Store
	assistant         *ai.Assistant
	contextWindowSize int
}

func NewService(st Store, assistant *ai.Assistant, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{store: st, assistant: assistant, contextWindowSize: contextWindowSize}
}

// Reply is the AI answer to one user message.
type Reply struct {
	ID             uint64    `json:"id"`
	Content        string    `json:"content"`
	ConversationID uint64    `json:"conversationId"`
	Timestamp      time.Time `json:"timestamp"`
}

// TitleFrom derives a conversation title from the first message.
func TitleFrom(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	r := []rune(content)
	return string(r[:titleMaxRunes])
}

func (s *Service) CreateConversation(ctx context.Context, userID uint64, title string) (*models.Conversation, error) {
	return s.store.CreateConversation(ctx, &models.Conversation{UserID: userID, Title: strings.TrimSpace(title)})
}

// GetConversation hides conversations owned by other users behind ErrNotFound.
func (s *Service) GetConversation(ctx context.Context, userID, id uint64) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation %d: %w", id, store.ErrNotFound)
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, userID uint64) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, id uint64) error {
	if _, err := s.GetConversation(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, id)
}

func (s *Service) ListMessages(ctx context.Context, userID, conversationID uint64) ([]models.ChatMessage, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// begin validates content, resolves or creates the conversation, stores the
// user message and returns the provider history ending with it.
func (s *Service) begin(ctx context.Context, userID uint64, content string, conversationID *uint64) (*models.Conversation, []ai.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, fmt.Errorf("content is required: %w", store.ErrInvalid)
	}

	var conv *models.Conversation
	var err error
	if conversationID == nil {
		conv, err = s.CreateConversation(ctx, userID, TitleFrom(content))
	} else {
		conv, err = s.GetConversation(ctx, userID, *conversationID)
	}
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.store.CreateMessage(ctx, &models.ChatMessage{
		UserID:         userID,
		ConversationID: conv.ID,
		Content:        content,
	}); err != nil {
		return nil, nil, err
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(msgs) > s.contextWindowSize {
		msgs = msgs[len(msgs)-s.contextWindowSize:]
	}
	history := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.IsAI {
			role = "assistant"
		}
		history = append(history, ai.Message{Role: role, Content: m.Content})
	}
	return conv, history, nil
}

// finish stores the AI message and bumps the conversation.
func (s *Service) finish(ctx context.Context, userID uint64, conv *models.Conversation, reply string) (*Reply, error) {
	msg, err := s.store.CreateMessage(ctx, &models.ChatMessage{
		UserID:         userID,
		ConversationID: conv.ID,
		Content:        reply,
		IsAI:           true,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateConversation(ctx, conv.ID, models.ConversationPatch{}); err != nil {
		return nil, err
	}
	return &Reply{ID: msg.ID, Content: msg.Content, ConversationID: conv.ID, Timestamp: msg.CreatedAt}, nil
}

func (s *Service) logActivity(ctx context.Context, userID uint64, start time.Time, success bool) {
	meta, _ := json.Marshal(map[string]any{
		"success":  success,
		"duration": time.Since(start).Milliseconds(),
	})
	if _, err := s.store.CreateActivity(ctx, &models.ActivityLog{
		UserID:     userID,
		ActionType: models.ActionChat,
		Metadata:   datatypes.JSON(meta),
	}); err != nil {
		log.Printf("[chat] log activity failed uid=%d err=%v", userID, err)
	}
}

// SendMessage appends content to the conversation (a new one when
// conversationID is nil), asks the assistant and stores its reply.
// On assistant failure the user message stays and the error wraps
// ai.ErrCollaborator.
func (s *Service) SendMessage(ctx context.Context, userID uint64, content string, conversationID *uint64) (*Reply, error) {
	start := time.Now()

	conv, history, err := s.begin(ctx, userID, content, conversationID)
	if err != nil {
		return nil, err
	}

	reply, err := s.assistant.Chat(ctx, history)
	if err != nil {
		s.logActivity(ctx, userID, start, false)
		return nil, err
	}

	out, err := s.finish(ctx, userID, conv, reply)
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, userID, start, true)
	return out, nil
}

// StreamEvent is one step of a streamed reply: a Delta chunk, the final
// Reply, or an Err. Exactly one of Reply or Err ends the stream.
type StreamEvent struct {
	Delta string
	Reply *Reply
	Err   error
}

// SendMessageStream is SendMessage with the reply delivered in chunks.
// The returned channel is closed after the final event.
func (s *Service) SendMessageStream(ctx context.Context, userID uint64, content string, conversationID *uint64) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)
		start := time.Now()

		emit := func(ev StreamEvent) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		conv, history, err := s.begin(ctx, userID, content, conversationID)
		if err != nil {
			emit(StreamEvent{Err: err})
			return
		}

		chunks, errs, cancel := s.assistant.Stream(ctx, history)
		defer cancel()

		var b strings.Builder
		for c := range chunks {
			b.WriteString(c)
			emit(StreamEvent{Delta: c})
		}
		if err := <-errs; err != nil {
			s.logActivity(ctx, userID, start, false)
			emit(StreamEvent{Err: err})
			return
		}

		reply, err := s.finish(ctx, userID, conv, b.String())
		if err != nil {
			emit(StreamEvent{Err: err})
			return
		}
		s.logActivity(ctx, userID, start, true)
		emit(StreamEvent{Reply: reply})
	}()

	return out
}
