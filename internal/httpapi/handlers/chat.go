package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/store"
)

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	convs, err := h.ChatSvc.ListConversations(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "Conversation", "Failed to fetch conversations")
		return
	}
	common.OK(c, convs)
}

type createConversationReq struct {
	Title string `json:"title"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	conv, err := h.ChatSvc.CreateConversation(c.Request.Context(), uid, req.Title)
	if err != nil {
		storeError(c, err, "Conversation", "Failed to create conversation")
		return
	}
	common.Created(c, conv)
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "conversation")
	if !ok {
		return
	}
	conv, err := h.ChatSvc.GetConversation(c.Request.Context(), uid, id)
	if err != nil {
		storeError(c, err, "Conversation", "Failed to fetch conversation")
		return
	}
	common.OK(c, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "conversation")
	if !ok {
		return
	}
	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), uid, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		storeError(c, err, "Conversation", "Failed to delete conversation")
		return
	}
	common.NoContent(c)
}

func (h *Handler) ListConversationMessages(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "conversation")
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, id)
	if err != nil {
		storeError(c, err, "Conversation", "Failed to fetch messages")
		return
	}
	common.OK(c, msgs)
}

type sendMessageReq struct {
	Content        string  `json:"content"`
	ConversationID *uint64 `json:"conversationId"`
}

func chatError(c *gin.Context, err error) {
	if errors.Is(err, ai.ErrCollaborator) {
		storeError(c, err, "", "Failed to process chat request")
		return
	}
	storeError(c, err, "Conversation", "Failed to process chat request")
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Content is required")
		return
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, req.Content, req.ConversationID)
	if err != nil {
		chatError(c, err)
		return
	}
	common.OK(c, reply)
}

// SendChatMessageStream answers over server-sent events: "chunk" events
// carry deltas, "done" carries the stored reply, "error" ends a failed stream.
func (h *Handler) SendChatMessageStream(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Content is required")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	events := h.ChatSvc.SendMessageStream(ctx, uid, req.Content, req.ConversationID)

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			// last-resort: send a simple error that won't break SSE framing
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch {
			case ev.Err != nil:
				msg := "Failed to process chat request"
				switch {
				case errors.Is(ev.Err, store.ErrNotFound):
					msg = "Conversation not found"
				case errors.Is(ev.Err, store.ErrInvalid):
					msg = "Content is required"
				}
				writeJSON("error", gin.H{"type": "error", "message": msg})
				return
			case ev.Reply != nil:
				writeJSON("done", gin.H{"type": "done", "reply": ev.Reply})
				return
			default:
				writeJSON("chunk", gin.H{"type": "chunk", "delta": ev.Delta})
			}

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case <-ctx.Done():
			return
		}
	}
}
