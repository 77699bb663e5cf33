package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/chat"
	"github.com/suPer8Hu/devassist/internal/code"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/config"
	"github.com/suPer8Hu/devassist/internal/httpapi/middleware"
	"github.com/suPer8Hu/devassist/internal/jobs"
	"github.com/suPer8Hu/devassist/internal/stats"
	"github.com/suPer8Hu/devassist/internal/store"
)

type Handler struct {
	Store    store.Store
	Cfg      config.Config
	ChatSvc  *chat.Service
	CodeSvc  *code.Service
	StatsSvc *stats.Service
	// JobSvc is nil when async jobs are disabled.
	JobSvc *jobs.Service
	Now    func() time.Time
}

func NewHandler(st store.Store, cfg config.Config, assistant *ai.Assistant, jobSvc *jobs.Service) *Handler {
	return &Handler{
		Store:    st,
		Cfg:      cfg,
		ChatSvc:  chat.NewService(st, assistant, cfg.ChatContextWindowSize),
		CodeSvc:  code.NewService(st, assistant),
		StatsSvc: stats.NewService(st),
		JobSvc:   jobSvc,
		Now:      time.Now,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// mustUser writes 401 and returns false when no user is bound.
func mustUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	return uid, ok
}

func parseID(c *gin.Context, param, what string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, "Invalid "+what+" ID")
		return 0, false
	}
	return id, true
}

// clientMessage strips the sentinel suffix from a wrapped validation error.
func clientMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// storeError maps service errors to status codes for every endpoint.
// what names the entity in 404 messages; fallback is the 500 message.
func storeError(c *gin.Context, err error, what, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.Fail(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrVersionConflict):
		common.Fail(c, http.StatusConflict, what+" was modified by another request")
	case errors.Is(err, store.ErrConflict):
		common.Fail(c, http.StatusConflict, clientMessage(err, store.ErrConflict))
	case errors.Is(err, store.ErrInvalid):
		common.Fail(c, http.StatusBadRequest, clientMessage(err, store.ErrInvalid))
	case errors.Is(err, stats.ErrInvalidTimeframe):
		common.Fail(c, http.StatusBadRequest, "Invalid timeframe")
	default:
		log.Printf("[%s] %s %s failed request_id=%s err=%v",
			c.HandlerName(), c.Request.Method, c.FullPath(), middleware.RequestIDFrom(c), err)
		common.Fail(c, http.StatusInternalServerError, fallback)
	}
}

func timeframe(c *gin.Context) (stats.Timeframe, bool) {
	tf, err := stats.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		storeError(c, err, "", "")
		return "", false
	}
	return tf, true
}
