package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/code"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/jobs"
	"github.com/suPer8Hu/devassist/internal/models"
)

func bindCodeRequest(c *gin.Context) (code.Request, bool) {
	var req code.Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Language) == "" {
		common.Fail(c, http.StatusBadRequest, "Code and language are required")
		return req, false
	}
	return req, true
}

func (h *Handler) OptimizeCode(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	req, ok := bindCodeRequest(c)
	if !ok {
		return
	}
	out, err := h.CodeSvc.Optimize(c.Request.Context(), uid, req)
	if err != nil {
		storeError(c, err, "Snippet", "Failed to optimize code. Please try again.")
		return
	}
	common.OK(c, out)
}

func (h *Handler) ScoreCode(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	req, ok := bindCodeRequest(c)
	if !ok {
		return
	}
	out, err := h.CodeSvc.Score(c.Request.Context(), uid, req)
	if err != nil {
		storeError(c, err, "Snippet", "Failed to score code. Please try again.")
		return
	}
	common.OK(c, out)
}

func (h *Handler) submitJob(c *gin.Context, kind models.JobKind) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	req, ok := bindCodeRequest(c)
	if !ok {
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > jobs.MaxIdempotencyKeyLen {
		common.Fail(c, http.StatusBadRequest, "idempotency key too long")
		return
	}

	if req.SnippetID != nil {
		if _, err := h.CodeSvc.GetSnippet(c.Request.Context(), uid, *req.SnippetID); err != nil {
			storeError(c, err, "Snippet", "internal error")
			return
		}
	}

	j, created, err := h.JobSvc.Submit(c.Request.Context(), uid, jobs.SubmitRequest{
		Kind:           kind,
		Code:           req.Code,
		Language:       req.Language,
		SnippetID:      req.SnippetID,
		IdempotencyKey: idempoKey,
	})
	if err != nil {
		storeError(c, err, "Job", "enqueue failed")
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, j)
}

func (h *Handler) OptimizeCodeAsync(c *gin.Context) { h.submitJob(c, models.JobOptimize) }

func (h *Handler) ScoreCodeAsync(c *gin.Context) { h.submitJob(c, models.JobScore) }

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	jobID := c.Param("id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, "job id required")
		return
	}
	j, err := h.JobSvc.Get(c.Request.Context(), uid, jobID)
	if err != nil {
		storeError(c, err, "Job", "internal error")
		return
	}
	common.OK(c, j)
}

// Snippets

type createSnippetReq struct {
	Title    string `json:"title"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (h *Handler) CreateSnippet(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req createSnippetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Title, code, and language are required")
		return
	}
	sn, err := h.CodeSvc.CreateSnippet(c.Request.Context(), uid, &models.CodeSnippet{
		Title:    req.Title,
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		storeError(c, err, "Snippet", "Failed to create code snippet")
		return
	}
	common.Created(c, sn)
}

func (h *Handler) ListSnippets(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	list, err := h.CodeSvc.ListSnippets(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "Snippet", "Failed to fetch code snippets")
		return
	}
	common.OK(c, list)
}

func (h *Handler) GetSnippet(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "snippet")
	if !ok {
		return
	}
	sn, err := h.CodeSvc.GetSnippet(c.Request.Context(), uid, id)
	if err != nil {
		storeError(c, err, "Snippet", "Failed to fetch code snippet")
		return
	}
	common.OK(c, sn)
}

func (h *Handler) DeleteSnippet(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "snippet")
	if !ok {
		return
	}
	if err := h.CodeSvc.DeleteSnippet(c.Request.Context(), uid, id); err != nil {
		storeError(c, err, "Snippet", "Failed to delete code snippet")
		return
	}
	common.NoContent(c)
}
