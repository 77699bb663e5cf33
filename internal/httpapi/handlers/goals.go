package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

type createGoalReq struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Category     models.GoalCategory `json:"category"`
	TargetValue  int                 `json:"targetValue"`
	CurrentValue int                 `json:"currentValue"`
	Deadline     *string             `json:"deadline"`
}

func (h *Handler) ListGoals(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	list, err := h.Store.ListGoals(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "Goal", "Failed to fetch goals")
		return
	}
	common.OK(c, list)
}

func (h *Handler) CreateGoal(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req createGoalReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		common.Fail(c, http.StatusBadRequest, "Title is required")
		return
	}
	if !req.Category.Valid() {
		common.Fail(c, http.StatusBadRequest, "Category must be one of performance, readability, best_practices, error_handling")
		return
	}
	if req.TargetValue <= 0 {
		common.Fail(c, http.StatusBadRequest, "Target value must be positive")
		return
	}

	g, err := h.Store.CreateGoal(c.Request.Context(), &models.UserGoal{
		UserID:       uid,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Category:     req.Category,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		Deadline:     req.Deadline,
	})
	if err != nil {
		storeError(c, err, "Goal", "Failed to create goal")
		return
	}
	common.Created(c, g)
}

func (h *Handler) ownGoal(c *gin.Context, uid, id uint64) (*models.UserGoal, error) {
	g, err := h.Store.GetGoal(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if g.UserID != uid {
		return nil, fmt.Errorf("goal %d: %w", id, store.ErrNotFound)
	}
	return g, nil
}

func (h *Handler) UpdateGoal(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "goal")
	if !ok {
		return
	}
	var p models.GoalPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if p.Category != nil && !p.Category.Valid() {
		common.Fail(c, http.StatusBadRequest, "Category must be one of performance, readability, best_practices, error_handling")
		return
	}
	if p.TargetValue != nil && *p.TargetValue <= 0 {
		common.Fail(c, http.StatusBadRequest, "Target value must be positive")
		return
	}
	if _, err := h.ownGoal(c, uid, id); err != nil {
		storeError(c, err, "Goal", "Failed to update goal")
		return
	}
	g, err := h.Store.UpdateGoal(c.Request.Context(), id, p)
	if err != nil {
		storeError(c, err, "Goal", "Failed to update goal")
		return
	}
	common.OK(c, g)
}

func (h *Handler) DeleteGoal(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "goal")
	if !ok {
		return
	}
	_, err := h.ownGoal(c, uid, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.NoContent(c)
		return
	case err != nil:
		storeError(c, err, "Goal", "Failed to delete goal")
		return
	}
	if err := h.Store.DeleteGoal(c.Request.Context(), id); err != nil {
		storeError(c, err, "Goal", "Failed to delete goal")
		return
	}
	common.NoContent(c)
}
