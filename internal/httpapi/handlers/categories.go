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

type createCategoryReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *uint64 `json:"parentId"`
	Order       *int    `json:"order"`
	Color       string  `json:"color"`
	Icon        string  `json:"icon"`
}

func (h *Handler) ListCategories(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	list, err := h.Store.ListCategories(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "Category", "Failed to fetch categories")
		return
	}
	common.OK(c, list)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req createCategoryReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		common.Fail(c, http.StatusBadRequest, "Name is required")
		return
	}
	ctx := c.Request.Context()

	order := 0
	if req.Order != nil {
		order = *req.Order
	} else {
		// append after the user's existing categories
		existing, err := h.Store.ListCategories(ctx, uid)
		if err != nil {
			storeError(c, err, "Category", "Failed to create category")
			return
		}
		order = len(existing)
	}

	cat, err := h.Store.CreateCategory(ctx, &models.Category{
		UserID:      uid,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ParentID:    req.ParentID,
		Order:       order,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		storeError(c, err, "Category", "Failed to create category")
		return
	}
	common.Created(c, cat)
}

func (h *Handler) ownCategoryByID(c *gin.Context, uid, id uint64) (*models.Category, error) {
	cat, err := h.Store.GetCategory(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if cat.UserID != uid {
		return nil, fmt.Errorf("category %d: %w", id, store.ErrNotFound)
	}
	return cat, nil
}

func (h *Handler) GetCategory(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "category")
	if !ok {
		return
	}
	cat, err := h.ownCategoryByID(c, uid, id)
	if err != nil {
		storeError(c, err, "Category", "Failed to fetch category")
		return
	}
	common.OK(c, cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "category")
	if !ok {
		return
	}
	var p models.CategoryPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			common.Fail(c, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		p.Name = &n
	}
	if _, err := h.ownCategoryByID(c, uid, id); err != nil {
		storeError(c, err, "Category", "Failed to update category")
		return
	}
	cat, err := h.Store.UpdateCategory(c.Request.Context(), id, p)
	if err != nil {
		storeError(c, err, "Category", "Failed to update category")
		return
	}
	common.OK(c, cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "category")
	if !ok {
		return
	}
	_, err := h.ownCategoryByID(c, uid, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.NoContent(c)
		return
	case err != nil:
		storeError(c, err, "Category", "Failed to delete category")
		return
	}
	if err := h.Store.DeleteCategory(c.Request.Context(), id); err != nil {
		storeError(c, err, "Category", "Failed to delete category")
		return
	}
	common.NoContent(c)
}
