package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/export"
	"github.com/suPer8Hu/devassist/internal/models"
	"github.com/suPer8Hu/devassist/internal/store"
)

type bookmarkReq struct {
	Title          string             `json:"title"`
	Content        string             `json:"content"`
	Tags           []string           `json:"tags"`
	Category       string             `json:"category"`
	CategoryID     *uint64            `json:"categoryId"`
	Notes          string             `json:"notes"`
	ContentType    models.ContentType `json:"contentType"`
	Starred        bool               `json:"starred"`
	URL            string             `json:"url"`
	IsTemplate     bool               `json:"isTemplate"`
	ConversationID *uint64            `json:"conversationId"`
	MessageID      *uint64            `json:"messageId"`
}

func (r bookmarkReq) toModel(uid uint64) models.Bookmark {
	return models.Bookmark{
		UserID:         uid,
		ConversationID: r.ConversationID,
		MessageID:      r.MessageID,
		Title:          strings.TrimSpace(r.Title),
		Content:        r.Content,
		Tags:           r.Tags,
		Category:       strings.TrimSpace(r.Category),
		CategoryID:     r.CategoryID,
		Notes:          r.Notes,
		ContentType:    r.ContentType,
		Starred:        r.Starred,
		URL:            r.URL,
		IsTemplate:     r.IsTemplate,
	}
}

func validateBookmark(b *models.Bookmark) error {
	if b.Title == "" || strings.TrimSpace(b.Content) == "" {
		return fmt.Errorf("title and content are required: %w", store.ErrInvalid)
	}
	if b.ContentType != "" && !b.ContentType.Valid() {
		return fmt.Errorf("unknown content type %q: %w", b.ContentType, store.ErrInvalid)
	}
	return nil
}

// ownCategory resolves a user's category, reporting others as unknown.
func (h *Handler) ownCategory(c *gin.Context, uid, id uint64) (*models.Category, error) {
	cat, err := h.Store.GetCategory(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cat.UserID != uid) {
		return nil, fmt.Errorf("unknown category %d: %w", id, store.ErrInvalid)
	}
	return cat, err
}

func (h *Handler) ownBookmark(c *gin.Context, uid, id uint64) (*models.Bookmark, error) {
	b, err := h.Store.GetBookmark(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if b.UserID != uid {
		return nil, fmt.Errorf("bookmark %d: %w", id, store.ErrNotFound)
	}
	return b, nil
}

func etag(version int) string { return strconv.Quote(strconv.Itoa(version)) }

// parseIfMatch accepts `"3"`, `W/"3"` or a bare 3.
func parseIfMatch(v string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return nil, nil
	}
	v = strings.Trim(strings.TrimPrefix(v, "W/"), `"`)
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid If-Match header: %w", store.ErrInvalid)
	}
	return &n, nil
}

func (h *Handler) CreateBookmark(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req bookmarkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Title and content are required")
		return
	}
	b := req.toModel(uid)
	if err := validateBookmark(&b); err != nil {
		storeError(c, err, "Bookmark", "Failed to create bookmark")
		return
	}
	if b.CategoryID != nil {
		cat, err := h.ownCategory(c, uid, *b.CategoryID)
		if err != nil {
			storeError(c, err, "Category", "Failed to create bookmark")
			return
		}
		if b.Category == "" {
			b.Category = cat.Name
		}
	}

	out, err := h.Store.CreateBookmark(c.Request.Context(), &b)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to create bookmark")
		return
	}
	c.Header("ETag", etag(out.Version))
	common.Created(c, out)
}

// ListBookmarks narrows by q, tag and categoryId; all given filters apply.
func (h *Handler) ListBookmarks(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	q := strings.TrimSpace(c.Query("q"))
	tag := strings.TrimSpace(c.Query("tag"))

	var categoryID uint64
	if v := c.Query("categoryId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, "Invalid category ID")
			return
		}
		categoryID = n
	}

	var list []models.Bookmark
	var err error
	switch {
	case q != "":
		list, err = h.Store.SearchBookmarks(ctx, uid, q)
	case tag != "":
		list, err = h.Store.ListBookmarksByTag(ctx, uid, tag)
	case categoryID != 0:
		list, err = h.Store.ListBookmarksByCategoryID(ctx, uid, categoryID)
	default:
		list, err = h.Store.ListBookmarks(ctx, uid)
	}
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to fetch bookmarks")
		return
	}

	out := list[:0]
	for _, b := range list {
		if tag != "" && !b.HasTag(tag) {
			continue
		}
		if categoryID != 0 && (b.CategoryID == nil || *b.CategoryID != categoryID) {
			continue
		}
		out = append(out, b)
	}
	common.OK(c, out)
}

func (h *Handler) ListBookmarksByCategory(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	list, err := h.Store.ListBookmarksByCategory(c.Request.Context(), uid, c.Param("category"))
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to fetch bookmarks")
		return
	}
	common.OK(c, list)
}

func (h *Handler) GetBookmark(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "bookmark")
	if !ok {
		return
	}
	b, err := h.ownBookmark(c, uid, id)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to fetch bookmark")
		return
	}
	c.Header("ETag", etag(b.Version))
	common.OK(c, b)
}

func (h *Handler) UpdateBookmark(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "bookmark")
	if !ok {
		return
	}
	var p models.BookmarkPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if p.ExpectedVersion == nil {
		v, err := parseIfMatch(c.GetHeader("If-Match"))
		if err != nil {
			storeError(c, err, "Bookmark", "Failed to update bookmark")
			return
		}
		p.ExpectedVersion = v
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			common.Fail(c, http.StatusBadRequest, "Title cannot be empty")
			return
		}
		p.Title = &t
	}
	if p.ContentType != nil && !p.ContentType.Valid() {
		common.Fail(c, http.StatusBadRequest, "Unknown content type")
		return
	}

	if _, err := h.ownBookmark(c, uid, id); err != nil {
		storeError(c, err, "Bookmark", "Failed to update bookmark")
		return
	}
	if p.CategoryID.Set && p.CategoryID.Valid {
		if _, err := h.ownCategory(c, uid, p.CategoryID.Value); err != nil {
			storeError(c, err, "Category", "Failed to update bookmark")
			return
		}
	}

	b, err := h.Store.UpdateBookmark(c.Request.Context(), id, p)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to update bookmark")
		return
	}
	c.Header("ETag", etag(b.Version))
	common.OK(c, b)
}

func (h *Handler) DeleteBookmark(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "bookmark")
	if !ok {
		return
	}
	_, err := h.ownBookmark(c, uid, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.NoContent(c)
		return
	case err != nil:
		storeError(c, err, "Bookmark", "Failed to delete bookmark")
		return
	}
	if err := h.Store.DeleteBookmark(c.Request.Context(), id); err != nil {
		storeError(c, err, "Bookmark", "Failed to delete bookmark")
		return
	}
	common.NoContent(c)
}

func (h *Handler) ExecuteTemplate(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id", "bookmark")
	if !ok {
		return
	}
	if _, err := h.ownBookmark(c, uid, id); err != nil {
		storeError(c, err, "Bookmark", "Failed to execute template")
		return
	}
	b, err := h.Store.ExecuteTemplate(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to execute template")
		return
	}
	common.OK(c, b)
}

func (h *Handler) ExportBookmarks(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, "Unsupported export format")
		return
	}
	list, err := h.Store.ListBookmarks(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to export bookmarks")
		return
	}
	body, err := export.Bookmarks(list, f)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to export bookmarks")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.BookmarksFilename(f, h.Now())))
	c.Data(http.StatusOK, f.ContentType(), body)
}

type importBookmarksReq struct {
	Bookmarks []bookmarkReq `json:"bookmarks"`
}

func (h *Handler) ImportBookmarks(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req importBookmarksReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Bookmarks == nil {
		common.Fail(c, http.StatusBadRequest, "A bookmarks array is required")
		return
	}

	in := make([]models.Bookmark, 0, len(req.Bookmarks))
	for i, r := range req.Bookmarks {
		b := r.toModel(uid)
		// imported bookmarks keep only the legacy category name
		b.CategoryID = nil
		if err := validateBookmark(&b); err != nil {
			common.Fail(c, http.StatusBadRequest, fmt.Sprintf("Bookmark %d: %s", i, clientMessage(err, store.ErrInvalid)))
			return
		}
		in = append(in, b)
	}

	out, err := store.ImportBookmarks(c.Request.Context(), h.Store, uid, in)
	if err != nil {
		storeError(c, err, "Bookmark", "Failed to import bookmarks")
		return
	}
	common.Created(c, gin.H{"imported": len(out), "bookmarks": out})
}
