package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/auth"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/models"
)

func (h *Handler) Me(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	u, err := h.Store.GetUser(c.Request.Context(), uid)
	if err != nil {
		storeError(c, err, "User", "Failed to fetch user information")
		return
	}
	common.OK(c, u)
}

type updateProfileReq struct {
	DisplayName *string `json:"displayName"`
	Username    *string `json:"username"`
	AvatarURL   *string `json:"avatarUrl"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			common.Fail(c, http.StatusBadRequest, "Username cannot be empty")
			return
		}
		req.Username = &name
	}

	u, err := h.Store.UpdateUser(c.Request.Context(), uid, models.UserPatch{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		storeError(c, err, "User", "Failed to update user profile")
		return
	}
	common.OK(c, u)
}

type updatePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req updatePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		common.Fail(c, http.StatusBadRequest, "Current and new passwords are required")
		return
	}

	ctx := c.Request.Context()
	u, err := h.Store.GetUser(ctx, uid)
	if err != nil {
		storeError(c, err, "User", "Failed to update password")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		common.Fail(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		common.Fail(c, http.StatusBadRequest, fmt.Sprintf("New password must be at most %d bytes", auth.MaxPasswordBytes))
		return
	}
	if err != nil {
		storeError(c, err, "User", "Failed to update password")
		return
	}
	if _, err := h.Store.UpdateUser(ctx, uid, models.UserPatch{PasswordHash: &hash}); err != nil {
		storeError(c, err, "User", "Failed to update password")
		return
	}
	common.OK(c, gin.H{"message": "Password updated successfully"})
}
