package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/export"
)

// recentActivityLimit caps recentActivities on the dashboard.
const recentActivityLimit = 10

func (h *Handler) DashboardActivity(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	tf, ok := timeframe(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	st, err := h.StatsSvc.ComputeStats(ctx, uid, tf)
	if err != nil {
		storeError(c, err, "Activity", "Failed to fetch activity data")
		return
	}
	recent, err := h.StatsSvc.RecentActivities(ctx, uid, tf, recentActivityLimit)
	if err != nil {
		storeError(c, err, "Activity", "Failed to fetch activity data")
		return
	}
	common.OK(c, gin.H{"stats": st, "recentActivities": recent})
}

func (h *Handler) DashboardLanguages(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	tf, ok := timeframe(c)
	if !ok {
		return
	}
	langs, err := h.StatsSvc.Languages(c.Request.Context(), uid, tf)
	if err != nil {
		storeError(c, err, "Activity", "Failed to fetch language distribution")
		return
	}
	common.OK(c, gin.H{"languageDistribution": langs})
}

func (h *Handler) DashboardExport(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	tf, ok := timeframe(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	st, err := h.StatsSvc.ComputeStats(ctx, uid, tf)
	if err != nil {
		storeError(c, err, "Activity", "Failed to export dashboard")
		return
	}
	acts, err := h.StatsSvc.RecentActivities(ctx, uid, tf, 0)
	if err != nil {
		storeError(c, err, "Activity", "Failed to export dashboard")
		return
	}
	goals, err := h.Store.ListGoals(ctx, uid)
	if err != nil {
		storeError(c, err, "Goal", "Failed to export dashboard")
		return
	}

	doc := export.NewDashboard(tf, st, goals, acts, h.Now())
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		storeError(c, err, "Dashboard", "Failed to export dashboard")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename()))
	c.Data(http.StatusOK, "application/json", body)
}
