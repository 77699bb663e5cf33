package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/common"
	"github.com/suPer8Hu/devassist/internal/httpapi/handlers"
	"github.com/suPer8Hu/devassist/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// every request acts as the demo user
	api := r.Group("/api")
	api.Use(middleware.DemoUser(middleware.DemoUserID))

	// user
	api.GET("/user/me", h.Me)
	api.PUT("/user/profile", h.UpdateProfile)
	api.PUT("/user/password", h.UpdatePassword)

	// chat
	api.GET("/conversations", h.ListConversations)
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations/:id", h.GetConversation)
	api.DELETE("/conversations/:id", h.DeleteConversation)
	api.GET("/conversations/:id/messages", h.ListConversationMessages)
	api.POST("/chat", h.SendChatMessage)
	api.POST("/chat/stream", h.SendChatMessageStream)

	// code
	api.POST("/code/optimize", h.OptimizeCode)
	api.POST("/code/score", h.ScoreCode)
	if h.JobSvc != nil {
		api.POST("/code/optimize/async", h.OptimizeCodeAsync)
		api.POST("/code/score/async", h.ScoreCodeAsync)
		api.GET("/jobs/:id", h.GetJob)
	}
	api.GET("/code/snippets", h.ListSnippets)
	api.POST("/code/snippets", h.CreateSnippet)
	api.GET("/code/snippets/:id", h.GetSnippet)
	api.DELETE("/code/snippets/:id", h.DeleteSnippet)

	// bookmarks
	api.GET("/bookmarks", h.ListBookmarks)
	api.POST("/bookmarks", h.CreateBookmark)
	api.GET("/bookmarks/export", h.ExportBookmarks)
	api.POST("/bookmarks/import", h.ImportBookmarks)
	api.GET("/bookmarks/category/:category", h.ListBookmarksByCategory)
	api.GET("/bookmarks/:id", h.GetBookmark)
	api.PUT("/bookmarks/:id", h.UpdateBookmark)
	api.DELETE("/bookmarks/:id", h.DeleteBookmark)
	api.POST("/bookmarks/:id/execute", h.ExecuteTemplate)

	// categories
	api.GET("/categories", h.ListCategories)
	api.POST("/categories", h.CreateCategory)
	api.GET("/categories/:id", h.GetCategory)
	api.PUT("/categories/:id", h.UpdateCategory)
	api.DELETE("/categories/:id", h.DeleteCategory)

	// goals
	api.GET("/goals", h.ListGoals)
	api.POST("/goals", h.CreateGoal)
	api.PUT("/goals/:id", h.UpdateGoal)
	api.DELETE("/goals/:id", h.DeleteGoal)

	// dashboard
	api.GET("/dashboard/activity", h.DashboardActivity)
	api.GET("/dashboard/languages", h.DashboardLanguages)
	api.GET("/dashboard/export", h.DashboardExport)

	return r
}
