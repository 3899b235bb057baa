package http

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
)

// RegisterIssueRoutes registra las rutas HTTP para el dominio de incidencias.
// La identidad la resuelve middleware.Authenticate antes de llegar aquí.
func RegisterIssueRoutes(r gin.IRouter, handler *IssueHandler) {
	auth := middleware.RequireAuth()

	issues := r.Group("/api/issues")
	{
		issues.GET("", handler.ListIssues)
		issues.GET("/mine", auth, handler.ListMine)
		issues.GET("/unread-count", auth, handler.UnreadCount)
		issues.GET("/stats/me", auth, handler.MyStats)
		issues.GET("/stats/category/:category", handler.CategoryStats)
		issues.GET("/stats/overview", handler.Overview)
		issues.GET("/:id", handler.GetIssue)

		issues.POST("", auth, handler.CreateIssue)
		issues.PUT("/:id", auth, handler.UpdateIssue)
		issues.PATCH("/:id/status", auth, handler.ChangeStatus)
		issues.POST("/:id/read", auth, handler.MarkRead)
		issues.DELETE("/:id", auth, handler.DeleteIssue)
	}
}
