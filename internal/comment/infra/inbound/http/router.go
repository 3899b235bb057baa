package http

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
)

// RegisterCommentRoutes registra las rutas HTTP de comentarios.
func RegisterCommentRoutes(r gin.IRouter, handler *CommentHandler) {
	auth := middleware.RequireAuth()

	comments := r.Group("/api/comments")
	{
		comments.GET("/issue/:issueId", handler.ListByIssue)
		comments.GET("/admin", auth, handler.ListAdmin)
		comments.GET("/mine", auth, handler.ListMine)
		comments.GET("/:id", handler.GetComment)

		comments.POST("/issue/:issueId", auth, handler.CreateComment)
		comments.PUT("/:id", auth, handler.UpdateComment)
		comments.DELETE("/:id", auth, handler.DeleteComment)
	}
}
