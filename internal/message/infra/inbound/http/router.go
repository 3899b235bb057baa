package http

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
)

// RegisterMessageRoutes registra la mensajería; todo requiere identidad.
func RegisterMessageRoutes(r gin.IRouter, handler *MessageHandler) {
	messages := r.Group("/api/messages", middleware.RequireAuth())
	{
		messages.GET("", handler.ListInbox)
		messages.GET("/issue/:issueId", handler.ListByIssue)
		messages.POST("", handler.SendMessage)
		messages.POST("/:id/read", handler.MarkRead)
	}
}
