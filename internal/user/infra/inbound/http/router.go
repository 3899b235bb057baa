package http

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
)

// RegisterUserRoutes registra las rutas HTTP para el dominio User
func RegisterUserRoutes(r gin.IRouter, handler *UserHandler) {
	auth := middleware.RequireAuth()

	users := r.Group("/api/users")
	{
		users.GET("", handler.ListUsers)
		users.GET("/me", auth, handler.Me)
		users.GET("/:id", handler.GetUser)

		users.POST("", auth, handler.CreateUser)
		users.PUT("/:id", auth, handler.UpdateUser)
		users.DELETE("/:id", auth, handler.DeleteUser)
	}
}
