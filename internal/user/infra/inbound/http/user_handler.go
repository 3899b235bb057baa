package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/internal/user/application"
	"github.com/davicafu/civicreport/internal/user/domain"
	"github.com/davicafu/civicreport/pkg/utils"
)

// UserHandler encapsula los endpoints HTTP relacionados con User
type UserHandler struct {
	service *application.UserService
}

// NewUserHandler crea un nuevo UserHandler
func NewUserHandler(service *application.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// ---------------- Handlers ----------------

// ListUsers endpoint GET /api/users?role=
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, fromCache, err := h.service.ListUsers(c.Request.Context(), c.Query("role"), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// Me endpoint GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, fromCache, err := h.service.Me(c.Request.Context(), middleware.ViewerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, user, fromCache)
}

// GetUser endpoint GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, fromCache, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, user, fromCache)
}

// CreateUser endpoint POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Role     string `json:"role"`
		Category string `json:"category"`
		Division string `json:"division"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), middleware.ViewerFrom(c), application.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Category: req.Category,
		Division: req.Division,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, user)
}

// UpdateUser endpoint PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	// Usamos punteros para que los campos sean opcionales en el JSON
	var req struct {
		Name     *string `json:"name,omitempty"`
		Role     *string `json:"role,omitempty"`
		Category *string `json:"category,omitempty"`
		Division *string `json:"division,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id"), application.UpdateUserInput{
		Name:     req.Name,
		Role:     req.Role,
		Category: req.Category,
		Division: req.Division,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, user)
}

// DeleteUser endpoint DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invalidation.ErrCacheInvalidation):
		utils.SendCacheRefreshFailed(c)
	case errors.Is(err, domain.ErrUserNotFound):
		utils.SendNotFound(c, "user not found")
	case errors.Is(err, domain.ErrUserAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrCategoryRequired):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, "internal error")
	}
}
