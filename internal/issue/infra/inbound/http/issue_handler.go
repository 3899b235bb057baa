package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/issue/application"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/pkg/utils"
)

// IssueHandler encapsula los endpoints HTTP de incidencias.
type IssueHandler struct {
	service *application.IssueService
}

func NewIssueHandler(service *application.IssueService) *IssueHandler {
	return &IssueHandler{service: service}
}

// --- Lecturas ---

// ListIssues endpoint GET /api/issues
func (h *IssueHandler) ListIssues(c *gin.Context) {
	filter := issueDomain.ListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Division: c.Query("division"),
		Search:   c.Query("search"),
	}
	page, fromCache, err := h.service.ListIssues(c.Request.Context(), middleware.ViewerFrom(c), filter, utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// ListMine endpoint GET /api/issues/mine
func (h *IssueHandler) ListMine(c *gin.Context) {
	page, fromCache, err := h.service.ListMine(c.Request.Context(), middleware.ViewerFrom(c), c.Query("status"), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// GetIssue endpoint GET /api/issues/:id
func (h *IssueHandler) GetIssue(c *gin.Context) {
	issue, fromCache, err := h.service.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, issue, fromCache)
}

// UnreadCount endpoint GET /api/issues/unread-count
func (h *IssueHandler) UnreadCount(c *gin.Context) {
	n, fromCache, err := h.service.UnreadCount(c.Request.Context(), middleware.ViewerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, gin.H{"count": n}, fromCache)
}

// MyStats endpoint GET /api/issues/stats/me
func (h *IssueHandler) MyStats(c *gin.Context) {
	stats, fromCache, err := h.service.UserStats(c.Request.Context(), middleware.ViewerFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, stats, fromCache)
}

// CategoryStats endpoint GET /api/issues/stats/category/:category
func (h *IssueHandler) CategoryStats(c *gin.Context) {
	stats, fromCache, err := h.service.CategoryStats(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, stats, fromCache)
}

// Overview endpoint GET /api/issues/stats/overview
func (h *IssueHandler) Overview(c *gin.Context) {
	overview, fromCache, err := h.service.Overview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, overview, fromCache)
}

// --- Escrituras ---

// CreateIssue endpoint POST /api/issues
func (h *IssueHandler) CreateIssue(c *gin.Context) {
	var req struct {
		Title       string   `json:"title" binding:"required"`
		Description string   `json:"description"`
		Category    string   `json:"category" binding:"required"`
		Division    string   `json:"division" binding:"required"`
		Location    string   `json:"location"`
		Images      []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	issue, err := h.service.CreateIssue(c.Request.Context(), middleware.ViewerFrom(c), application.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Division:    req.Division,
		Location:    req.Location,
		Images:      req.Images,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, issue)
}

// UpdateIssue endpoint PUT /api/issues/:id
func (h *IssueHandler) UpdateIssue(c *gin.Context) {
	// Usamos punteros para que los campos sean opcionales en el JSON
	var req struct {
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
		Division    *string `json:"division,omitempty"`
		Location    *string `json:"location,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	issue, err := h.service.UpdateIssue(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id"), application.UpdateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Division:    req.Division,
		Location:    req.Location,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, issue)
}

// ChangeStatus endpoint PATCH /api/issues/:id/status
func (h *IssueHandler) ChangeStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	issue, err := h.service.ChangeStatus(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id"), req.Status, req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, issue)
}

// MarkRead endpoint POST /api/issues/:id/read
func (h *IssueHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteIssue endpoint DELETE /api/issues/:id
func (h *IssueHandler) DeleteIssue(c *gin.Context) {
	if err := h.service.DeleteIssue(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *IssueHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invalidation.ErrCacheInvalidation):
		utils.SendCacheRefreshFailed(c)
	case errors.Is(err, issueDomain.ErrIssueNotFound):
		utils.SendNotFound(c, "issue not found")
	case errors.Is(err, issueDomain.ErrIssueAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, issueDomain.ErrTitleRequired),
		errors.Is(err, issueDomain.ErrDivisionRequired),
		errors.Is(err, issueDomain.ErrInvalidCategory),
		errors.Is(err, issueDomain.ErrInvalidStatus):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, "internal error")
	}
}
