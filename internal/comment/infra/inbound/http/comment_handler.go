package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/civicreport/internal/comment/application"
	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/pkg/utils"
)

type CommentHandler struct {
	service *application.CommentService
}

func NewCommentHandler(service *application.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// ListByIssue endpoint GET /api/comments/issue/:issueId
func (h *CommentHandler) ListByIssue(c *gin.Context) {
	page, fromCache, err := h.service.ListByIssue(c.Request.Context(), c.Param("issueId"), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// ListAdmin endpoint GET /api/comments/admin
func (h *CommentHandler) ListAdmin(c *gin.Context) {
	page, fromCache, err := h.service.ListAdmin(c.Request.Context(), middleware.ViewerFrom(c), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// ListMine endpoint GET /api/comments/mine
func (h *CommentHandler) ListMine(c *gin.Context) {
	page, fromCache, err := h.service.ListMine(c.Request.Context(), middleware.ViewerFrom(c), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// GetComment endpoint GET /api/comments/:id
func (h *CommentHandler) GetComment(c *gin.Context) {
	comment, fromCache, err := h.service.GetComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendItem(c, comment, fromCache)
}

// CreateComment endpoint POST /api/comments/issue/:issueId
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req struct {
		Text   string `json:"text" binding:"required"`
		Rating int    `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	comment, err := h.service.CreateComment(c.Request.Context(), middleware.ViewerFrom(c), c.Param("issueId"), application.CreateCommentInput{
		Text:   req.Text,
		Rating: req.Rating,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, comment)
}

// UpdateComment endpoint PUT /api/comments/:id
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	var req struct {
		Text   *string `json:"text,omitempty"`
		Rating *int    `json:"rating,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	comment, err := h.service.UpdateComment(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id"), application.UpdateCommentInput{
		Text:   req.Text,
		Rating: req.Rating,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, comment)
}

// DeleteComment endpoint DELETE /api/comments/:id
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	if err := h.service.DeleteComment(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CommentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invalidation.ErrCacheInvalidation):
		utils.SendCacheRefreshFailed(c)
	case errors.Is(err, commentDomain.ErrCommentNotFound):
		utils.SendNotFound(c, "comment not found")
	case errors.Is(err, issueDomain.ErrIssueNotFound):
		utils.SendNotFound(c, "issue not found")
	case errors.Is(err, commentDomain.ErrCommentAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, commentDomain.ErrTextRequired),
		errors.Is(err, commentDomain.ErrInvalidRating):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, "internal error")
	}
}
