package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	"github.com/davicafu/civicreport/internal/message/application"
	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/pkg/utils"
)

type MessageHandler struct {
	service *application.MessageService
}

func NewMessageHandler(service *application.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// ListInbox endpoint GET /api/messages
func (h *MessageHandler) ListInbox(c *gin.Context) {
	page, fromCache, err := h.service.ListInbox(c.Request.Context(), middleware.ViewerFrom(c), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// ListByIssue endpoint GET /api/messages/issue/:issueId
func (h *MessageHandler) ListByIssue(c *gin.Context) {
	page, fromCache, err := h.service.ListByIssue(c.Request.Context(), c.Param("issueId"), utils.PaginationFromQuery(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendPage(c, page, fromCache)
}

// SendMessage endpoint POST /api/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId"`
		IssueID     string `json:"issueId"`
		Body        string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), middleware.ViewerFrom(c), application.SendMessageInput{
		RecipientID: req.RecipientID,
		IssueID:     req.IssueID,
		Body:        req.Body,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, msg)
}

// MarkRead endpoint POST /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	msg, err := h.service.MarkRead(c.Request.Context(), middleware.ViewerFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, msg)
}

func (h *MessageHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invalidation.ErrCacheInvalidation):
		utils.SendCacheRefreshFailed(c)
	case errors.Is(err, messageDomain.ErrMessageNotFound):
		utils.SendNotFound(c, "message not found")
	case errors.Is(err, issueDomain.ErrIssueNotFound):
		utils.SendNotFound(c, "issue not found")
	case errors.Is(err, messageDomain.ErrMessageAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, messageDomain.ErrBodyRequired),
		errors.Is(err, messageDomain.ErrRecipientRequired),
		errors.Is(err, messageDomain.ErrSelfMessage):
		utils.SendBadRequest(c, err.Error())
	default:
		utils.SendInternalServerError(c, "internal error")
	}
}
