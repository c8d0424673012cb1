package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relaychat/internal/domain/message"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type HistoryHandler struct {
	service *services.HistoryService
}

func NewHistoryHandler(service *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// History serves offset-paginated conversation history, newest first.
// Query: recipient_id, recipient_type, page, page_size.
func (h *HistoryHandler) History(c *gin.Context) {
	userID, scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}
	page, err := parseInt(c.Query("page"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid page", "VALIDATION_ERROR"))
		return
	}
	if page == 0 {
		page = 1
	}
	pageSize, err := parseInt(c.Query("page_size"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid page_size", "VALIDATION_ERROR"))
		return
	}

	items, total, err := h.service.History(c.Request.Context(), userID, scope, page, pageSize)
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": items, "total": total}))
}

// CatchUp serves the reconnect-safe read path: messages with sequence number
// strictly greater than after_seq, ascending.
// Query: recipient_id, recipient_type, after_seq, limit.
func (h *HistoryHandler) CatchUp(c *gin.Context) {
	userID, scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}
	afterSeq, err := parseInt64(c.Query("after_seq"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid after_seq", "VALIDATION_ERROR"))
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "VALIDATION_ERROR"))
		return
	}

	items, err := h.service.CatchUp(c.Request.Context(), userID, scope, afterSeq, limit)
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": items}))
}

func (h *HistoryHandler) UnreadCount(c *gin.Context) {
	userID, scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), userID, scope)
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unread": count}))
}

func (h *HistoryHandler) scopeFromQuery(c *gin.Context) (uuid.UUID, message.Recipient, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, message.Recipient{}, false
	}
	recipientID, err := parseUUID(c.Query("recipient_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient_id", "VALIDATION_ERROR"))
		return uuid.Nil, message.Recipient{}, false
	}
	switch c.Query("recipient_type") {
	case string(message.RecipientGroup):
		return userID, message.GroupRecipient(recipientID), true
	case string(message.RecipientUser), "":
		return userID, message.UserRecipient(recipientID), true
	default:
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient_type", "VALIDATION_ERROR"))
		return uuid.Nil, message.Recipient{}, false
	}
}
