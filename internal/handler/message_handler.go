package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relaychat/internal/domain/message"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient_id", "VALIDATION_ERROR"))
		return
	}

	in := services.SendMessageInput{
		SenderID:        userID,
		Content:         req.Content,
		Type:            req.Type,
		ClientMessageID: req.ClientMessageID,
	}
	if in.Type == "" {
		in.Type = message.TypeText
	}
	switch req.RecipientType {
	case string(message.RecipientGroup):
		in.Recipient = message.GroupRecipient(recipientID)
	case string(message.RecipientUser), "":
		in.Recipient = message.UserRecipient(recipientID)
	default:
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient_type", "VALIDATION_ERROR"))
		return
	}
	if req.ReplyToMessageID != "" {
		replyTo, err := parseUUID(req.ReplyToMessageID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply_to_message_id", "VALIDATION_ERROR"))
			return
		}
		in.ReplyToMessageID = uuid.NullUUID{UUID: replyTo, Valid: true}
	}

	result, err := h.service.Send(c.Request.Context(), in)
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SendMessageResponse{
		MessageID:      result.MessageID.String(),
		SequenceNumber: result.SequenceNumber,
	}))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "VALIDATION_ERROR"))
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.Edit(c.Request.Context(), messageID, userID, req.Content); err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Recall(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.Recall(c.Request.Context(), messageID, userID); err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	var req httpdto.MarkAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	in := services.MarkAsReadInput{ReaderID: userID, UpToTime: req.UpToTime}
	var err error
	if in.PeerID, err = parseOptionalUUID(req.PeerID); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid peer_id", "VALIDATION_ERROR"))
		return
	}
	if in.GroupID, err = parseOptionalUUID(req.GroupID); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group_id", "VALIDATION_ERROR"))
		return
	}
	if in.UpToMessageID, err = parseOptionalUUID(req.UpToMessageID); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid up_to_message_id", "VALIDATION_ERROR"))
		return
	}

	result, err := h.service.MarkAsRead(c.Request.Context(), in)
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkAsReadResponse{NewReceipts: result.NewReceipts}))
}

// GetByClientID resolves a sender's own message by the client-chosen
// correlation id, so a client that lost the send response can recover the
// server-assigned id and sequence number.
func (h *MessageHandler) GetByClientID(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	m, err := h.service.GetByClientMessageID(c.Request.Context(), userID, c.Query("client_message_id"))
	if err != nil {
		status, code := statusAndCode(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SendMessageResponse{
		MessageID:      m.ID.String(),
		SequenceNumber: m.SequenceNumber,
	}))
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func parseOptionalUUID(value string) (uuid.NullUUID, error) {
	if value == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseInt64(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
