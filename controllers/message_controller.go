package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"messenger-service/middlewares"
	"messenger-service/services"
	"messenger-service/utils"
)

// MessageController is the boundary the HTTP layer calls into; it translates
// service results and the error taxonomy into response shapes.
type MessageController struct {
	service *services.ConversationService
}

func NewMessageController(service *services.ConversationService) *MessageController {
	return &MessageController{service: service}
}

// statusFor maps the service error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (mc *MessageController) respondErr(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("messenger request failed")
		utils.RespondError(c, status, "internal error")
		return
	}
	utils.RespondError(c, status, err.Error())
}

// ListConversations GET /api/messages/conversations
func (mc *MessageController) ListConversations(c *gin.Context) {
	conversations, err := mc.service.ListConversations(middlewares.CallerID(c))
	if err != nil {
		mc.respondErr(c, err)
		return
	}
	utils.RespondSuccess(c, conversations, nil)
}

// OpenConversation POST /api/messages/conversations/:id
// :id is the other participant's identifier (messenger or legacy).
func (mc *MessageController) OpenConversation(c *gin.Context) {
	conversation, err := mc.service.OpenConversation(middlewares.CallerID(c), c.Param("id"))
	if err != nil {
		mc.respondErr(c, err)
		return
	}
	utils.RespondSuccess(c, conversation, nil)
}

// GetConversation GET /api/messages/conversations/:id
func (mc *MessageController) GetConversation(c *gin.Context) {
	conversation, err := mc.service.GetConversation(middlewares.CallerID(c), c.Param("id"))
	if err != nil {
		mc.respondErr(c, err)
		return
	}
	utils.RespondSuccess(c, conversation, nil)
}

// GetMessages GET /api/messages/conversations/:id/messages
func (mc *MessageController) GetMessages(c *gin.Context) {
	messages, err := mc.service.GetMessages(middlewares.CallerID(c), c.Param("id"))
	if err != nil {
		mc.respondErr(c, err)
		return
	}
	utils.RespondSuccess(c, messages, nil)
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	// RecipientMessengerID is the canonical field; RecipientID is kept for
	// clients that predate messenger ids.
	RecipientMessengerID string `json:"recipient_messenger_id"`
	RecipientID          string `json:"recipient_id"`
	Body                 string `json:"body" binding:"required"`
}

func (r *sendMessageRequest) recipient() string {
	if r.RecipientMessengerID != "" {
		return r.RecipientMessengerID
	}
	return r.RecipientID
}

// SendMessage POST /api/messages
func (mc *MessageController) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	message, err := mc.service.SendMessage(middlewares.CallerID(c), req.ConversationID, req.recipient(), req.Body)
	if err != nil {
		mc.respondErr(c, err)
		return
	}
	utils.RespondSuccess(c, message, nil)
}

// MarkRead PATCH /api/messages/conversations/:id/read
func (mc *MessageController) MarkRead(c *gin.Context) {
	if err := mc.service.MarkRead(middlewares.CallerID(c), c.Param("id")); err != nil {
		mc.respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
