package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"yobot/internal/model"
	"yobot/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// MessageHandler is the part of the assistant the HTTP layer needs
type MessageHandler interface {
	HandleMessage(ctx context.Context, sender, text string) *model.Reply
}

// ConversationHandler handles inbound WhatsApp messages
type ConversationHandler struct {
	assistant MessageHandler
	messenger service.Notifier
	metrics   *service.Metrics
	logger    *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(assistant MessageHandler, messenger service.Notifier, metrics *service.Metrics, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		assistant: assistant,
		messenger: messenger,
		metrics:   metrics,
		logger:    logger.Named("conversation"),
	}
}

// WhatsApp handles POST /whatsapp, the Twilio webhook.
// The reply goes out through the messenger; the gateway always gets 200
// so it does not redeliver the message.
func (h *ConversationHandler) WhatsApp(c *gin.Context) {
	from := strings.TrimSpace(c.PostForm("From"))
	body := c.PostForm("Body")
	if from == "" {
		c.String(http.StatusBadRequest, "missing From")
		return
	}

	reply := h.assistant.HandleMessage(c.Request.Context(), from, body)

	if _, err := h.messenger.Send(c.Request.Context(), from, reply.Body); err != nil {
		h.logger.Error("failed to deliver reply",
			zap.String("turn_id", reply.TurnID),
			zap.String("to", from),
			zap.Error(err),
		)
		h.metrics.DeliveryFailure("customer")
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}

// Message handles POST /api/v1/messages, a simulator that returns the reply
// instead of sending it
func (h *ConversationHandler) Message(c *gin.Context) {
	var req model.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	start := time.Now()
	reply := h.assistant.HandleMessage(c.Request.Context(), req.From, req.Body)

	c.JSON(http.StatusOK, model.MessageResponse{
		Reply: reply,
		Took:  time.Since(start).Milliseconds(),
	})
}
