package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"

	"github.com/gin-gonic/gin"
)

// WebhookHandler handles Stripe webhook deliveries
type WebhookHandler struct {
	logger *slog.Logger
	svc    *services.PaymentService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(svc *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		logger: slog.With("handler", "WebhookHandler"),
		svc:    svc,
	}
}

// HandleWebhook processes Stripe webhook events. The body is read raw and
// handed to signature verification unparsed.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.svc.HandleWebhookEvent(c.Request.Context(), payload, signature); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
