package handlers

import (
	"log/slog"
	"net/http"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment-related requests
type PaymentHandler struct {
	logger *slog.Logger
	svc    *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		logger: slog.With("handler", "PaymentHandler"),
		svc:    svc,
	}
}

type createPaymentIntentRequest struct {
	Amount         int64             `json:"amount" binding:"required,gt=0"`
	Currency       string            `json:"currency" binding:"required"`
	SubscriptionID string            `json:"subscriptionId"`
	Metadata       map[string]string `json:"metadata"`
}

// CreatePaymentIntent creates a Stripe payment intent and its pending
// payment row
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req createPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.CreateIntent(c.Request.Context(), &services.CreateIntentInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		SubscriptionID: req.SubscriptionID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type createCheckoutSessionRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required"`
	SubscriptionID string `json:"subscriptionId"`
	SuccessURL     string `json:"successUrl" binding:"required"`
	CancelURL      string `json:"cancelUrl" binding:"required"`
}

// CreateCheckoutSession creates a hosted checkout session and its pending
// payment row
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.CreateCheckoutSession(c.Request.Context(), &services.CreateCheckoutInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		SubscriptionID: req.SubscriptionID,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetPayment fetches one payment row
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// ListPaymentsForSubscription lists the payment history of a subscription;
// an unknown subscription is a 404, no payments yet is an empty list.
func (h *PaymentHandler) ListPaymentsForSubscription(c *gin.Context) {
	payments, err := h.svc.ListForSubscription(c.Request.Context(), c.Param("subscriptionId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}
