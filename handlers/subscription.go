package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler handles subscription-related requests
type SubscriptionHandler struct {
	logger *slog.Logger
	svc    *services.SubscriptionService
	docs   *services.DocumentService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(svc *services.SubscriptionService, docs *services.DocumentService) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger: slog.With("handler", "SubscriptionHandler"),
		svc:    svc,
		docs:   docs,
	}
}

type createSubscriptionRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	TelegramUsername     string `json:"telegram_username"`
	IDDocumentURL        string `json:"id_document_url"`
	TermsAccepted        bool   `json:"terms_accepted"`
	Program              string `json:"program" binding:"required"`
	ChannelType          string `json:"channel_type"`
	SubscriptionDuration string `json:"subscription_duration"`
	PlanAmount           string `json:"plan_amount"`
}

// Create registers a new subscription
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Create(c.Request.Context(), &services.CreateSubscriptionInput{
		Name:          req.Name,
		Email:         req.Email,
		ContactHandle: req.TelegramUsername,
		Program:       req.Program,
		ChannelType:   req.ChannelType,
		DurationCode:  req.SubscriptionDuration,
		PlanAmount:    req.PlanAmount,
		DocumentRef:   req.IDDocumentURL,
		TermsAccepted: req.TermsAccepted,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, services.NewSubscriptionView(sub, time.Now().UTC()))
}

type lookupRequest struct {
	Query string `json:"query" binding:"required"`
}

// Lookup finds the most recent subscription for an email or Telegram
// handle; a miss is a regular "not found" result, not an error response.
func (h *SubscriptionHandler) Lookup(c *gin.Context) {
	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Lookup(c.Request.Context(), req.Query)
	if errors.Is(err, common.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"found":        true,
		"subscription": services.NewSubscriptionView(sub, time.Now().UTC()),
		"profitPlan":   sub.PlanAmount,
	})
}

// Stats returns live derived counts
func (h *SubscriptionHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// List returns all subscriptions with derived fields
func (h *SubscriptionHandler) List(c *gin.Context) {
	subs, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	now := time.Now().UTC()
	views := make([]*services.SubscriptionView, 0, len(subs))
	for i := range subs {
		views = append(views, services.NewSubscriptionView(&subs[i], now))
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": views, "count": len(views)})
}

// Export streams the flattened CSV projection
func (h *SubscriptionHandler) Export(c *gin.Context) {
	data, err := h.svc.ExportCSV(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("subscriptions-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// GetByID fetches a single subscription
func (h *SubscriptionHandler) GetByID(c *gin.Context) {
	sub, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, services.NewSubscriptionView(sub, time.Now().UTC()))
}

// DocumentURL mints a fresh signed URL for the subscription's document
func (h *SubscriptionHandler) DocumentURL(c *gin.Context) {
	url, err := h.docs.FreshDocumentURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

type extendRequest struct {
	AdditionalMonths int `json:"additionalMonths"`
}

// Extend advances the subscription's end date by a plan increment
func (h *SubscriptionHandler) Extend(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Extend(c.Request.Context(), c.Param("id"), req.AdditionalMonths)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, services.NewSubscriptionView(sub, time.Now().UTC()))
}
