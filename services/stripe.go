package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

// StripeService handles Stripe API interactions. Constructed once at
// startup and injected wherever processor access is needed.
type StripeService struct {
	secretKey     string
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeService creates a new Stripe service
func NewStripeService(secretKey, webhookSecret string) *StripeService {
	stripe.Key = secretKey

	return &StripeService{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		logger:        slog.With("service", "StripeService"),
	}
}

// CheckoutSessionParams represents parameters for creating a hosted
// checkout session for a one-time payment
type CheckoutSessionParams struct {
	Amount      int64  // in the smallest currency unit
	Currency    string // e.g. "usd"
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CreatePaymentIntent creates a Stripe payment intent
func (s *StripeService) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Metadata: metadata,
	}
	if description != "" {
		params.Description = stripe.String(description)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		s.logger.Error("Failed to create payment intent", "error", err)
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info("Created payment intent", "payment_intent_id", pi.ID, "amount", amount, "currency", currency)
	return pi, nil
}

// CreateCheckoutSession creates a Stripe checkout session
func (s *StripeService) CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("amount is required for checkout session")
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String("payment"),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   params.Metadata,
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Description),
					},
					UnitAmount: stripe.Int64(params.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		s.logger.Error("Failed to create checkout session", "error", err)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Created checkout session", "session_id", sess.ID, "amount", params.Amount)
	return sess, nil
}

// ConstructWebhookEvent constructs and validates a webhook event.
// The payload must be the raw request body; re-serialization changes byte
// content and breaks the signature.
func (s *StripeService) ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	options := &webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, *options)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature", "error", err)
		return stripe.Event{}, fmt.Errorf("failed to verify webhook: %w", err)
	}

	s.logger.Debug("Webhook event verified", "type", event.Type, "id", event.ID)
	return event, nil
}
