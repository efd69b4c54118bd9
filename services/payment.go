package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"

	"github.com/stripe/stripe-go/v84"
)

// PaymentService creates processor intents and checkout sessions, keeps
// the pending payment rows linked to them, and reconciles processor
// webhook events into row state transitions.
type PaymentService struct {
	payments  PaymentStore
	subs      SubscriptionStore
	processor ProcessorClient
	dedup     EventDedup // nil disables the redelivery shortcut
	logger    *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(payments PaymentStore, subs SubscriptionStore, processor ProcessorClient, dedup EventDedup) *PaymentService {
	return &PaymentService{
		payments:  payments,
		subs:      subs,
		processor: processor,
		dedup:     dedup,
		logger:    slog.With("service", "PaymentService"),
	}
}

// CreateIntentInput carries the payment intent request fields
type CreateIntentInput struct {
	Amount         int64
	Currency       string
	SubscriptionID string
	Metadata       map[string]string
}

// CreateIntentResult is returned to the device, which completes the charge
// directly with Stripe using the client secret.
type CreateIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateCheckoutInput carries the hosted checkout request fields
type CreateCheckoutInput struct {
	Amount         int64
	Currency       string
	SubscriptionID string
	SuccessURL     string
	CancelURL      string
}

// CreateCheckoutResult points the device at the hosted checkout page.
type CreateCheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (s *PaymentService) validateAmount(amount int64, currency string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return "", fmt.Errorf("%w: currency is required", common.ErrValidation)
	}
	return currency, nil
}

// resolveSubscription verifies the optional linked subscription exists and
// returns metadata carrying its id.
func (s *PaymentService) resolveSubscription(ctx context.Context, subscriptionID string, metadata map[string]string) (map[string]string, *string, error) {
	merged := map[string]string{}
	for k, v := range metadata {
		merged[k] = v
	}
	if subscriptionID == "" {
		return merged, nil, nil
	}
	if _, err := s.subs.GetByID(ctx, subscriptionID); err != nil {
		return nil, nil, err
	}
	merged["subscription_id"] = subscriptionID
	return merged, &subscriptionID, nil
}

// CreateIntent creates a processor payment intent and persists the linked
// pending payment row.
func (s *PaymentService) CreateIntent(ctx context.Context, in *CreateIntentInput) (*CreateIntentResult, error) {
	currency, err := s.validateAmount(in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}

	metadata, subID, err := s.resolveSubscription(ctx, in.SubscriptionID, in.Metadata)
	if err != nil {
		return nil, err
	}

	pi, err := s.processor.CreatePaymentIntent(ctx, in.Amount, currency, "", metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProcessor, err)
	}

	payment := &models.Payment{
		ID:                    common.RandomID(),
		SubscriptionID:        subID,
		StripePaymentIntentID: &pi.ID,
		Amount:                in.Amount,
		Currency:              currency,
		Status:                models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("Payment intent created", "payment_id", payment.ID, "payment_intent_id", pi.ID, "amount", in.Amount)

	return &CreateIntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	}, nil
}

// CreateCheckoutSession creates a hosted checkout session and persists the
// linked pending payment row.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, in *CreateCheckoutInput) (*CreateCheckoutResult, error) {
	currency, err := s.validateAmount(in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	if in.SuccessURL == "" || in.CancelURL == "" {
		return nil, fmt.Errorf("%w: successUrl and cancelUrl are required", common.ErrValidation)
	}

	metadata, subID, err := s.resolveSubscription(ctx, in.SubscriptionID, nil)
	if err != nil {
		return nil, err
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, &CheckoutSessionParams{
		Amount:      in.Amount,
		Currency:    currency,
		Description: "Subscription payment",
		SuccessURL:  in.SuccessURL,
		CancelURL:   in.CancelURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProcessor, err)
	}

	payment := &models.Payment{
		ID:              common.RandomID(),
		SubscriptionID:  subID,
		StripeSessionID: &sess.ID,
		Amount:          in.Amount,
		Currency:        currency,
		Status:          models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("Checkout session created", "payment_id", payment.ID, "session_id", sess.ID, "amount", in.Amount)

	return &CreateCheckoutResult{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// ListForSubscription distinguishes "no payments yet" (empty list) from
// "unknown subscription" (not found).
func (s *PaymentService) ListForSubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error) {
	if _, err := s.subs.GetByID(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.payments.ListBySubscription(ctx, subscriptionID)
}

// HandleWebhookEvent verifies the event signature against the raw body and
// applies the matching payment-row transition idempotently. Once the event
// is authenticated, an unmatched or already-settled ref is acknowledged
// (nil error) so Stripe does not trigger redelivery storms; only signature
// failures and store failures are returned.
func (s *PaymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.processor.ConstructWebhookEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrSignature, err)
	}

	var marked bool
	if s.dedup != nil {
		seen, err := s.dedup.MarkEventSeen(ctx, event.ID, common.WEBHOOK_EVENT_DEDUP_TTL_HOURS*time.Hour)
		if err != nil {
			// The conditional update below is still idempotent without it.
			s.logger.Warn("Webhook dedup cache unavailable", "error", err, "event_id", event.ID)
		} else if seen {
			s.logger.Info("Duplicate webhook event skipped", "event_id", event.ID, "type", event.Type)
			return nil
		} else {
			marked = true
		}
	}

	var dispatchErr error
	switch event.Type {
	case "payment_intent.succeeded":
		dispatchErr = s.handlePaymentIntentEvent(ctx, event, models.PaymentStatusSucceeded)
	case "payment_intent.payment_failed":
		dispatchErr = s.handlePaymentIntentEvent(ctx, event, models.PaymentStatusFailed)
	case "checkout.session.completed":
		dispatchErr = s.handleCheckoutSessionCompleted(ctx, event)
	default:
		s.logger.Info("Ignoring webhook event type", "type", event.Type, "event_id", event.ID)
		return nil
	}

	// A failed delivery must stay retriable: release the dedup mark so the
	// processor's redelivery is not dropped while the row is still pending.
	if dispatchErr != nil && marked {
		if err := s.dedup.ForgetEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to release webhook dedup mark", "error", err, "event_id", event.ID)
		}
	}
	return dispatchErr
}

func (s *PaymentService) handlePaymentIntentEvent(ctx context.Context, event stripe.Event, to models.PaymentStatus) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		s.logger.Error("Failed to parse payment intent event", "error", err, "event_id", event.ID)
		return nil
	}

	var method string
	if to == models.PaymentStatusSucceeded && pi.PaymentMethod != nil {
		method = pi.PaymentMethod.ID
	}

	n, err := s.payments.TransitionByIntentRef(ctx, pi.ID, to, method)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	if n > 0 {
		s.logger.Info("Payment transitioned", "payment_intent_id", pi.ID, "status", to)
		return nil
	}

	s.explainNoop(ctx, "intent", pi.ID, to, func() (*models.Payment, error) {
		return s.payments.FindByIntentRef(ctx, pi.ID)
	})
	return nil
}

func (s *PaymentService) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		s.logger.Error("Failed to parse checkout session event", "error", err, "event_id", event.ID)
		return nil
	}

	var method string
	if sess.PaymentIntent != nil && sess.PaymentIntent.PaymentMethod != nil {
		method = sess.PaymentIntent.PaymentMethod.ID
	}

	n, err := s.payments.TransitionBySessionRef(ctx, sess.ID, models.PaymentStatusSucceeded, method)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	if n > 0 {
		s.logger.Info("Payment transitioned", "session_id", sess.ID, "status", models.PaymentStatusSucceeded)
		return nil
	}

	s.explainNoop(ctx, "session", sess.ID, models.PaymentStatusSucceeded, func() (*models.Payment, error) {
		return s.payments.FindBySessionRef(ctx, sess.ID)
	})
	return nil
}

// explainNoop logs why a conditional transition changed nothing: the row
// is unknown (processor retries of events we never created rows for), the
// row already reached the target state (duplicate delivery), or the row
// settled in the other terminal state (anomaly; the earlier state wins).
func (s *PaymentService) explainNoop(ctx context.Context, refKind, ref string, to models.PaymentStatus, find func() (*models.Payment, error)) {
	payment, err := find()
	if err != nil {
		s.logger.Info("Webhook event for unknown payment ref, acknowledged without action", "ref_kind", refKind, "ref", ref)
		return
	}
	if payment.Status == to {
		s.logger.Debug("Payment already in target state", "ref_kind", refKind, "ref", ref, "status", to)
		return
	}
	s.logger.Warn("Conflicting terminal state for payment, keeping earlier state",
		"ref_kind", refKind, "ref", ref, "current_status", payment.Status, "attempted_status", to)
}
