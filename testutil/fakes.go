package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// FakeProcessor stands in for Stripe's API but verifies webhook signatures
// with the real stripe-go code, so signature handling is exercised for
// real in tests.
type FakeProcessor struct {
	WebhookSecret string

	mu       sync.Mutex
	intents  int
	sessions int

	CreateIntentErr error
}

func NewFakeProcessor(webhookSecret string) *FakeProcessor {
	return &FakeProcessor{WebhookSecret: webhookSecret}
}

func (f *FakeProcessor) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	if f.CreateIntentErr != nil {
		return nil, f.CreateIntentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents++
	id := fmt.Sprintf("pi_test_%d", f.intents)
	return &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amount,
		Currency:     stripe.Currency(currency),
	}, nil
}

func (f *FakeProcessor) CreateCheckoutSession(ctx context.Context, params *services.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	id := fmt.Sprintf("cs_test_%d", f.sessions)
	return &stripe.CheckoutSession{
		ID:  id,
		URL: "https://checkout.stripe.com/c/pay/" + id,
	}, nil
}

func (f *FakeProcessor) ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, f.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// SignPayload produces a valid Stripe-Signature header for a payload, in
// the documented "t=<ts>,v1=<hmac>" format.
func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// FakeNotifier records notification calls.
type FakeNotifier struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (f *FakeNotifier) SubscriptionCreated(ctx context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, sub.ID)
	return f.Err
}

func (f *FakeNotifier) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeObjectStore presigns deterministically and can be forced to fail.
type FakeObjectStore struct {
	BucketName string
	Keys       []string
	Err        error
}

func (f *FakeObjectStore) Bucket() string {
	return f.BucketName
}

func (f *FakeObjectStore) PresignedGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	f.Keys = append(f.Keys, key)
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Expires=%d&X-Amz-Signature=fake", f.BucketName, key, int(expires.Seconds())), nil
}
