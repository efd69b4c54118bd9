package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/testutil"

	"github.com/stretchr/testify/suite"
)

const testWebhookSecret = "whsec_test_secret"

type PaymentServiceSuite struct {
	suite.Suite
	ctx       context.Context
	payments  *testutil.InMemoryPaymentStore
	subs      *testutil.InMemorySubscriptionStore
	processor *testutil.FakeProcessor
	svc       *services.PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.payments = testutil.NewInMemoryPaymentStore()
	s.subs = testutil.NewInMemorySubscriptionStore()
	s.processor = testutil.NewFakeProcessor(testWebhookSecret)
	s.svc = services.NewPaymentService(s.payments, s.subs, s.processor, nil)
}

func (s *PaymentServiceSuite) seedSubscription(id string) {
	s.Require().NoError(s.subs.Create(s.ctx, &models.Subscription{
		ID:    id,
		Name:  "Jamie Rivera",
		Email: "jamie@example.com",
	}))
}

// intentEventPayload builds the event body Stripe posts for payment intent
// transitions.
func intentEventPayload(eventID, eventType, intentID, paymentMethod string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":%q,"object":"payment_intent","payment_method":%q}}}`,
		eventID, eventType, intentID, paymentMethod))
}

func (s *PaymentServiceSuite) deliver(payload []byte) error {
	sig := testutil.SignPayload(testWebhookSecret, payload, time.Now())
	return s.svc.HandleWebhookEvent(s.ctx, payload, sig)
}

func (s *PaymentServiceSuite) TestCreateIntent() {
	s.seedSubscription("sub-1")

	res, err := s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{
		Amount:         12900,
		Currency:       "USD",
		SubscriptionID: "sub-1",
	})
	s.NoError(err)
	s.Equal("pi_test_1", res.PaymentIntentID)
	s.Equal("pi_test_1_secret", res.ClientSecret)

	payment, err := s.payments.FindByIntentRef(s.ctx, "pi_test_1")
	s.NoError(err)
	s.Equal(models.PaymentStatusPending, payment.Status)
	s.Equal(int64(12900), payment.Amount)
	s.Equal("usd", payment.Currency)
	s.Require().NotNil(payment.SubscriptionID)
	s.Equal("sub-1", *payment.SubscriptionID)
}

func (s *PaymentServiceSuite) TestCreateIntentValidation() {
	_, err := s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 0, Currency: "usd"})
	s.ErrorIs(err, common.ErrValidation)

	_, err = s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 100, Currency: " "})
	s.ErrorIs(err, common.ErrValidation)

	_, err = s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 100, Currency: "usd", SubscriptionID: "missing"})
	s.ErrorIs(err, common.ErrNotFound)
}

func (s *PaymentServiceSuite) TestCreateIntentProcessorFailure() {
	s.processor.CreateIntentErr = errors.New("stripe: connection reset")

	_, err := s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 100, Currency: "usd"})
	s.ErrorIs(err, common.ErrProcessor)

	// No orphaned row when the processor call fails.
	_, err = s.payments.FindByIntentRef(s.ctx, "pi_test_1")
	s.ErrorIs(err, common.ErrNotFound)
}

func (s *PaymentServiceSuite) TestCreateCheckoutSession() {
	res, err := s.svc.CreateCheckoutSession(s.ctx, &services.CreateCheckoutInput{
		Amount:     4900,
		Currency:   "usd",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	s.NoError(err)
	s.Equal("cs_test_1", res.SessionID)
	s.Contains(res.URL, "cs_test_1")

	payment, err := s.payments.FindBySessionRef(s.ctx, "cs_test_1")
	s.NoError(err)
	s.Equal(models.PaymentStatusPending, payment.Status)
}

func (s *PaymentServiceSuite) TestCreateCheckoutSessionRequiresURLs() {
	_, err := s.svc.CreateCheckoutSession(s.ctx, &services.CreateCheckoutInput{
		Amount:   4900,
		Currency: "usd",
	})
	s.ErrorIs(err, common.ErrValidation)
}

func (s *PaymentServiceSuite) TestListForSubscription() {
	s.seedSubscription("sub-1")

	payments, err := s.svc.ListForSubscription(s.ctx, "sub-1")
	s.NoError(err)
	s.Empty(payments)

	_, err = s.svc.ListForSubscription(s.ctx, "missing")
	s.ErrorIs(err, common.ErrNotFound)

	_, err = s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 100, Currency: "usd", SubscriptionID: "sub-1"})
	s.Require().NoError(err)

	payments, err = s.svc.ListForSubscription(s.ctx, "sub-1")
	s.NoError(err)
	s.Len(payments, 1)
}

func (s *PaymentServiceSuite) createPendingIntent() string {
	res, err := s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{Amount: 12900, Currency: "usd"})
	s.Require().NoError(err)
	return res.PaymentIntentID
}

func (s *PaymentServiceSuite) TestWebhookSucceededTransition() {
	intentID := s.createPendingIntent()

	err := s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa"))
	s.NoError(err)

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
	s.Equal("pm_card_visa", payment.PaymentMethod)
}

func (s *PaymentServiceSuite) TestWebhookFailedTransitionSkipsPaymentMethod() {
	intentID := s.createPendingIntent()

	err := s.deliver(intentEventPayload("evt_1", "payment_intent.payment_failed", intentID, "pm_card_visa"))
	s.NoError(err)

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusFailed, payment.Status)
	s.Empty(payment.PaymentMethod)
}

func (s *PaymentServiceSuite) TestWebhookDuplicateDeliveryIsIdempotent() {
	intentID := s.createPendingIntent()
	payload := intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")

	s.NoError(s.deliver(payload))
	s.NoError(s.deliver(payload))

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}

func (s *PaymentServiceSuite) TestWebhookEarlierTerminalStateWins() {
	intentID := s.createPendingIntent()

	s.NoError(s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")))
	s.NoError(s.deliver(intentEventPayload("evt_2", "payment_intent.payment_failed", intentID, "")))

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}

func (s *PaymentServiceSuite) TestWebhookUnknownRefAcknowledged() {
	err := s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", "pi_never_created", "pm_card_visa"))
	s.NoError(err)
}

func (s *PaymentServiceSuite) TestWebhookUnhandledTypeAcknowledged() {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	s.NoError(s.deliver(payload))
}

func (s *PaymentServiceSuite) TestWebhookTamperedSignatureRejected() {
	intentID := s.createPendingIntent()
	payload := intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")
	sig := testutil.SignPayload("whsec_wrong_secret", payload, time.Now())

	err := s.svc.HandleWebhookEvent(s.ctx, payload, sig)
	s.ErrorIs(err, common.ErrSignature)

	// A rejected event must leave the row untouched.
	payment, ferr := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(ferr)
	s.Equal(models.PaymentStatusPending, payment.Status)
}

func (s *PaymentServiceSuite) TestWebhookStaleTimestampRejected() {
	intentID := s.createPendingIntent()
	payload := intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")
	sig := testutil.SignPayload(testWebhookSecret, payload, time.Now().Add(-time.Hour))

	err := s.svc.HandleWebhookEvent(s.ctx, payload, sig)
	s.ErrorIs(err, common.ErrSignature)
}

func (s *PaymentServiceSuite) TestWebhookCheckoutSessionCompleted() {
	res, err := s.svc.CreateCheckoutSession(s.ctx, &services.CreateCheckoutInput{
		Amount:     4900,
		Currency:   "usd",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	s.Require().NoError(err)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session"}}}`,
		res.SessionID))
	s.NoError(s.deliver(payload))

	payment, err := s.payments.FindBySessionRef(s.ctx, res.SessionID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}

func (s *PaymentServiceSuite) TestIntentLifecycleEndToEnd() {
	s.seedSubscription("sub-1")

	res, err := s.svc.CreateIntent(s.ctx, &services.CreateIntentInput{
		Amount:         1000,
		Currency:       "usd",
		SubscriptionID: "sub-1",
	})
	s.Require().NoError(err)

	s.NoError(s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", res.PaymentIntentID, "pm_card_visa")))

	payments, err := s.svc.ListForSubscription(s.ctx, "sub-1")
	s.NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(models.PaymentStatusSucceeded, payments[0].Status)
	s.Equal("pm_card_visa", payments[0].PaymentMethod)
}

// fakeDedup marks every event seen after its first delivery.
type fakeDedup struct {
	seen map[string]bool
	err  error
}

func (f *fakeDedup) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeDedup) ForgetEvent(ctx context.Context, eventID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.seen, eventID)
	return nil
}

// flakyPaymentStore fails a configured number of transitions before
// recovering, mimicking a transient database outage.
type flakyPaymentStore struct {
	*testutil.InMemoryPaymentStore
	failuresLeft int
}

func (s *flakyPaymentStore) TransitionByIntentRef(ctx context.Context, intentRef string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return 0, errors.New("pq: connection reset")
	}
	return s.InMemoryPaymentStore.TransitionByIntentRef(ctx, intentRef, to, paymentMethod)
}

func (s *PaymentServiceSuite) TestWebhookDedupShortCircuitsRedelivery() {
	dedup := &fakeDedup{seen: map[string]bool{}}
	s.svc = services.NewPaymentService(s.payments, s.subs, s.processor, dedup)

	intentID := s.createPendingIntent()

	// First delivery settles the row; the redelivery is dropped before the
	// store is consulted, leaving a conflicting status unapplied.
	s.NoError(s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")))
	s.NoError(s.deliver(intentEventPayload("evt_1", "payment_intent.payment_failed", intentID, "")))

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}

func (s *PaymentServiceSuite) TestWebhookStoreFailureStaysRetriable() {
	store := &flakyPaymentStore{InMemoryPaymentStore: s.payments, failuresLeft: 1}
	dedup := &fakeDedup{seen: map[string]bool{}}
	s.svc = services.NewPaymentService(store, s.subs, s.processor, dedup)

	intentID := s.createPendingIntent()
	payload := intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")

	err := s.deliver(payload)
	s.ErrorIs(err, common.ErrStorage)

	// The failed delivery must release its dedup mark so the processor's
	// redelivery still reaches the store.
	s.NoError(s.deliver(payload))

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}

func (s *PaymentServiceSuite) TestWebhookDedupFailureDoesNotBlock() {
	dedup := &fakeDedup{err: errors.New("redis: connection refused")}
	s.svc = services.NewPaymentService(s.payments, s.subs, s.processor, dedup)

	intentID := s.createPendingIntent()
	s.NoError(s.deliver(intentEventPayload("evt_1", "payment_intent.succeeded", intentID, "pm_card_visa")))

	payment, err := s.payments.FindByIntentRef(s.ctx, intentID)
	s.NoError(err)
	s.Equal(models.PaymentStatusSucceeded, payment.Status)
}
