package services

import (
	"context"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"

	"github.com/stripe/stripe-go/v84"
)

// SubscriptionStore is the durable row store behind the subscription
// service. Implemented by repository.SubscriptionRepo and by the in-memory
// store used in tests.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	FindLatestByEmail(ctx context.Context, email string) (*models.Subscription, error)
	FindLatestByHandle(ctx context.Context, handle string) (*models.Subscription, error)
	UpdateTerm(ctx context.Context, id string, endAt *time.Time, totalMonths int) error
	ListAll(ctx context.Context) ([]models.Subscription, error)
}

// PaymentStore is the durable row store behind the payment service.
// Transition methods must be single conditional writes guarded on the
// pending status.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error)
	FindByIntentRef(ctx context.Context, intentRef string) (*models.Payment, error)
	FindBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error)
	TransitionByIntentRef(ctx context.Context, intentRef string, to models.PaymentStatus, paymentMethod string) (int64, error)
	TransitionBySessionRef(ctx context.Context, sessionRef string, to models.PaymentStatus, paymentMethod string) (int64, error)
}

// ProcessorClient is the payment processor collaborator. The core never
// touches card data; it hands the client secret back to the device.
type ProcessorClient interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error)
}

// ObjectStore is the object-storage collaborator used for signed document
// reads.
type ObjectStore interface {
	Bucket() string
	PresignedGetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Notifier delivers confirmation messages. Calls are fire-and-forget;
// failures must never surface to the triggering request.
type Notifier interface {
	SubscriptionCreated(ctx context.Context, sub *models.Subscription) error
}

// EventDedup is the best-effort webhook deduplication cache. Implemented
// by storage.RedisClient; a nil EventDedup disables deduplication.
// ForgetEvent releases a mark so a failed delivery can be retried.
type EventDedup interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}
