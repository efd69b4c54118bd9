package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"
)

// InMemorySubscriptionStore is a mutex-guarded map mirroring the semantics
// of repository.SubscriptionRepo for service tests.
type InMemorySubscriptionStore struct {
	mu   sync.Mutex
	rows map[string]models.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{rows: make(map[string]models.Subscription)}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.UpdatedAt = sub.CreatedAt
	s.rows[sub.ID] = *sub
	return nil
}

func (s *InMemorySubscriptionStore) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", common.ErrNotFound, id)
	}
	return &sub, nil
}

func (s *InMemorySubscriptionStore) FindLatestByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	return s.findLatest(func(sub *models.Subscription) bool {
		return common.NormalizeEmail(sub.Email) == common.NormalizeEmail(email)
	})
}

func (s *InMemorySubscriptionStore) FindLatestByHandle(ctx context.Context, handle string) (*models.Subscription, error) {
	return s.findLatest(func(sub *models.Subscription) bool {
		return common.NormalizeHandle(sub.ContactHandle) == common.NormalizeHandle(handle)
	})
}

func (s *InMemorySubscriptionStore) findLatest(match func(*models.Subscription) bool) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Subscription
	for id := range s.rows {
		sub := s.rows[id]
		if !match(&sub) {
			continue
		}
		if best == nil || sub.CreatedAt.After(best.CreatedAt) ||
			(sub.CreatedAt.Equal(best.CreatedAt) && sub.ID > best.ID) {
			best = &sub
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no matching subscription", common.ErrNotFound)
	}
	return best, nil
}

func (s *InMemorySubscriptionStore) UpdateTerm(ctx context.Context, id string, endAt *time.Time, totalMonths int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: subscription %s", common.ErrNotFound, id)
	}
	sub.EndAt = endAt
	sub.TotalMonths = totalMonths
	sub.UpdatedAt = time.Now().UTC()
	s.rows[id] = sub
	return nil
}

func (s *InMemorySubscriptionStore) ListAll(ctx context.Context) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]models.Subscription, 0, len(s.rows))
	for id := range s.rows {
		subs = append(subs, s.rows[id])
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// InMemoryPaymentStore mirrors repository.PaymentRepo, including the
// conditional pending-guarded transitions.
type InMemoryPaymentStore struct {
	mu   sync.Mutex
	rows map[string]models.Payment
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{rows: make(map[string]models.Payment)}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.rows[payment.ID] = *payment
	return nil
}

func (s *InMemoryPaymentStore) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", common.ErrNotFound, id)
	}
	return &payment, nil
}

func (s *InMemoryPaymentStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payments []models.Payment
	for id := range s.rows {
		p := s.rows[id]
		if p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (s *InMemoryPaymentStore) FindByIntentRef(ctx context.Context, intentRef string) (*models.Payment, error) {
	return s.find(func(p *models.Payment) bool {
		return p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == intentRef
	})
}

func (s *InMemoryPaymentStore) FindBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error) {
	return s.find(func(p *models.Payment) bool {
		return p.StripeSessionID != nil && *p.StripeSessionID == sessionRef
	})
}

func (s *InMemoryPaymentStore) find(match func(*models.Payment) bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.rows {
		p := s.rows[id]
		if match(&p) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: no matching payment", common.ErrNotFound)
}

func (s *InMemoryPaymentStore) TransitionByIntentRef(ctx context.Context, intentRef string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	return s.transition(func(p *models.Payment) bool {
		return p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == intentRef
	}, to, paymentMethod)
}

func (s *InMemoryPaymentStore) TransitionBySessionRef(ctx context.Context, sessionRef string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	return s.transition(func(p *models.Payment) bool {
		return p.StripeSessionID != nil && *p.StripeSessionID == sessionRef
	}, to, paymentMethod)
}

func (s *InMemoryPaymentStore) transition(match func(*models.Payment) bool, to models.PaymentStatus, paymentMethod string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.rows {
		p := s.rows[id]
		if !match(&p) || p.Status != models.PaymentStatusPending {
			continue
		}
		p.Status = to
		if paymentMethod != "" {
			p.PaymentMethod = paymentMethod
		}
		p.UpdatedAt = time.Now().UTC()
		s.rows[id] = p
		return 1, nil
	}
	return 0, nil
}
