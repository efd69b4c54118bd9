package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"

	"gorm.io/gorm"
)

// PaymentRepo persists payment rows in Postgres.
type PaymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *PaymentRepo) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepo) FindByIntentRef(ctx context.Context, intentRef string) (*models.Payment, error) {
	return r.findByRef(ctx, "stripe_payment_intent_id = ?", intentRef)
}

func (r *PaymentRepo) FindBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error) {
	return r.findByRef(ctx, "stripe_session_id = ?", sessionRef)
}

func (r *PaymentRepo) findByRef(ctx context.Context, cond, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, cond, ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment for ref %s", common.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

// TransitionByIntentRef moves a pending row identified by intent ref to a
// terminal status as one conditional UPDATE, so duplicate and out-of-order
// webhook deliveries are idempotent at the storage layer. Returns the
// number of rows changed (0 or 1).
func (r *PaymentRepo) TransitionByIntentRef(ctx context.Context, intentRef string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	return r.transition(ctx, "stripe_payment_intent_id = ?", intentRef, to, paymentMethod)
}

// TransitionBySessionRef is TransitionByIntentRef keyed by checkout
// session ref.
func (r *PaymentRepo) TransitionBySessionRef(ctx context.Context, sessionRef string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	return r.transition(ctx, "stripe_session_id = ?", sessionRef, to, paymentMethod)
}

func (r *PaymentRepo) transition(ctx context.Context, cond, ref string, to models.PaymentStatus, paymentMethod string) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if paymentMethod != "" {
		updates["payment_method"] = paymentMethod
	}

	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where(cond, ref).
		Where("status = ?", models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to transition payment: %w", res.Error)
	}
	return res.RowsAffected, nil
}
