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

// SubscriptionRepo persists subscription records in Postgres.
type SubscriptionRepo struct {
	db *gorm.DB
}

func NewSubscriptionRepo(db *gorm.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: subscription %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// FindLatestByEmail returns the most recently created record for an email,
// case-insensitively. Users re-register, so most recent wins.
func (r *SubscriptionRepo) FindLatestByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", common.NormalizeEmail(email)).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no subscription for email", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription by email: %w", err)
	}
	return &sub, nil
}

// FindLatestByHandle matches a contact handle ignoring case and any
// leading "@", most recent record first.
func (r *SubscriptionRepo) FindLatestByHandle(ctx context.Context, handle string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("LTRIM(LOWER(contact_handle), '@') = ?", common.NormalizeHandle(handle)).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no subscription for handle", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription by handle: %w", err)
	}
	return &sub, nil
}

// UpdateTerm rewrites the end date and month total; these are the only
// fields ever mutated after creation.
func (r *SubscriptionRepo) UpdateTerm(ctx context.Context, id string, endAt *time.Time, totalMonths int) error {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"end_at":       endAt,
			"total_months": totalMonths,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription term: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: subscription %s", common.ErrNotFound, id)
	}
	return nil
}

func (r *SubscriptionRepo) ListAll(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
