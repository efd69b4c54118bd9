package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"

	"github.com/gocarina/gocsv"
)

// SubscriptionService implements the subscription lifecycle: creation with
// a computed time window, lookup, extension, and the derived-status reads.
type SubscriptionService struct {
	repo     SubscriptionStore
	notifier Notifier
	plans    []common.Plan
	logger   *slog.Logger

	now func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(repo SubscriptionStore, notifier Notifier, plans []common.Plan) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		notifier: notifier,
		plans:    plans,
		logger:   slog.With("service", "SubscriptionService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the service's time source. Tests pin it to get
// deterministic windows and derived statuses.
func (s *SubscriptionService) SetNow(now func() time.Time) {
	s.now = now
}

// CreateSubscriptionInput carries the registration fields
type CreateSubscriptionInput struct {
	Name          string
	Email         string
	ContactHandle string
	Program       string
	ChannelType   string
	DurationCode  string
	PlanAmount    string
	DocumentRef   string
	TermsAccepted bool
}

func (in *CreateSubscriptionInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.ContactHandle) == "" {
		missing = append(missing, "telegram_username")
	}
	if strings.TrimSpace(in.DocumentRef) == "" {
		missing = append(missing, "id_document_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", common.ErrValidation, strings.Join(missing, ", "))
	}
	if !in.TermsAccepted {
		return fmt.Errorf("%w: terms must be accepted", common.ErrValidation)
	}
	return nil
}

// Create validates the registration, computes the subscription window from
// the duration code and persists the record. The confirmation notification
// is dispatched on a detached goroutine; its failure never fails the
// create.
func (s *SubscriptionService) Create(ctx context.Context, in *CreateSubscriptionInput) (*models.Subscription, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	months := common.MonthsForDurationCode(in.DurationCode)

	// A registration with no mappable duration and a flat-rate plan tag is
	// a one-off plan purchase with no running term.
	var startAt *time.Time
	if !(months == 0 && in.PlanAmount != "") {
		startAt = &now
	}

	var endAt *time.Time
	if startAt != nil {
		endAt = common.ComputeEndAt(*startAt, months)
	}

	sub := &models.Subscription{
		ID:            common.RandomID(),
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		ContactHandle: strings.TrimSpace(in.ContactHandle),
		Program:       in.Program,
		ChannelType:   in.ChannelType,
		DurationCode:  in.DurationCode,
		PlanAmount:    in.PlanAmount,
		DocumentRef:   in.DocumentRef,
		TermsAccepted: in.TermsAccepted,
		StartAt:       startAt,
		EndAt:         endAt,
		TotalMonths:   months,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription created", "subscription_id", sub.ID, "program", sub.Program, "total_months", sub.TotalMonths)

	if s.notifier != nil {
		go func(sub models.Subscription) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.SubscriptionCreated(ctx, &sub); err != nil {
				s.logger.Error("Failed to send confirmation notification", "error", err, "subscription_id", sub.ID)
			}
		}(*sub)
	}

	return sub, nil
}

func (s *SubscriptionService) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup finds the most recent registration for an email or contact
// handle. A query containing "@" beyond a leading handle prefix is
// treated as an email, anything else as a handle, so "@jamie_r" still
// matches the handle path.
func (s *SubscriptionService) Lookup(ctx context.Context, query string) (*models.Subscription, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", common.ErrValidation)
	}

	if strings.Contains(strings.TrimPrefix(query, "@"), "@") {
		return s.repo.FindLatestByEmail(ctx, query)
	}
	return s.repo.FindLatestByHandle(ctx, query)
}

// Extend pushes the subscription's end date out by additionalMonths
// calendar months, anchored at the current end date or at now when there
// is none. Not idempotent: two calls extend twice.
func (s *SubscriptionService) Extend(ctx context.Context, id string, additionalMonths int) (*models.Subscription, error) {
	if !common.ValidIncrement(s.plans, additionalMonths) {
		return nil, fmt.Errorf("%w: additionalMonths must be one of the plan increments", common.ErrValidation)
	}

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	base := s.now()
	if sub.EndAt != nil {
		base = *sub.EndAt
	}
	newEnd := common.AddMonthsClamped(base, additionalMonths)
	newTotal := sub.TotalMonths + additionalMonths

	if err := s.repo.UpdateTerm(ctx, id, &newEnd, newTotal); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription extended", "subscription_id", id, "additional_months", additionalMonths, "end_at", newEnd)

	sub.EndAt = &newEnd
	sub.TotalMonths = newTotal
	return sub, nil
}

func (s *SubscriptionService) ListAll(ctx context.Context) ([]models.Subscription, error) {
	return s.repo.ListAll(ctx)
}

// SubscriptionStats are live counts; status is recomputed per row at read
// time.
type SubscriptionStats struct {
	ActiveCount        int `json:"activeCount"`
	ExpiredCount       int `json:"expiredCount"`
	ExpiringTodayCount int `json:"expiringTodayCount"`
	TotalCount         int `json:"totalCount"`
}

func (s *SubscriptionService) Stats(ctx context.Context) (*SubscriptionStats, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &SubscriptionStats{TotalCount: len(subs)}
	for i := range subs {
		switch common.StatusOf(subs[i].EndAt, now) {
		case common.StatusActive:
			stats.ActiveCount++
		case common.StatusExpired:
			stats.ExpiredCount++
		case common.StatusExpiringToday:
			stats.ExpiringTodayCount++
		}
	}
	return stats, nil
}

// exportRow is the flattened tabular projection for CSV export.
type exportRow struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	Email         string `csv:"email"`
	ContactHandle string `csv:"telegram_username"`
	Program       string `csv:"program"`
	ChannelType   string `csv:"channel_type"`
	DurationCode  string `csv:"subscription_duration"`
	PlanAmount    string `csv:"plan_amount"`
	TotalMonths   int    `csv:"total_months"`
	StartAt       string `csv:"start_at"`
	EndAt         string `csv:"end_at"`
	Status        string `csv:"status"`
	DaysRemaining int    `csv:"days_remaining"`
	CreatedAt     string `csv:"created_at"`
}

// ExportCSV produces the flattened export with derived status and
// days-remaining per row.
func (s *SubscriptionService) ExportCSV(ctx context.Context) ([]byte, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]*exportRow, 0, len(subs))
	for i := range subs {
		sub := &subs[i]
		row := &exportRow{
			ID:            sub.ID,
			Name:          sub.Name,
			Email:         sub.Email,
			ContactHandle: sub.ContactHandle,
			Program:       sub.Program,
			ChannelType:   sub.ChannelType,
			DurationCode:  sub.DurationCode,
			PlanAmount:    sub.PlanAmount,
			TotalMonths:   sub.TotalMonths,
			Status:        string(common.StatusOf(sub.EndAt, now)),
			DaysRemaining: common.DaysRemaining(sub.EndAt, now),
			CreatedAt:     sub.CreatedAt.UTC().Format(time.RFC3339),
		}
		if sub.StartAt != nil {
			row.StartAt = sub.StartAt.UTC().Format(time.RFC3339)
		}
		if sub.EndAt != nil {
			row.EndAt = sub.EndAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return nil, fmt.Errorf("failed to marshal subscriptions to CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// SubscriptionView is a subscription with its derived read-time fields.
type SubscriptionView struct {
	models.Subscription
	Status        common.SubscriptionStatus `json:"status"`
	DaysRemaining int                       `json:"daysRemaining"`
}

// NewSubscriptionView derives status and days remaining for a record.
func NewSubscriptionView(sub *models.Subscription, now time.Time) *SubscriptionView {
	return &SubscriptionView{
		Subscription:  *sub,
		Status:        common.StatusOf(sub.EndAt, now),
		DaysRemaining: common.DaysRemaining(sub.EndAt, now),
	}
}
