package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// Payment records one processor-side charge attempt. Exactly one of
// StripePaymentIntentID / StripeSessionID is set per row. Rows are created
// pending and moved to a terminal status by webhook reconciliation.
type Payment struct {
	ID             string  `gorm:"primaryKey;size:36" json:"id"`
	SubscriptionID *string `gorm:"size:36;index" json:"subscriptionId,omitempty"`

	StripePaymentIntentID *string `gorm:"uniqueIndex;size:255" json:"stripePaymentIntentId,omitempty"`
	StripeSessionID       *string `gorm:"uniqueIndex;size:255" json:"stripeSessionId,omitempty"`

	Amount   int64         `gorm:"not null" json:"amount"` // smallest currency unit
	Currency string        `gorm:"size:3;not null;default:'usd'" json:"currency"`
	Status   PaymentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	PaymentMethod string `gorm:"size:255" json:"paymentMethod,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Payment) TableName() string {
	return "payments"
}
