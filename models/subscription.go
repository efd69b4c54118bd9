package models

import (
	"time"
)

// Subscription represents a storefront registration: a channel signup, an
// education program, or a one-off profit-plan purchase. Status is never a
// column here; it is derived from EndAt at read time.
type Subscription struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	Name          string `gorm:"size:255;not null" json:"name"`
	Email         string `gorm:"size:255;not null;index" json:"email"`
	ContactHandle string `gorm:"size:255;not null;index" json:"contactHandle"`

	Program     string `gorm:"size:100;not null" json:"program"`
	ChannelType string `gorm:"size:50" json:"channelType,omitempty"`

	DurationCode string `gorm:"size:50" json:"durationCode,omitempty"`
	PlanAmount   string `gorm:"size:50" json:"planAmount,omitempty"`

	// Either a raw storage key or a previously issued signed URL; resolved
	// to a fresh URL on every read.
	DocumentRef string `gorm:"size:2048" json:"documentReference"`

	TermsAccepted bool `gorm:"not null" json:"termsAccepted"`

	// StartAt is nil for term-less plan purchases; EndAt is nil whenever
	// TotalMonths is 0.
	StartAt     *time.Time `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
	TotalMonths int        `gorm:"not null;default:0" json:"totalMonths"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
