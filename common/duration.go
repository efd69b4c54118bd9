package common

import (
	"strings"
	"time"
)

// SubscriptionStatus is derived from the end timestamp at read time and
// never stored.
type SubscriptionStatus string

const (
	StatusActive        SubscriptionStatus = "active"
	StatusExpiringToday SubscriptionStatus = "expiring_today"
	StatusExpired       SubscriptionStatus = "expired"
	StatusPending       SubscriptionStatus = "pending"
)

// durationMonths maps normalized duration codes (lowercased, separators
// stripped) to month counts.
var durationMonths = map[string]int{
	"monthly":   1,
	"1month":    1,
	"3months":   3,
	"quarterly": 3,
	"6months":   6,
	"12months":  12,
	"annual":    12,
	"yearly":    12,
	"1year":     12,
}

// MonthsForDurationCode maps a duration code to a month count. Unknown
// codes map to 0 ("no fixed term") on purpose: one-off programs such as
// profit-plan purchases carry no duration and must not be rejected here.
func MonthsForDurationCode(code string) int {
	normalized := strings.ToLower(strings.TrimSpace(code))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	return durationMonths[normalized]
}

// AddMonthsClamped advances t by the given number of calendar months,
// preserving the day-of-month where the target month has that day and
// clamping to the month's last day otherwise (Jan 31 +1 → Feb 29/28).
// time.AddDate is unsuitable here because it normalizes overflow into the
// following month.
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ComputeEndAt returns nil when months is 0 (no fixed term).
func ComputeEndAt(startAt time.Time, months int) *time.Time {
	if months <= 0 {
		return nil
	}
	end := AddMonthsClamped(startAt, months)
	return &end
}

// DaysRemaining is ceil((endAt - now) / 24h), 0 when there is no end date.
// It goes negative once a subscription is past its end.
func DaysRemaining(endAt *time.Time, now time.Time) int {
	if endAt == nil {
		return 0
	}
	d := endAt.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// StatusOf classifies a subscription by comparing the calendar date of
// endAt with today's calendar date, both in UTC. Comparing dates rather
// than instants keeps a subscription ending any time today reported as
// expiring_today until the day rolls over.
func StatusOf(endAt *time.Time, now time.Time) SubscriptionStatus {
	if endAt == nil {
		return StatusPending
	}
	endDate := endAt.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch {
	case endDate.Before(today):
		return StatusExpired
	case endDate.Equal(today):
		return StatusExpiringToday
	default:
		return StatusActive
	}
}
