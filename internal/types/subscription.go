package types

import (
	"time"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Validate checks the status is one of the closed set
func (s SubscriptionStatus) Validate() error {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusCancelled:
		return nil
	}
	return ierr.NewErrorf("invalid subscription status: %s", s).
		WithHint("Status must be one of: active, cancelled").
		Mark(ierr.ErrValidation)
}

// BillingFrequency represents how often a subscription is charged
type BillingFrequency string

const (
	BillingFrequencyDaily   BillingFrequency = "daily"
	BillingFrequencyWeekly  BillingFrequency = "weekly"
	BillingFrequencyMonthly BillingFrequency = "monthly"
	BillingFrequencyYearly  BillingFrequency = "yearly"
)

// BillingFrequencies lists every valid frequency value
var BillingFrequencies = []BillingFrequency{
	BillingFrequencyDaily,
	BillingFrequencyWeekly,
	BillingFrequencyMonthly,
	BillingFrequencyYearly,
}

// Validate checks the frequency is one of the closed set
func (f BillingFrequency) Validate() error {
	switch f {
	case BillingFrequencyDaily, BillingFrequencyWeekly, BillingFrequencyMonthly, BillingFrequencyYearly:
		return nil
	}
	return ierr.NewErrorf("invalid billing frequency: %s", f).
		WithHint("Frequency must be one of: daily, weekly, monthly, yearly").
		WithReportableDetails(map[string]any{"frequency": string(f)}).
		Mark(ierr.ErrValidation)
}

// NextBillingDate returns base advanced by exactly one billing interval.
// Month and year arithmetic is calendar correct: the day of month is
// preserved where the target month has that day and clamped to the last day
// otherwise, so a monthly subscription created on Jan 31 bills next on
// Feb 28 (or Feb 29), not Mar 3.
//
// An unrecognized frequency is an invariant violation, never silently
// defaulted: the store only ever holds validated values, so reaching the
// default arm means a programming error upstream.
func (f BillingFrequency) NextBillingDate(base time.Time) (time.Time, error) {
	switch f {
	case BillingFrequencyDaily:
		return base.AddDate(0, 0, 1), nil
	case BillingFrequencyWeekly:
		return base.AddDate(0, 0, 7), nil
	case BillingFrequencyMonthly:
		return addMonthsClamped(base, 1), nil
	case BillingFrequencyYearly:
		return addYearsClamped(base, 1), nil
	}
	return time.Time{}, ierr.NewErrorf("unrecognized billing frequency: %s", f).
		WithHint("Billing frequency is corrupt for this subscription").
		WithReportableDetails(map[string]any{"frequency": string(f)}).
		Mark(ierr.ErrInvalidFrequency)
}

// addMonthsClamped adds calendar months, clamping the day of month to the
// last day of the target month. time.AddDate normalizes overflow (Jan 31 +
// 1 month = Mar 3), which is wrong for billing anchors.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYearsClamped adds calendar years, clamping Feb 29 to Feb 28 on
// non-leap target years
func addYearsClamped(t time.Time, years int) time.Time {
	year, month, day := t.Date()
	if last := daysInMonth(year+years, month); day > last {
		day = last
	}
	return time.Date(year+years, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
