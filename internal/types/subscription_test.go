package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name      string
		frequency BillingFrequency
		base      time.Time
		want      time.Time
	}{
		{
			name:      "daily advances one day",
			frequency: BillingFrequencyDaily,
			base:      date(2025, time.March, 15),
			want:      date(2025, time.March, 16),
		},
		{
			name:      "daily crosses month boundary",
			frequency: BillingFrequencyDaily,
			base:      date(2025, time.January, 31),
			want:      date(2025, time.February, 1),
		},
		{
			name:      "weekly advances seven days",
			frequency: BillingFrequencyWeekly,
			base:      date(2025, time.March, 15),
			want:      date(2025, time.March, 22),
		},
		{
			name:      "monthly preserves day when target month has it",
			frequency: BillingFrequencyMonthly,
			base:      date(2025, time.March, 15),
			want:      date(2025, time.April, 15),
		},
		{
			name:      "monthly clamps Jan 31 to Feb 28",
			frequency: BillingFrequencyMonthly,
			base:      date(2025, time.January, 31),
			want:      date(2025, time.February, 28),
		},
		{
			name:      "monthly clamps Jan 31 to Feb 29 in a leap year",
			frequency: BillingFrequencyMonthly,
			base:      date(2024, time.January, 31),
			want:      date(2024, time.February, 29),
		},
		{
			name:      "monthly clamps Oct 31 to Nov 30",
			frequency: BillingFrequencyMonthly,
			base:      date(2025, time.October, 31),
			want:      date(2025, time.November, 30),
		},
		{
			name:      "monthly crosses year boundary",
			frequency: BillingFrequencyMonthly,
			base:      date(2025, time.December, 15),
			want:      date(2026, time.January, 15),
		},
		{
			name:      "yearly preserves day",
			frequency: BillingFrequencyYearly,
			base:      date(2025, time.June, 10),
			want:      date(2026, time.June, 10),
		},
		{
			name:      "yearly clamps Feb 29 to Feb 28 on non-leap target",
			frequency: BillingFrequencyYearly,
			base:      date(2024, time.February, 29),
			want:      date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.frequency.NextBillingDate(tt.base)
			assert.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNextBillingDatePreservesTimeOfDay(t *testing.T) {
	base := time.Date(2025, time.January, 31, 23, 45, 12, 0, time.UTC)
	got, err := BillingFrequencyMonthly.NextBillingDate(base)
	assert.NoError(t, err)
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, 45, got.Minute())
	assert.Equal(t, 12, got.Second())
}

func TestNextBillingDateUnknownFrequency(t *testing.T) {
	_, err := BillingFrequency("quarterly").NextBillingDate(date(2025, time.March, 15))
	assert.Error(t, err)
	assert.True(t, ierr.IsInvalidFrequency(err))
}

func TestBillingFrequencyValidate(t *testing.T) {
	for _, f := range BillingFrequencies {
		assert.NoError(t, f.Validate())
	}
	assert.Error(t, BillingFrequency("hourly").Validate())
	assert.Error(t, BillingFrequency("").Validate())
}

func TestSubscriptionStatusValidate(t *testing.T) {
	assert.NoError(t, SubscriptionStatusActive.Validate())
	assert.NoError(t, SubscriptionStatusCancelled.Validate())
	assert.Error(t, SubscriptionStatus("paused").Validate())
}
