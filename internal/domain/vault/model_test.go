package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestPaymentMethodIsExpired(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiryMonth *string
		expiryYear  *string
		want        bool
	}{
		{
			name:        "long expired card",
			expiryMonth: strPtr("01"),
			expiryYear:  strPtr("2020"),
			want:        true,
		},
		{
			name:        "far future card",
			expiryMonth: strPtr("12"),
			expiryYear:  strPtr("2099"),
			want:        false,
		},
		{
			name:        "expired last month",
			expiryMonth: strPtr("05"),
			expiryYear:  strPtr("2025"),
			want:        true,
		},
		{
			name:        "valid through the current month",
			expiryMonth: strPtr("06"),
			expiryYear:  strPtr("2025"),
			want:        false,
		},
		{
			name:        "valid next month",
			expiryMonth: strPtr("07"),
			expiryYear:  strPtr("2025"),
			want:        false,
		},
		{
			name: "no expiry data never expires",
			want: false,
		},
		{
			name:        "month without year never expires",
			expiryMonth: strPtr("05"),
			want:        false,
		},
		{
			name:        "garbage month never expires",
			expiryMonth: strPtr("xx"),
			expiryYear:  strPtr("2020"),
			want:        false,
		},
		{
			name:        "out of range month never expires",
			expiryMonth: strPtr("13"),
			expiryYear:  strPtr("2020"),
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := &PaymentMethod{ExpiryMonth: tt.expiryMonth, ExpiryYear: tt.expiryYear}
			assert.Equal(t, tt.want, pm.IsExpired(now))
		})
	}
}

func TestPaymentMethodExpiresAtMonthBoundary(t *testing.T) {
	pm := &PaymentMethod{ExpiryMonth: strPtr("06"), ExpiryYear: strPtr("2025")}

	lastInstant := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)
	assert.False(t, pm.IsExpired(lastInstant))

	firstInstantAfter := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, pm.IsExpired(firstInstantAfter))
}

func TestPaymentMethodDecemberExpiry(t *testing.T) {
	pm := &PaymentMethod{ExpiryMonth: strPtr("12"), ExpiryYear: strPtr("2025")}

	assert.False(t, pm.IsExpired(time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)))
	assert.True(t, pm.IsExpired(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
