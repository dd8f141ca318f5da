package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/types"
)

// Subscription represents a recurring billing agreement for a customer.
// BillingCycle increments by exactly one per successful charge and never
// decreases. CancelledAt is set iff Status is cancelled; cancellation is
// final.
type Subscription struct {
	ID            string
	CustomerID    string
	Amount        decimal.Decimal
	Currency      string
	Status        types.SubscriptionStatus
	Frequency     types.BillingFrequency
	BillingCycle  int
	NextBillingAt time.Time
	LastBillingAt *time.Time
	CancelledAt   *time.Time
	Metadata      types.Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive returns true while the subscription is billable
func (s *Subscription) IsActive() bool {
	return s.Status == types.SubscriptionStatusActive
}

// IsDue returns true if the subscription should be billed as of the given
// instant
func (s *Subscription) IsDue(asOf time.Time) bool {
	return s.IsActive() && !s.NextBillingAt.After(asOf)
}

// BillingBaseDate is the anchor the next billing date is computed from:
// the last successful billing if there was one, else creation
func (s *Subscription) BillingBaseDate() time.Time {
	if s.LastBillingAt != nil {
		return *s.LastBillingAt
	}
	return s.CreatedAt
}
