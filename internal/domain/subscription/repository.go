package subscription

import (
	"context"
	"time"
)

// Statistics holds point in time aggregate counts
type Statistics struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Cancelled int `json:"cancelled"`
}

// Repository defines the persistence contract for subscriptions.
//
// Cancel and ApplyBillingSuccess are conditional single statement updates:
// they must be atomic against concurrent batch processing so that a
// cancellation racing a due-batch run can never resurrect billing fields,
// and a successful charge advances cycle and dates exactly once.
type Repository interface {
	// Create persists a new subscription
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by its external id
	Get(ctx context.Context, id string) (*Subscription, error)

	// ListByCustomer retrieves all subscriptions for a customer, newest first
	ListByCustomer(ctx context.Context, customerID string) ([]*Subscription, error)

	// ListDue retrieves every active subscription with next_billing_at <= asOf,
	// ordered by next_billing_at ascending so the longest overdue accounts are
	// processed first
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)

	// Cancel marks an active subscription cancelled at the given instant.
	// Returns false without error if the subscription does not exist or is
	// already cancelled.
	Cancel(ctx context.Context, id string, at time.Time) (bool, error)

	// ApplyBillingSuccess atomically records a successful charge: sets
	// last_billing_at and next_billing_at and increments billing_cycle by one,
	// only while the subscription is still active. Returns false if the
	// subscription was cancelled between selection and execution.
	ApplyBillingSuccess(ctx context.Context, id string, lastBillingAt, nextBillingAt time.Time) (bool, error)

	// Counts returns aggregate subscription counts
	Counts(ctx context.Context) (*Statistics, error)
}
