package vault

import (
	"context"
	"time"
)

// Repository defines the persistence contract for the payment method vault.
//
// The single-default-per-customer invariant is guaranteed here, not in the
// service layer: Create decides first-entry default with one conditional
// insert, SetDefault clears and sets inside one transaction, and Deactivate
// performs the default hand-off in the same unit as the deactivation, so
// concurrent calls for the same customer can never leave two defaults.
type Repository interface {
	// Create persists a new vault entry. The store sets IsDefault on the
	// created entry iff the customer has no other active entry, as a single
	// conditional statement. The stored entry is reflected back in pm.
	Create(ctx context.Context, pm *PaymentMethod) error

	// Get retrieves a vault entry by its external id
	Get(ctx context.Context, id string) (*PaymentMethod, error)

	// ListActive retrieves a customer's active entries, default first, then
	// newest created first
	ListActive(ctx context.Context, customerID string) ([]*PaymentMethod, error)

	// GetDefault retrieves the customer's default active entry. Returns a
	// not found error if the customer has no default.
	GetDefault(ctx context.Context, customerID string) (*PaymentMethod, error)

	// SetDefault makes the entry the customer's only default, unsetting every
	// other active entry in the same unit. Returns false without error if the
	// entry is missing or inactive.
	SetDefault(ctx context.Context, id string) (bool, error)

	// Deactivate soft-deactivates the entry and clears its default flag. If
	// the entry was the default, the most recently created remaining active
	// entry for the customer is promoted in the same unit. Returns false
	// without error if the entry is missing or already inactive.
	Deactivate(ctx context.Context, id string) (bool, error)

	// MarkUsed stamps last_used_at after a successful vault charge
	MarkUsed(ctx context.Context, id string, at time.Time) error

	// ListExpired retrieves active card entries whose (expiry_year,
	// expiry_month) is strictly before the month of now. Already deactivated
	// entries are excluded by construction, so repeated cleanup runs are
	// idempotent.
	ListExpired(ctx context.Context, now time.Time) ([]*PaymentMethod, error)
}
