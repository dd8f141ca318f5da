package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/codeldorado/rebill/internal/domain/vault"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/types"
)

// InMemoryVaultStore implements vault.Repository with the same atomicity
// guarantees as the postgres store: first-entry default, clear-then-set,
// and deactivation hand-off all run under one lock.
type InMemoryVaultStore struct {
	store *InMemoryStore[*vault.PaymentMethod]
}

// NewInMemoryVaultStore creates a new in-memory vault store
func NewInMemoryVaultStore() *InMemoryVaultStore {
	return &InMemoryVaultStore{store: NewInMemoryStore[*vault.PaymentMethod]()}
}

func copyPaymentMethod(pm *vault.PaymentMethod) *vault.PaymentMethod {
	if pm == nil {
		return nil
	}
	copied := *pm
	copied.CardLast4 = copyString(pm.CardLast4)
	copied.CardBrand = copyString(pm.CardBrand)
	copied.ExpiryMonth = copyString(pm.ExpiryMonth)
	copied.ExpiryYear = copyString(pm.ExpiryYear)
	copied.BillingName = copyString(pm.BillingName)
	copied.BillingAddress = copyString(pm.BillingAddress)
	if pm.LastUsedAt != nil {
		t := *pm.LastUsedAt
		copied.LastUsedAt = &t
	}
	if pm.Metadata != nil {
		copied.Metadata = pm.Metadata.Merge(nil)
	}
	return &copied
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (s *InMemoryVaultStore) Create(ctx context.Context, pm *vault.PaymentMethod) error {
	if pm == nil {
		return ierr.NewError("payment method cannot be nil").
			WithHint("Payment method cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.store.WithLock(func(items map[string]*vault.PaymentMethod) error {
		if _, ok := items[pm.ID]; ok {
			return ierr.NewError("payment method already exists").
				WithReportableDetails(map[string]any{"payment_method_id": pm.ID}).
				Mark(ierr.ErrAlreadyExists)
		}
		// First active entry for the customer becomes default, decided in
		// the same locked section as the insert.
		hasActive := false
		for _, other := range items {
			if other.CustomerID == pm.CustomerID && other.IsActive {
				hasActive = true
				break
			}
		}
		pm.IsActive = true
		pm.IsDefault = !hasActive
		items[pm.ID] = copyPaymentMethod(pm)
		return nil
	})
}

func (s *InMemoryVaultStore) Get(ctx context.Context, id string) (*vault.PaymentMethod, error) {
	pm, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("payment method not found").
			WithHint("No payment method exists with this id").
			WithReportableDetails(map[string]any{"payment_method_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copyPaymentMethod(pm), nil
}

func (s *InMemoryVaultStore) ListActive(ctx context.Context, customerID string) ([]*vault.PaymentMethod, error) {
	methods := s.store.List(ctx,
		func(pm *vault.PaymentMethod) bool { return pm.CustomerID == customerID && pm.IsActive },
		func(a, b *vault.PaymentMethod) bool {
			if a.IsDefault != b.IsDefault {
				return a.IsDefault
			}
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
	out := make([]*vault.PaymentMethod, 0, len(methods))
	for _, pm := range methods {
		out = append(out, copyPaymentMethod(pm))
	}
	return out, nil
}

func (s *InMemoryVaultStore) GetDefault(ctx context.Context, customerID string) (*vault.PaymentMethod, error) {
	methods := s.store.List(ctx,
		func(pm *vault.PaymentMethod) bool {
			return pm.CustomerID == customerID && pm.IsActive && pm.IsDefault
		}, nil)
	if len(methods) == 0 {
		return nil, ierr.NewError("no default payment method").
			WithHint("The customer has no default payment method").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrNotFound)
	}
	return copyPaymentMethod(methods[0]), nil
}

func (s *InMemoryVaultStore) SetDefault(ctx context.Context, id string) (bool, error) {
	ok := false
	err := s.store.WithLock(func(items map[string]*vault.PaymentMethod) error {
		target, found := items[id]
		if !found || !target.IsActive {
			return nil
		}
		for _, other := range items {
			if other.CustomerID == target.CustomerID && other.IsActive {
				other.IsDefault = false
			}
		}
		target.IsDefault = true
		target.UpdatedAt = time.Now().UTC()
		ok = true
		return nil
	})
	return ok, err
}

func (s *InMemoryVaultStore) Deactivate(ctx context.Context, id string) (bool, error) {
	ok := false
	err := s.store.WithLock(func(items map[string]*vault.PaymentMethod) error {
		target, found := items[id]
		if !found || !target.IsActive {
			return nil
		}
		wasDefault := target.IsDefault
		target.IsActive = false
		target.IsDefault = false
		target.UpdatedAt = time.Now().UTC()
		ok = true

		if !wasDefault {
			return nil
		}
		var successor *vault.PaymentMethod
		for _, other := range items {
			if other.CustomerID != target.CustomerID || !other.IsActive {
				continue
			}
			if successor == nil || other.CreatedAt.After(successor.CreatedAt) {
				successor = other
			}
		}
		if successor != nil {
			successor.IsDefault = true
		}
		return nil
	})
	return ok, err
}

func (s *InMemoryVaultStore) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return s.store.WithLock(func(items map[string]*vault.PaymentMethod) error {
		pm, ok := items[id]
		if !ok {
			return ierr.NewError("payment method not found").
				WithReportableDetails(map[string]any{"payment_method_id": id}).
				Mark(ierr.ErrNotFound)
		}
		t := at
		pm.LastUsedAt = &t
		pm.UpdatedAt = at
		return nil
	})
}

func (s *InMemoryVaultStore) ListExpired(ctx context.Context, now time.Time) ([]*vault.PaymentMethod, error) {
	cutoff := fmt.Sprintf("%04d%02d", now.Year(), int(now.Month()))
	methods := s.store.List(ctx,
		func(pm *vault.PaymentMethod) bool {
			if !pm.IsActive || pm.MethodType != types.PaymentMethodTypeCard {
				return false
			}
			if pm.ExpiryMonth == nil || pm.ExpiryYear == nil {
				return false
			}
			return *pm.ExpiryYear+*pm.ExpiryMonth < cutoff
		},
		func(a, b *vault.PaymentMethod) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	out := make([]*vault.PaymentMethod, 0, len(methods))
	for _, pm := range methods {
		out = append(out, copyPaymentMethod(pm))
	}
	return out, nil
}
