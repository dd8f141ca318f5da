package testutil

import (
	"context"
	"time"

	"github.com/codeldorado/rebill/internal/domain/subscription"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	store *InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{store: NewInMemoryStore[*subscription.Subscription]()}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	copied := *sub
	if sub.LastBillingAt != nil {
		t := *sub.LastBillingAt
		copied.LastBillingAt = &t
	}
	if sub.CancelledAt != nil {
		t := *sub.CancelledAt
		copied.CancelledAt = &t
	}
	if sub.Metadata != nil {
		copied.Metadata = sub.Metadata.Merge(nil)
	}
	return &copied
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := s.store.Create(ctx, sub.ID, copySubscription(sub)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription exists with this id").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) ListByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	subs := s.store.List(ctx,
		func(sub *subscription.Subscription) bool { return sub.CustomerID == customerID },
		func(a, b *subscription.Subscription) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
	out := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, copySubscription(sub))
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	subs := s.store.List(ctx,
		func(sub *subscription.Subscription) bool { return sub.IsDue(asOf) },
		func(a, b *subscription.Subscription) bool { return a.NextBillingAt.Before(b.NextBillingAt) },
	)
	out := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, copySubscription(sub))
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) Cancel(ctx context.Context, id string, at time.Time) (bool, error) {
	cancelled := false
	err := s.store.WithLock(func(items map[string]*subscription.Subscription) error {
		sub, ok := items[id]
		if !ok || sub.Status != types.SubscriptionStatusActive {
			return nil
		}
		t := at
		sub.Status = types.SubscriptionStatusCancelled
		sub.CancelledAt = &t
		sub.UpdatedAt = at
		cancelled = true
		return nil
	})
	return cancelled, err
}

func (s *InMemorySubscriptionStore) ApplyBillingSuccess(ctx context.Context, id string, lastBillingAt, nextBillingAt time.Time) (bool, error) {
	applied := false
	err := s.store.WithLock(func(items map[string]*subscription.Subscription) error {
		sub, ok := items[id]
		if !ok || sub.Status != types.SubscriptionStatusActive {
			return nil
		}
		t := lastBillingAt
		sub.LastBillingAt = &t
		sub.NextBillingAt = nextBillingAt
		sub.BillingCycle++
		sub.UpdatedAt = lastBillingAt
		applied = true
		return nil
	})
	return applied, err
}

func (s *InMemorySubscriptionStore) Counts(ctx context.Context) (*subscription.Statistics, error) {
	return &subscription.Statistics{
		Total: s.store.Count(ctx, nil),
		Active: s.store.Count(ctx, func(sub *subscription.Subscription) bool {
			return sub.Status == types.SubscriptionStatusActive
		}),
		Cancelled: s.store.Count(ctx, func(sub *subscription.Subscription) bool {
			return sub.Status == types.SubscriptionStatusCancelled
		}),
	}, nil
}
