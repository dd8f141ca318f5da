package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	domainSub "github.com/codeldorado/rebill/internal/domain/subscription"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/types"
)

type subscriptionRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSubscriptionRepository creates a new postgres subscription repository
func NewSubscriptionRepository(db *sql.DB, logger *logger.Logger) domainSub.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `id, customer_id, amount, currency, status, frequency,
	billing_cycle, next_billing_at, last_billing_at, cancelled_at, metadata, created_at, updated_at`

func (r *subscriptionRepository) Create(ctx context.Context, sub *domainSub.Subscription) error {
	span := StartRepositorySpan(ctx, "subscription", "create", map[string]interface{}{
		"subscription_id": sub.ID,
		"customer_id":     sub.CustomerID,
	})
	defer FinishSpan(span)

	metadata, err := marshalMetadata(sub.Metadata)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	query := `
		INSERT INTO subscriptions (id, customer_id, amount, currency, status, frequency,
			billing_cycle, next_billing_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.CustomerID, sub.Amount.String(), sub.Currency, string(sub.Status),
		string(sub.Frequency), sub.BillingCycle, sub.NextBillingAt, metadata,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*domainSub.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "get", map[string]interface{}{
		"subscription_id": id,
	})
	defer FinishSpan(span)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		SetSpanError(span, err)
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription exists with this id").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return sub, nil
}

func (r *subscriptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domainSub.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "list_by_customer", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	subs, err := collectSubscriptions(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	return subs, nil
}

func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domainSub.Subscription, error) {
	span := StartRepositorySpan(ctx, "subscription", "list_due", map[string]interface{}{
		"as_of": asOf,
	})
	defer FinishSpan(span)

	// Earliest due first bounds worst case staleness for the longest
	// overdue accounts.
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = 'active' AND next_billing_at <= $1
		 ORDER BY next_billing_at ASC`, asOf)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list due subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	subs, err := collectSubscriptions(rows)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	SetSpanSuccess(span)
	return subs, nil
}

func (r *subscriptionRepository) Cancel(ctx context.Context, id string, at time.Time) (bool, error) {
	span := StartRepositorySpan(ctx, "subscription", "cancel", map[string]interface{}{
		"subscription_id": id,
	})
	defer FinishSpan(span)

	// Conditional single statement update: already cancelled or missing
	// rows match nothing, so cancelled_at is never overwritten.
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		 WHERE id = $1 AND status = 'active'`, id, at)
	if err != nil {
		SetSpanError(span, err)
		return false, ierr.WithError(err).
			WithHint("Failed to cancel subscription").
			Mark(ierr.ErrDatabase)
	}

	affected, _ := res.RowsAffected()
	SetSpanSuccess(span)
	return affected > 0, nil
}

func (r *subscriptionRepository) ApplyBillingSuccess(ctx context.Context, id string, lastBillingAt, nextBillingAt time.Time) (bool, error) {
	span := StartRepositorySpan(ctx, "subscription", "apply_billing_success", map[string]interface{}{
		"subscription_id": id,
	})
	defer FinishSpan(span)

	// One atomic statement: a cancellation racing the batch run makes this
	// a no-op instead of resurrecting billing fields.
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET last_billing_at = $2,
		     next_billing_at = $3,
		     billing_cycle = billing_cycle + 1,
		     updated_at = now()
		 WHERE id = $1 AND status = 'active'`, id, lastBillingAt, nextBillingAt)
	if err != nil {
		SetSpanError(span, err)
		return false, ierr.WithError(err).
			WithHint("Failed to record billing success").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrDatabase)
	}

	affected, _ := res.RowsAffected()
	SetSpanSuccess(span)
	return affected > 0, nil
}

func (r *subscriptionRepository) Counts(ctx context.Context) (*domainSub.Statistics, error) {
	span := StartRepositorySpan(ctx, "subscription", "counts", nil)
	defer FinishSpan(span)

	var stats domainSub.Statistics
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'active'),
		        count(*) FILTER (WHERE status = 'cancelled')
		 FROM subscriptions`).Scan(&stats.Total, &stats.Active, &stats.Cancelled)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domainSub.Subscription, error) {
	var (
		sub           domainSub.Subscription
		amount        string
		status        string
		frequency     string
		lastBillingAt sql.NullTime
		cancelledAt   sql.NullTime
		metadata      []byte
	)
	err := row.Scan(&sub.ID, &sub.CustomerID, &amount, &sub.Currency, &status, &frequency,
		&sub.BillingCycle, &sub.NextBillingAt, &lastBillingAt, &cancelledAt, &metadata,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sub.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	sub.Status = types.SubscriptionStatus(status)
	sub.Frequency = types.BillingFrequency(frequency)
	if lastBillingAt.Valid {
		t := lastBillingAt.Time
		sub.LastBillingAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		sub.CancelledAt = &t
	}
	sub.Metadata, err = unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows *sql.Rows) ([]*domainSub.Subscription, error) {
	var subs []*domainSub.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription row").
				Mark(ierr.ErrDatabase)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate subscription rows").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func marshalMetadata(m types.Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode metadata").
			Mark(ierr.ErrInternal)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (types.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m types.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode metadata").
			Mark(ierr.ErrInternal)
	}
	return m, nil
}
