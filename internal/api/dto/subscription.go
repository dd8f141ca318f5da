package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/domain/subscription"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/types"
)

// CreateSubscriptionRequest represents the request to create a new
// recurring subscription
type CreateSubscriptionRequest struct {
	CustomerID string                 `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal        `json:"amount" validate:"required"`
	Currency   string                 `json:"currency" validate:"required"`
	Frequency  types.BillingFrequency `json:"frequency" validate:"required"`
	Metadata   types.Metadata         `json:"metadata,omitempty"`
}

// Validate checks every field and reports the full set of violations in a
// single error, not just the first one found.
func (r *CreateSubscriptionRequest) Validate(maxAmount decimal.Decimal) error {
	violations := make(map[string]any)

	if !types.IsValidCustomerID(r.CustomerID) {
		violations["customer_id"] = "must be 3-255 characters of letters, digits, underscore or hyphen"
	}
	if !r.Amount.IsPositive() {
		violations["amount"] = "must be greater than zero"
	} else if r.Amount.GreaterThan(maxAmount) {
		violations["amount"] = "exceeds the maximum charge amount of " + maxAmount.String()
	}
	if !types.IsValidCurrency(r.Currency) {
		violations["currency"] = "must be a 3-letter uppercase ISO 4217 code"
	}
	if err := r.Frequency.Validate(); err != nil {
		violations["frequency"] = "must be one of: daily, weekly, monthly, yearly"
	}

	if len(violations) > 0 {
		return ierr.NewError("invalid subscription request").
			WithHint("One or more subscription fields are invalid").
			WithReportableDetails(violations).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToSubscription converts the request to a subscription domain model. The
// first billing date is one full period after creation.
func (r *CreateSubscriptionRequest) ToSubscription(now time.Time) (*subscription.Subscription, error) {
	next, err := r.Frequency.NextBillingDate(now)
	if err != nil {
		return nil, err
	}
	return &subscription.Subscription{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:    r.CustomerID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Status:        types.SubscriptionStatusActive,
		Frequency:     r.Frequency,
		BillingCycle:  0,
		NextBillingAt: next,
		Metadata:      r.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	ID            string                   `json:"id"`
	CustomerID    string                   `json:"customer_id"`
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency"`
	Status        types.SubscriptionStatus `json:"status"`
	Frequency     types.BillingFrequency   `json:"frequency"`
	BillingCycle  int                      `json:"billing_cycle"`
	NextBillingAt time.Time                `json:"next_billing_at"`
	LastBillingAt *time.Time               `json:"last_billing_at,omitempty"`
	CancelledAt   *time.Time               `json:"cancelled_at,omitempty"`
	Metadata      types.Metadata           `json:"metadata,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// NewSubscriptionResponse creates a response from a subscription domain model
func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	if sub == nil {
		return nil
	}
	return &SubscriptionResponse{
		ID:            sub.ID,
		CustomerID:    sub.CustomerID,
		Amount:        sub.Amount,
		Currency:      sub.Currency,
		Status:        sub.Status,
		Frequency:     sub.Frequency,
		BillingCycle:  sub.BillingCycle,
		NextBillingAt: sub.NextBillingAt,
		LastBillingAt: sub.LastBillingAt,
		CancelledAt:   sub.CancelledAt,
		Metadata:      sub.Metadata,
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
}

// CancelSubscriptionResponse reports whether this call performed the
// cancellation. Cancelled is false when the subscription was missing or
// already cancelled; Subscription carries the final state when one exists.
type CancelSubscriptionResponse struct {
	Cancelled    bool                  `json:"cancelled"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

// ListSubscriptionsResponse wraps a customer's subscriptions
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}

// BillingAttemptResult is the per-subscription outcome of a due-batch run
type BillingAttemptResult struct {
	SubscriptionID string `json:"subscription_id"`
	Outcome        string `json:"outcome"` // success, declined, error, skipped
	TransactionID  string `json:"transaction_id,omitempty"`
	DeclineCode    string `json:"decline_code,omitempty"`
	Message        string `json:"message,omitempty"`
	BillingCycle   int    `json:"billing_cycle,omitempty"`
}

// ProcessDueResponse summarizes a due-batch run. A failure on one
// subscription never affects the rest; every outcome is reported.
type ProcessDueResponse struct {
	Processed int                     `json:"processed"`
	Succeeded int                     `json:"succeeded"`
	Declined  int                     `json:"declined"`
	Failed    int                     `json:"failed"`
	Skipped   int                     `json:"skipped"`
	Results   []*BillingAttemptResult `json:"results"`
}

// StatisticsResponse carries aggregate subscription counts
type StatisticsResponse struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Cancelled int `json:"cancelled"`
}

// NewStatisticsResponse creates a response from domain statistics
func NewStatisticsResponse(stats *subscription.Statistics) *StatisticsResponse {
	if stats == nil {
		return nil
	}
	return &StatisticsResponse{
		Total:     stats.Total,
		Active:    stats.Active,
		Cancelled: stats.Cancelled,
	}
}
