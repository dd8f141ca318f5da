package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/types"
)

// ChargeStatus is the processor outcome trichotomy. Declined means the
// processor explicitly refused and must never be retried automatically;
// Error means a malformed or unexpected processor response, which an
// external supervisor may retry. The two are never collapsed.
type ChargeStatus string

const (
	StatusSuccess  ChargeStatus = "success"
	StatusDeclined ChargeStatus = "declined"
	StatusError    ChargeStatus = "error"
)

// ContactInfo carries billing or shipping details for an interactive charge
type ContactInfo struct {
	FirstName  string
	LastName   string
	Address1   string
	City       string
	State      string
	PostalCode string
	Country    string
	Email      string
	Phone      string
}

// InitializeRequest begins a three step interactive card entry
type InitializeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	RedirectURL string
	Billing     *ContactInfo
	Shipping    *ContactInfo
}

// InitializeResult carries the hosted form URL the customer is sent to
type InitializeResult struct {
	FormURL string
}

// ChargeResult is the normalized outcome of a money moving call. When
// Status is StatusSuccess a transaction record has already been durably
// persisted; a result is never success without one.
type ChargeResult struct {
	Status        ChargeStatus
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	CardLast4     string
	DeclineCode   string
	Message       string
}

// RefundResult carries the processor's refund transaction id
type RefundResult struct {
	TransactionID string
}

// ChargeCustomerRequest charges a vaulted customer reference, used for both
// subscription rebilling and vault based charges
type ChargeCustomerRequest struct {
	CustomerRef string // gateway side customer/vault reference
	CustomerID  string // our customer id, recorded with the transaction
	Token       string // payment method token
	Amount      decimal.Decimal
	Currency    string
	Kind        types.TransactionKind
	Metadata    types.Metadata
}

// Client is the outbound contract with the external tokenized payment
// processor. Processor refusals and protocol errors are reported inside
// ChargeResult; Go errors are reserved for input validation and transport
// failures (every transport failure is wrapped, never swallowed).
type Client interface {
	InitializeCharge(ctx context.Context, req *InitializeRequest) (*InitializeResult, error)
	CompleteCharge(ctx context.Context, completionToken string) (*ChargeResult, error)
	Refund(ctx context.Context, originalTxnID string, amount decimal.Decimal) (*RefundResult, error)
	ChargeCustomer(ctx context.Context, req *ChargeCustomerRequest) (*ChargeResult, error)
}

// ValidateAmount rejects non positive amounts before any network call
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ierr.NewError("amount must be greater than zero").
			WithHint("Charge amount must be a positive value").
			WithReportableDetails(map[string]any{"amount": amount.String()}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateCurrency rejects malformed currency codes before any network call
func ValidateCurrency(currency string) error {
	if !types.IsValidCurrency(currency) {
		return ierr.NewErrorf("invalid currency code: %s", currency).
			WithHint("Currency must be a 3-letter uppercase ISO 4217 code").
			WithReportableDetails(map[string]any{"currency": currency}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
