package types

import (
	"regexp"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

// PaymentMethodType represents the kind of stored payment method
type PaymentMethodType string

const (
	PaymentMethodTypeCard        PaymentMethodType = "card"
	PaymentMethodTypeBankAccount PaymentMethodType = "bank_account"
)

// Validate checks the method type is one of the closed set
func (t PaymentMethodType) Validate() error {
	switch t {
	case PaymentMethodTypeCard, PaymentMethodTypeBankAccount:
		return nil
	}
	return ierr.NewErrorf("invalid payment method type: %s", t).
		WithHint("Method type must be one of: card, bank_account").
		Mark(ierr.ErrValidation)
}

// TransactionKind classifies durable charge records
type TransactionKind string

const (
	TransactionKindSale   TransactionKind = "sale"
	TransactionKindRebill TransactionKind = "rebill"
	TransactionKindVault  TransactionKind = "vault"
	TransactionKindRefund TransactionKind = "refund"
)

// TransactionStatus is the recorded outcome of a gateway transaction. Only
// approved transactions are ever recorded; declines and errors leave no
// durable record.
type TransactionStatus string

const (
	TransactionStatusApproved TransactionStatus = "approved"
)

var (
	customerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,255}$`)
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
)

// IsValidCustomerID reports whether id is an acceptable customer identifier:
// alphanumerics, underscore and hyphen, 3 to 255 characters
func IsValidCustomerID(id string) bool {
	return customerIDPattern.MatchString(id)
}

// IsValidCurrency reports whether code looks like an ISO 4217 currency code
// (three uppercase letters)
func IsValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}
