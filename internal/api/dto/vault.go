package dto

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/domain/vault"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/types"
)

var (
	expiryMonthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	expiryYearPattern  = regexp.MustCompile(`^\d{4}$`)
)

// StorePaymentMethodRequest represents the request to add a tokenized
// payment method to a customer's vault
type StorePaymentMethodRequest struct {
	CustomerID         string                  `json:"customer_id" validate:"required"`
	GatewayCustomerRef string                  `json:"gateway_customer_ref" validate:"required"`
	Token              string                  `json:"token" validate:"required"`
	MethodType         types.PaymentMethodType `json:"method_type" validate:"required"`
	CardLast4          *string                 `json:"card_last4,omitempty"`
	CardBrand          *string                 `json:"card_brand,omitempty"`
	ExpiryMonth        *string                 `json:"expiry_month,omitempty"`
	ExpiryYear         *string                 `json:"expiry_year,omitempty"`
	BillingName        *string                 `json:"billing_name,omitempty"`
	BillingAddress     *string                 `json:"billing_address,omitempty"`
	Metadata           types.Metadata          `json:"metadata,omitempty"`
}

// Validate checks every field and reports the full set of violations
func (r *StorePaymentMethodRequest) Validate() error {
	violations := make(map[string]any)

	if !types.IsValidCustomerID(r.CustomerID) {
		violations["customer_id"] = "must be 3-255 characters of letters, digits, underscore or hyphen"
	}
	if r.GatewayCustomerRef == "" {
		violations["gateway_customer_ref"] = "this field is required"
	}
	if r.Token == "" {
		violations["token"] = "this field is required"
	}
	if err := r.MethodType.Validate(); err != nil {
		violations["method_type"] = "must be one of: card, bank_account"
	}
	if r.ExpiryMonth != nil && !expiryMonthPattern.MatchString(*r.ExpiryMonth) {
		violations["expiry_month"] = "must be a two digit month, 01 through 12"
	}
	if r.ExpiryYear != nil && !expiryYearPattern.MatchString(*r.ExpiryYear) {
		violations["expiry_year"] = "must be a four digit year"
	}
	if (r.ExpiryMonth == nil) != (r.ExpiryYear == nil) {
		violations["expiry"] = "expiry month and year must be provided together"
	}

	if len(violations) > 0 {
		return ierr.NewError("invalid payment method request").
			WithHint("One or more payment method fields are invalid").
			WithReportableDetails(violations).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToPaymentMethod converts the request to a vault domain model. IsDefault is
// decided by the store at insert time, never here.
func (r *StorePaymentMethodRequest) ToPaymentMethod(now time.Time) *vault.PaymentMethod {
	return &vault.PaymentMethod{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		CustomerID:         r.CustomerID,
		GatewayCustomerRef: r.GatewayCustomerRef,
		Token:              r.Token,
		MethodType:         r.MethodType,
		CardLast4:          r.CardLast4,
		CardBrand:          r.CardBrand,
		ExpiryMonth:        r.ExpiryMonth,
		ExpiryYear:         r.ExpiryYear,
		BillingName:        r.BillingName,
		BillingAddress:     r.BillingAddress,
		IsActive:           true,
		Metadata:           r.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// PaymentMethodResponse represents a vault entry in API responses. The raw
// token is never exposed.
type PaymentMethodResponse struct {
	ID                 string                  `json:"id"`
	CustomerID         string                  `json:"customer_id"`
	GatewayCustomerRef string                  `json:"gateway_customer_ref"`
	MethodType         types.PaymentMethodType `json:"method_type"`
	CardLast4          *string                 `json:"card_last4,omitempty"`
	CardBrand          *string                 `json:"card_brand,omitempty"`
	ExpiryMonth        *string                 `json:"expiry_month,omitempty"`
	ExpiryYear         *string                 `json:"expiry_year,omitempty"`
	BillingName        *string                 `json:"billing_name,omitempty"`
	IsActive           bool                    `json:"is_active"`
	IsDefault          bool                    `json:"is_default"`
	LastUsedAt         *time.Time              `json:"last_used_at,omitempty"`
	Metadata           types.Metadata          `json:"metadata,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// NewPaymentMethodResponse creates a response from a vault domain model
func NewPaymentMethodResponse(pm *vault.PaymentMethod) *PaymentMethodResponse {
	if pm == nil {
		return nil
	}
	return &PaymentMethodResponse{
		ID:                 pm.ID,
		CustomerID:         pm.CustomerID,
		GatewayCustomerRef: pm.GatewayCustomerRef,
		MethodType:         pm.MethodType,
		CardLast4:          pm.CardLast4,
		CardBrand:          pm.CardBrand,
		ExpiryMonth:        pm.ExpiryMonth,
		ExpiryYear:         pm.ExpiryYear,
		BillingName:        pm.BillingName,
		IsActive:           pm.IsActive,
		IsDefault:          pm.IsDefault,
		LastUsedAt:         pm.LastUsedAt,
		Metadata:           pm.Metadata,
		CreatedAt:          pm.CreatedAt,
		UpdatedAt:          pm.UpdatedAt,
	}
}

// VaultUpdateResponse reports whether a set-default or deactivate call
// changed the entry. Changed is false when the entry was missing or not in
// a state the operation applies to; PaymentMethod carries the final state
// when one exists.
type VaultUpdateResponse struct {
	Changed       bool                   `json:"changed"`
	PaymentMethod *PaymentMethodResponse `json:"payment_method,omitempty"`
}

// ListPaymentMethodsResponse wraps a customer's active vault entries
type ListPaymentMethodsResponse struct {
	Items []*PaymentMethodResponse `json:"items"`
	Total int                      `json:"total"`
}

// ChargeVaultRequest represents a charge against a stored payment method.
// When PaymentMethodID is empty the customer's default entry is used.
type ChargeVaultRequest struct {
	CustomerID      string          `json:"customer_id" validate:"required"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Currency        string          `json:"currency" validate:"required"`
	Metadata        types.Metadata  `json:"metadata,omitempty"`
}

// Validate checks every field and reports the full set of violations
func (r *ChargeVaultRequest) Validate(maxAmount decimal.Decimal) error {
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

	if len(violations) > 0 {
		return ierr.NewError("invalid vault charge request").
			WithHint("One or more charge fields are invalid").
			WithReportableDetails(violations).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CleanupExpiredResponse summarizes an expired-card cleanup run
type CleanupExpiredResponse struct {
	Deactivated int      `json:"deactivated"`
	IDs         []string `json:"ids,omitempty"`
}
