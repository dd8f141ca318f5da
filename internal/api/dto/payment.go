package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/types"
)

// ContactDetails carries billing or shipping information for an interactive
// checkout
type ContactDetails struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Address1   string `json:"address1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (c *ContactDetails) toGateway() *gateway.ContactInfo {
	if c == nil {
		return nil
	}
	return &gateway.ContactInfo{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Address1:   c.Address1,
		City:       c.City,
		State:      c.State,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Email:      c.Email,
		Phone:      c.Phone,
	}
}

// BeginCheckoutRequest starts a three step interactive card entry
type BeginCheckoutRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required"`
	RedirectURL string          `json:"redirect_url" validate:"required,url"`
	Billing     *ContactDetails `json:"billing,omitempty"`
	Shipping    *ContactDetails `json:"shipping,omitempty"`
}

// Validate checks every field and reports the full set of violations
func (r *BeginCheckoutRequest) Validate(maxAmount decimal.Decimal) error {
	violations := make(map[string]any)

	if !r.Amount.IsPositive() {
		violations["amount"] = "must be greater than zero"
	} else if r.Amount.GreaterThan(maxAmount) {
		violations["amount"] = "exceeds the maximum charge amount of " + maxAmount.String()
	}
	if !types.IsValidCurrency(r.Currency) {
		violations["currency"] = "must be a 3-letter uppercase ISO 4217 code"
	}
	if r.RedirectURL == "" {
		violations["redirect_url"] = "this field is required"
	}

	if len(violations) > 0 {
		return ierr.NewError("invalid checkout request").
			WithHint("One or more checkout fields are invalid").
			WithReportableDetails(violations).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToInitializeRequest converts the request to the gateway contract
func (r *BeginCheckoutRequest) ToInitializeRequest() *gateway.InitializeRequest {
	return &gateway.InitializeRequest{
		Amount:      r.Amount,
		Currency:    r.Currency,
		RedirectURL: r.RedirectURL,
		Billing:     r.Billing.toGateway(),
		Shipping:    r.Shipping.toGateway(),
	}
}

// BeginCheckoutResponse carries the hosted form URL
type BeginCheckoutResponse struct {
	FormURL string `json:"form_url"`
}

// CompleteCheckoutRequest finishes a three step charge with the token the
// gateway redirect carried back
type CompleteCheckoutRequest struct {
	TokenID string `json:"token_id" validate:"required"`
}

// Validate checks the completion token is present
func (r *CompleteCheckoutRequest) Validate() error {
	if r.TokenID == "" {
		return ierr.NewError("token_id is required").
			WithHint("Completion token is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ChargeResponse is the API form of a gateway charge outcome
type ChargeResponse struct {
	Status        gateway.ChargeStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency,omitempty"`
	CardLast4     string               `json:"card_last4,omitempty"`
	DeclineCode   string               `json:"decline_code,omitempty"`
	Message       string               `json:"message,omitempty"`
}

// NewChargeResponse creates a response from a gateway charge result
func NewChargeResponse(result *gateway.ChargeResult) *ChargeResponse {
	if result == nil {
		return nil
	}
	return &ChargeResponse{
		Status:        result.Status,
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		CardLast4:     result.CardLast4,
		DeclineCode:   result.DeclineCode,
		Message:       result.Message,
	}
}

// RefundRequest refunds all or part of a recorded transaction
type RefundRequest struct {
	TransactionID string          `json:"transaction_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
}

// Validate checks every field and reports the full set of violations
func (r *RefundRequest) Validate() error {
	violations := make(map[string]any)

	if r.TransactionID == "" {
		violations["transaction_id"] = "this field is required"
	}
	if !r.Amount.IsPositive() {
		violations["amount"] = "must be greater than zero"
	}

	if len(violations) > 0 {
		return ierr.NewError("invalid refund request").
			WithHint("One or more refund fields are invalid").
			WithReportableDetails(violations).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RefundResponse carries the gateway's refund transaction id
type RefundResponse struct {
	RefundTransactionID   string          `json:"refund_transaction_id"`
	OriginalTransactionID string          `json:"original_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
}

// TransactionResponse represents a durable charge record in API responses
type TransactionResponse struct {
	ID           string                  `json:"id"`
	GatewayTxnID string                  `json:"gateway_transaction_id"`
	CustomerID   string                  `json:"customer_id,omitempty"`
	Kind         types.TransactionKind   `json:"kind"`
	Status       types.TransactionStatus `json:"status"`
	Amount       decimal.Decimal         `json:"amount"`
	Currency     string                  `json:"currency"`
	CardLast4    *string                 `json:"card_last4,omitempty"`
	Metadata     types.Metadata          `json:"metadata,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// NewTransactionResponse creates a response from a transaction domain model
func NewTransactionResponse(txn *transaction.Transaction) *TransactionResponse {
	if txn == nil {
		return nil
	}
	return &TransactionResponse{
		ID:           txn.ID,
		GatewayTxnID: txn.GatewayTxnID,
		CustomerID:   txn.CustomerID,
		Kind:         txn.Kind,
		Status:       txn.Status,
		Amount:       txn.Amount,
		Currency:     txn.Currency,
		CardLast4:    txn.CardLast4,
		Metadata:     txn.Metadata,
		CreatedAt:    txn.CreatedAt,
	}
}

// ListTransactionsResponse wraps a customer's recorded transactions
type ListTransactionsResponse struct {
	Items []*TransactionResponse `json:"items"`
	Total int                    `json:"total"`
}
