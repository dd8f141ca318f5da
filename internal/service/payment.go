package service

import (
	"context"

	"github.com/codeldorado/rebill/internal/api/dto"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/types"
)

// PaymentService drives interactive checkouts, refunds and access to the
// durable transaction record
type PaymentService interface {
	BeginCheckout(ctx context.Context, req *dto.BeginCheckoutRequest) (*dto.BeginCheckoutResponse, error)
	CompleteCheckout(ctx context.Context, req *dto.CompleteCheckoutRequest) (*dto.ChargeResponse, error)

	// RefundTransaction refunds all or part of a recorded transaction. The
	// amount is validated against the recorded charge, never trusted from
	// the caller alone.
	RefundTransaction(ctx context.Context, req *dto.RefundRequest) (*dto.RefundResponse, error)

	GetTransaction(ctx context.Context, id string) (*dto.TransactionResponse, error)
	ListTransactions(ctx context.Context, customerID string) (*dto.ListTransactionsResponse, error)
}

type paymentService struct {
	ServiceParams
}

// NewPaymentService creates a new payment service
func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) BeginCheckout(ctx context.Context, req *dto.BeginCheckoutRequest) (*dto.BeginCheckoutResponse, error) {
	if err := req.Validate(s.Config.Billing.MaxChargeAmount); err != nil {
		return nil, err
	}

	result, err := s.GatewayClient.InitializeCharge(ctx, req.ToInitializeRequest())
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("checkout initialized",
		"amount", req.Amount, "currency", req.Currency)

	return &dto.BeginCheckoutResponse{FormURL: result.FormURL}, nil
}

func (s *paymentService) CompleteCheckout(ctx context.Context, req *dto.CompleteCheckoutRequest) (*dto.ChargeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := s.GatewayClient.CompleteCharge(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}

	log := s.Logger.WithContext(ctx)
	switch result.Status {
	case gateway.StatusSuccess:
		log.Infow("checkout completed",
			"transaction_id", result.TransactionID, "amount", result.Amount)
	case gateway.StatusDeclined:
		log.Warnw("checkout declined", "decline_code", result.DeclineCode)
	default:
		log.Errorw("checkout failed at the processor", "message", result.Message)
	}

	return dto.NewChargeResponse(result), nil
}

func (s *paymentService) RefundTransaction(ctx context.Context, req *dto.RefundRequest) (*dto.RefundResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txn, err := s.TransactionRepo.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	if txn.Kind == types.TransactionKindRefund {
		return nil, ierr.NewError("cannot refund a refund").
			WithHint("The referenced transaction is itself a refund").
			WithReportableDetails(map[string]any{"transaction_id": req.TransactionID}).
			Mark(ierr.ErrInvalidOperation)
	}
	if req.Amount.GreaterThan(txn.Amount) {
		return nil, ierr.NewError("refund amount exceeds the recorded charge").
			WithHint("Refund amount must not exceed the original charge amount").
			WithReportableDetails(map[string]any{
				"transaction_id": req.TransactionID,
				"charged":        txn.Amount.String(),
				"requested":      req.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	result, err := s.GatewayClient.Refund(ctx, txn.GatewayTxnID, req.Amount)
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("transaction refunded",
		"transaction_id", txn.ID,
		"gateway_transaction_id", txn.GatewayTxnID,
		"refund_transaction_id", result.TransactionID,
		"amount", req.Amount)

	return &dto.RefundResponse{
		RefundTransactionID:   result.TransactionID,
		OriginalTransactionID: txn.ID,
		Amount:                req.Amount,
		Currency:              txn.Currency,
	}, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, id string) (*dto.TransactionResponse, error) {
	txn, err := s.TransactionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewTransactionResponse(txn), nil
}

func (s *paymentService) ListTransactions(ctx context.Context, customerID string) (*dto.ListTransactionsResponse, error) {
	if !types.IsValidCustomerID(customerID) {
		return nil, ierr.NewErrorf("invalid customer id: %s", customerID).
			WithHint("Customer id must be 3-255 characters of letters, digits, underscore or hyphen").
			Mark(ierr.ErrValidation)
	}

	txns, err := s.TransactionRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		items = append(items, dto.NewTransactionResponse(txn))
	}
	return &dto.ListTransactionsResponse{Items: items, Total: len(items)}, nil
}
