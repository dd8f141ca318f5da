package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/types"
)

// FakeGateway implements gateway.Client with scripted outcomes keyed by the
// gateway customer reference. Unscripted references succeed.
type FakeGateway struct {
	mu sync.Mutex

	// DeclineRefs maps customer refs to a decline code
	DeclineRefs map[string]string
	// ErrorRefs holds customer refs that produce a processor error result
	ErrorRefs map[string]bool
	// TransportErr, when set, is returned from every money moving call
	TransportErr error

	// ChargeRequests records every ChargeCustomer call in order
	ChargeRequests []*gateway.ChargeCustomerRequest
	// RefundedTxnIDs records every refunded transaction id
	RefundedTxnIDs []string

	recorder transaction.Repository
	seq      int
}

// NewFakeGateway creates a fake that records approved charges through the
// given recorder, mirroring the durable record rule of the real client.
func NewFakeGateway(recorder transaction.Repository) *FakeGateway {
	return &FakeGateway{
		DeclineRefs: make(map[string]string),
		ErrorRefs:   make(map[string]bool),
		recorder:    recorder,
	}
}

// ScriptDecline makes future charges against ref come back declined
func (g *FakeGateway) ScriptDecline(ref, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DeclineRefs[ref] = code
}

// ScriptError makes future charges against ref come back as processor errors
func (g *FakeGateway) ScriptError(ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ErrorRefs[ref] = true
}

// ScriptTransportError makes every call fail with a communication error
func (g *FakeGateway) ScriptTransportError() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TransportErr = ierr.NewError("connection refused").
		WithHint("Failed to reach the payment gateway").
		Mark(ierr.ErrGatewayCommunication)
}

func (g *FakeGateway) nextTxnID() string {
	g.seq++
	return fmt.Sprintf("fake-txn-%d", g.seq)
}

func (g *FakeGateway) InitializeCharge(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	if err := gateway.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := gateway.ValidateCurrency(req.Currency); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TransportErr != nil {
		return nil, g.TransportErr
	}
	return &gateway.InitializeResult{FormURL: "https://fake.gateway/form/tok_test"}, nil
}

func (g *FakeGateway) CompleteCharge(ctx context.Context, completionToken string) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	if g.TransportErr != nil {
		defer g.mu.Unlock()
		return nil, g.TransportErr
	}
	txnID := g.nextTxnID()
	g.mu.Unlock()

	amount := decimal.NewFromInt(10)
	result := &gateway.ChargeResult{
		Status:        gateway.StatusSuccess,
		TransactionID: txnID,
		Amount:        amount,
		Currency:      "USD",
		CardLast4:     "1111",
	}
	if g.recorder != nil {
		last4 := result.CardLast4
		err := g.recorder.Create(ctx, &transaction.Transaction{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			GatewayTxnID: txnID,
			Kind:         types.TransactionKindSale,
			Status:       types.TransactionStatusApproved,
			Amount:       amount,
			Currency:     "USD",
			CardLast4:    &last4,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (g *FakeGateway) Refund(ctx context.Context, originalTxnID string, amount decimal.Decimal) (*gateway.RefundResult, error) {
	if err := gateway.ValidateAmount(amount); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TransportErr != nil {
		return nil, g.TransportErr
	}
	g.RefundedTxnIDs = append(g.RefundedTxnIDs, originalTxnID)
	return &gateway.RefundResult{TransactionID: g.nextTxnID()}, nil
}

func (g *FakeGateway) ChargeCustomer(ctx context.Context, req *gateway.ChargeCustomerRequest) (*gateway.ChargeResult, error) {
	if err := gateway.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := gateway.ValidateCurrency(req.Currency); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.ChargeRequests = append(g.ChargeRequests, req)
	if g.TransportErr != nil {
		defer g.mu.Unlock()
		return nil, g.TransportErr
	}
	if code, ok := g.DeclineRefs[req.CustomerRef]; ok {
		defer g.mu.Unlock()
		return &gateway.ChargeResult{
			Status:      gateway.StatusDeclined,
			Amount:      req.Amount,
			Currency:    req.Currency,
			DeclineCode: code,
			Message:     "DECLINE",
		}, nil
	}
	if g.ErrorRefs[req.CustomerRef] {
		defer g.mu.Unlock()
		return &gateway.ChargeResult{
			Status:   gateway.StatusError,
			Amount:   req.Amount,
			Currency: req.Currency,
			Message:  "Processor error",
		}, nil
	}
	txnID := g.nextTxnID()
	g.mu.Unlock()

	result := &gateway.ChargeResult{
		Status:        gateway.StatusSuccess,
		TransactionID: txnID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}
	if g.recorder != nil {
		err := g.recorder.Create(ctx, &transaction.Transaction{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			GatewayTxnID: txnID,
			CustomerID:   req.CustomerID,
			Kind:         req.Kind,
			Status:       types.TransactionStatusApproved,
			Amount:       req.Amount,
			Currency:     req.Currency,
			Metadata:     req.Metadata,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
