package testutil

import (
	"context"

	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
)

// InMemoryTransactionStore implements transaction.Repository
type InMemoryTransactionStore struct {
	store *InMemoryStore[*transaction.Transaction]
}

// NewInMemoryTransactionStore creates a new in-memory transaction store
func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{store: NewInMemoryStore[*transaction.Transaction]()}
}

func copyTransaction(txn *transaction.Transaction) *transaction.Transaction {
	if txn == nil {
		return nil
	}
	copied := *txn
	copied.CardLast4 = copyString(txn.CardLast4)
	if txn.Metadata != nil {
		copied.Metadata = txn.Metadata.Merge(nil)
	}
	return &copied
}

func (s *InMemoryTransactionStore) Create(ctx context.Context, txn *transaction.Transaction) error {
	if txn == nil {
		return ierr.NewError("transaction cannot be nil").
			WithHint("Transaction cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := s.store.Create(ctx, txn.ID, copyTransaction(txn)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record transaction").
			WithReportableDetails(map[string]any{"transaction_id": txn.ID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemoryTransactionStore) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	txn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("transaction not found").
			WithReportableDetails(map[string]any{"transaction_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copyTransaction(txn), nil
}

func (s *InMemoryTransactionStore) GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*transaction.Transaction, error) {
	txns := s.store.List(ctx,
		func(txn *transaction.Transaction) bool { return txn.GatewayTxnID == gatewayTxnID },
		func(a, b *transaction.Transaction) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
	if len(txns) == 0 {
		return nil, ierr.NewError("transaction not found").
			WithReportableDetails(map[string]any{"gateway_transaction_id": gatewayTxnID}).
			Mark(ierr.ErrNotFound)
	}
	return copyTransaction(txns[0]), nil
}

func (s *InMemoryTransactionStore) ListByCustomer(ctx context.Context, customerID string) ([]*transaction.Transaction, error) {
	txns := s.store.List(ctx,
		func(txn *transaction.Transaction) bool { return txn.CustomerID == customerID },
		func(a, b *transaction.Transaction) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
	out := make([]*transaction.Transaction, 0, len(txns))
	for _, txn := range txns {
		out = append(out, copyTransaction(txn))
	}
	return out, nil
}

// All returns every recorded transaction, for assertions
func (s *InMemoryTransactionStore) All() []*transaction.Transaction {
	txns := s.store.List(context.Background(), nil,
		func(a, b *transaction.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) })
	out := make([]*transaction.Transaction, 0, len(txns))
	for _, txn := range txns {
		out = append(out, copyTransaction(txn))
	}
	return out
}
