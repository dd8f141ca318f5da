package transaction

import "context"

// Repository defines the persistence contract for transaction records
type Repository interface {
	// Create persists a transaction record
	Create(ctx context.Context, txn *Transaction) error

	// Get retrieves a transaction by its external id
	Get(ctx context.Context, id string) (*Transaction, error)

	// GetByGatewayTxnID retrieves a transaction by the processor's id
	GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*Transaction, error)

	// ListByCustomer retrieves a customer's transactions, newest first
	ListByCustomer(ctx context.Context, customerID string) ([]*Transaction, error)
}
