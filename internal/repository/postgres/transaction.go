package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	domainTxn "github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/types"
)

type transactionRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTransactionRepository creates a new postgres transaction repository
func NewTransactionRepository(db *sql.DB, logger *logger.Logger) domainTxn.Repository {
	return &transactionRepository{db: db, logger: logger}
}

const transactionColumns = `id, gateway_txn_id, customer_id, kind, status, amount,
	currency, card_last4, metadata, created_at`

func (r *transactionRepository) Create(ctx context.Context, txn *domainTxn.Transaction) error {
	span := StartRepositorySpan(ctx, "transaction", "create", map[string]interface{}{
		"transaction_id":         txn.ID,
		"gateway_transaction_id": txn.GatewayTxnID,
	})
	defer FinishSpan(span)

	metadata, err := marshalMetadata(txn.Metadata)
	if err != nil {
		SetSpanError(span, err)
		return err
	}

	var customerID sql.NullString
	if txn.CustomerID != "" {
		customerID = sql.NullString{String: txn.CustomerID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, gateway_txn_id, customer_id, kind, status, amount,
			currency, card_last4, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.GatewayTxnID, customerID, string(txn.Kind), string(txn.Status),
		txn.Amount.String(), txn.Currency, txn.CardLast4, metadata, txn.CreatedAt)
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHint("Failed to record transaction").
			WithReportableDetails(map[string]any{"transaction_id": txn.ID}).
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id string) (*domainTxn.Transaction, error) {
	span := StartRepositorySpan(ctx, "transaction", "get", map[string]interface{}{
		"transaction_id": id,
	})
	defer FinishSpan(span)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("transaction not found").
			WithHint("No transaction exists with this id").
			WithReportableDetails(map[string]any{"transaction_id": id}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to get transaction").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return txn, nil
}

func (r *transactionRepository) GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*domainTxn.Transaction, error) {
	span := StartRepositorySpan(ctx, "transaction", "get_by_gateway_txn", map[string]interface{}{
		"gateway_transaction_id": gatewayTxnID,
	})
	defer FinishSpan(span)

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE gateway_txn_id = $1
		 ORDER BY created_at DESC LIMIT 1`, gatewayTxnID)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("transaction not found").
			WithHint("No transaction exists with this gateway id").
			WithReportableDetails(map[string]any{"gateway_transaction_id": gatewayTxnID}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to get transaction").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return txn, nil
}

func (r *transactionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domainTxn.Transaction, error) {
	span := StartRepositorySpan(ctx, "transaction", "list_by_customer", map[string]interface{}{
		"customer_id": customerID,
	})
	defer FinishSpan(span)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to list transactions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var txns []*domainTxn.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			SetSpanError(span, err)
			return nil, ierr.WithError(err).
				WithHint("Failed to scan transaction row").
				Mark(ierr.ErrDatabase)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate transaction rows").
			Mark(ierr.ErrDatabase)
	}

	SetSpanSuccess(span)
	return txns, nil
}

func scanTransaction(row rowScanner) (*domainTxn.Transaction, error) {
	var (
		txn        domainTxn.Transaction
		customerID sql.NullString
		kind       string
		status     string
		amount     string
		cardLast4  sql.NullString
		metadata   []byte
	)
	err := row.Scan(&txn.ID, &txn.GatewayTxnID, &customerID, &kind, &status, &amount,
		&txn.Currency, &cardLast4, &metadata, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		txn.CustomerID = customerID.String
	}
	txn.Kind = types.TransactionKind(kind)
	txn.Status = types.TransactionStatus(status)
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	txn.CardLast4 = nullableString(cardLast4)
	txn.Metadata, err = unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
