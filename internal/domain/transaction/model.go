package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/codeldorado/rebill/internal/types"
)

// Transaction is the durable record of an approved gateway charge or
// refund. A gateway result is never reported as success before a
// transaction row exists; this is the at-most-one-record guarantee the
// engine makes (it does not claim exactly-once delivery to the gateway).
type Transaction struct {
	ID           string
	GatewayTxnID string
	CustomerID   string
	Kind         types.TransactionKind
	Status       types.TransactionStatus
	Amount       decimal.Decimal
	Currency     string
	CardLast4    *string
	Metadata     types.Metadata
	CreatedAt    time.Time
}
