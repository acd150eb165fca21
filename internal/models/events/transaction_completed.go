package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation names carried in TransactionCompleted.Type.
const (
	OperationDeposit    = "deposit"
	OperationWithdrawal = "withdrawal"
	OperationTransfer   = "transfer"
)

type TransactionCompleted struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Key is the partition key: the account whose balance went down, or the
// credited account for deposits.
func (e TransactionCompleted) Key() string {
	if e.FromAccount != "" {
		return e.FromAccount
	}
	return e.ToAccount
}
