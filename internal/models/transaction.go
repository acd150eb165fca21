package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType says which way a Transaction moves an account's balance.
type TransactionType string

const (
	Deposit     TransactionType = "DEPOSIT"
	Withdrawal  TransactionType = "WITHDRAWAL"
	TransferOut TransactionType = "TRANSFER_OUT"
	TransferIn  TransactionType = "TRANSFER_IN"
)

// IsCredit reports whether the type adds to the balance.
func (t TransactionType) IsCredit() bool {
	return t == Deposit || t == TransferIn
}

// Transaction is a single recorded movement on one account.
// Amount is always positive; the direction comes from Type.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewTransaction builds an immutable Transaction value.
func NewTransaction(id string, txType TransactionType, amount decimal.Decimal, description string, ts time.Time) Transaction {
	return Transaction{
		ID:          id,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Timestamp:   ts,
	}
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}
