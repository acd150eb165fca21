package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents a single journal record for an account
type LedgerEntry struct {
	ID            string          `json:"id"`             // unique identifier
	TransactionID string          `json:"transaction_id"` // transaction this entry mirrors
	AccountNumber string          `json:"account_number"` // which account this entry belongs to
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"` // signed: negative for debits
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EntryFor turns an applied transaction into its journal entry.
func EntryFor(accountNumber string, tx Transaction) LedgerEntry {
	return LedgerEntry{
		ID:            tx.ID + "-" + accountNumber,
		TransactionID: tx.ID,
		AccountNumber: accountNumber,
		Type:          tx.Type,
		Amount:        tx.Signed(),
		Description:   tx.Description,
		CreatedAt:     tx.Timestamp,
	}
}
