package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

// Valid reports whether t is one of the supported account types.
func (t AccountType) Valid() bool {
	return t == Current || t == Savings
}

// NormalizeAccountType upper-cases and trims user input. The result still
// needs Valid.
func NormalizeAccountType(s string) AccountType {
	return AccountType(strings.ToUpper(strings.TrimSpace(s)))
}

// AccountSnapshot is a point-in-time copy of an account. Changing it has no
// effect on the ledger.
type AccountSnapshot struct {
	AccountNumber string          `json:"account_number"`
	CustomerID    string          `json:"customer_id"`
	Type          AccountType     `json:"account_type"`
	OpenedAt      time.Time       `json:"opened_at"`
	Balance       decimal.Decimal `json:"balance"`
	Transactions  []Transaction   `json:"transactions"`
}

// Reconciliation compares an account's balance against its history and the
// journal.
type Reconciliation struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	HistoryTotal  decimal.Decimal `json:"history_total"`
	JournalTotal  decimal.Decimal `json:"journal_total"`
	Balanced      bool            `json:"balanced"`
}
