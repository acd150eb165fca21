package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// Account holds a balance and the ordered history that produced it.
// The balance always equals the signed sum of the history and never drops
// below zero.
type Account struct {
	mu sync.Mutex

	accountNumber string
	customerID    string
	accountType   models.AccountType
	openedAt      time.Time

	balance      decimal.Decimal
	transactions []models.Transaction
}

func newAccount(accountNumber, customerID string, accountType models.AccountType, openedAt time.Time) *Account {
	return &Account{
		accountNumber: accountNumber,
		customerID:    customerID,
		accountType:   accountType,
		openedAt:      openedAt,
		balance:       decimal.Zero,
	}
}

func (a *Account) AccountNumber() string { return a.accountNumber }
func (a *Account) CustomerID() string { return a.customerID }
func (a *Account) Type() models.AccountType { return a.accountType }
func (a *Account) OpenedAt() time.Time { return a.openedAt }

func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Transactions returns a copy of the history.
func (a *Account) Transactions() []models.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history()
}

func (a *Account) Snapshot() models.AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// ApplyCredit adds tx.Amount to the balance and records tx.
func (a *Account) ApplyCredit(tx models.Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyCredit(tx)
}

// ApplyDebit subtracts tx.Amount from the balance and records tx. It fails
// without touching the account if the balance cannot cover the amount.
func (a *Account) ApplyDebit(tx models.Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyDebit(tx)
}

// The methods below expect a.mu to be held.

func (a *Account) checkCredit(amount decimal.Decimal) error {
	return validateAmount(amount)
}

func (a *Account) checkDebit(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if a.balance.LessThan(amount) {
		return &InsufficientFundsError{
			AccountNumber: a.accountNumber,
			Balance:       a.balance,
			Requested:     amount,
		}
	}
	return nil
}

func (a *Account) applyCredit(tx models.Transaction) error {
	if err := a.checkCredit(tx.Amount); err != nil {
		return err
	}
	a.balance = a.balance.Add(tx.Amount)
	a.transactions = append(a.transactions, tx)
	return nil
}

func (a *Account) applyDebit(tx models.Transaction) error {
	if err := a.checkDebit(tx.Amount); err != nil {
		return err
	}
	a.balance = a.balance.Sub(tx.Amount)
	a.transactions = append(a.transactions, tx)
	return nil
}

func (a *Account) history() []models.Transaction {
	out := make([]models.Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

func (a *Account) historyTotal() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range a.transactions {
		total = total.Add(tx.Signed())
	}
	return total
}

func (a *Account) snapshot() models.AccountSnapshot {
	return models.AccountSnapshot{
		AccountNumber: a.accountNumber,
		CustomerID:    a.customerID,
		Type:          a.accountType,
		OpenedAt:      a.openedAt,
		Balance:       a.balance,
		Transactions:  a.history(),
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return &InvalidAmountError{Amount: amount}
	}
	return nil
}
