package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies every error the ledger returns on its own account.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. The concrete error types below match them.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Entity names carried by NotFoundError.
const (
	EntityCustomer = "customer"
	EntityAccount  = "account"
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be > 0, got %s", e.Amount)
}

func (e *InvalidAmountError) Is(target error) bool { return target == ErrInvalidAmount }

type InsufficientFundsError struct {
	AccountNumber string
	Balance       decimal.Decimal
	Requested     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: balance=%s, requested=%s",
		e.AccountNumber, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Reason }

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// KindOf reports the kind of a ledger error, or "" for anything else
// (infrastructure failures, context errors).
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return ""
	}
}
