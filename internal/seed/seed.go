// Package seed loads the demo data set: two customers with one current
// account each and a short history on the first.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// Demo holds the identifiers created by Load.
type Demo struct {
	Alice        models.Customer
	Bob          models.Customer
	AliceAccount string
	BobAccount   string
}

// Load creates the demo customers and replays deposit 500.00, withdraw
// 150.00 and transfer 200.00, then checks that an overdraft of 1000.00 bounces.
func Load(ctx context.Context, l *ledger.Ledger, logger *zap.Logger) (Demo, error) {
	var d Demo
	var err error

	if d.Alice, err = l.CreateCustomer("Alice", "alice@example.com"); err != nil {
		return d, err
	}
	if d.Bob, err = l.CreateCustomer("Bob", "bob@example.com"); err != nil {
		return d, err
	}
	if d.AliceAccount, err = l.OpenAccount(d.Alice.ID, models.Current); err != nil {
		return d, err
	}
	if d.BobAccount, err = l.OpenAccount(d.Bob.ID, models.Current); err != nil {
		return d, err
	}

	if _, err = l.Deposit(ctx, d.AliceAccount, decimal.RequireFromString("500.00")); err != nil {
		return d, fmt.Errorf("seed deposit: %w", err)
	}
	if _, err = l.Withdraw(ctx, d.AliceAccount, decimal.RequireFromString("150.00")); err != nil {
		return d, fmt.Errorf("seed withdrawal: %w", err)
	}
	if err = l.Transfer(ctx, d.AliceAccount, d.BobAccount, decimal.RequireFromString("200.00")); err != nil {
		return d, fmt.Errorf("seed transfer: %w", err)
	}

	_, err = l.Withdraw(ctx, d.AliceAccount, decimal.RequireFromString("1000.00"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		return d, fmt.Errorf("seed overdraft: expected insufficient funds, got %v", err)
	}

	logger.Info("demo data loaded",
		zap.String("alice_account", d.AliceAccount),
		zap.String("bob_account", d.BobAccount),
	)
	return d, nil
}
