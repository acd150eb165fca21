package interfaces

import (
	"context"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// LedgerStore is the journal every applied transaction is mirrored to.
// SaveEntries must store all of the given entries or none of them.
type LedgerStore interface {
	SaveEntries(ctx context.Context, entries ...models.LedgerEntry) error
	GetEntriesByAccount(ctx context.Context, accountNumber string) ([]models.LedgerEntry, error)
	GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}
