package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It keeps the journal in a slice and is safe for concurrent use.
type MemoryLedgerStore struct {
	mu        sync.RWMutex         // protects entries and byAccount
	entries   []models.LedgerEntry // every entry in the order it was saved
	byAccount map[string][]int     // account number -> indexes into entries
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		entries:   make([]models.LedgerEntry, 0),
		byAccount: make(map[string][]int),
	}
}

// SaveEntries appends the entries under one lock, so readers see either all
// of them or none.
func (m *MemoryLedgerStore) SaveEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.byAccount[e.AccountNumber] = append(m.byAccount[e.AccountNumber], len(m.entries))
		m.entries = append(m.entries, e)
	}
	return nil
}

// GetLedgerEntries returns a copy of all entries so callers can't modify
// internal state.
func (m *MemoryLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make([]models.LedgerEntry, len(m.entries))
	copy(copied, m.entries)
	return copied, nil
}

func (m *MemoryLedgerStore) GetEntriesByAccount(ctx context.Context, accountNumber string) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.byAccount[accountNumber]
	result := make([]models.LedgerEntry, 0, len(idx))
	for _, i := range idx {
		result = append(result, m.entries[i])
	}
	return result, nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
