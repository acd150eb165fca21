package postgres

import (
	"context"
	"database/sql"
	"fmt"

	interfaces "github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

const (
	insertEntryQuery = `INSERT INTO ledger_entries (run_id, id, transaction_id, account_number, type, amount, description, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	selectEntriesQuery = `SELECT id, transaction_id, account_number, type, amount, description, created_at
	FROM ledger_entries WHERE run_id = $1 ORDER BY seq`

	selectEntriesByAccountQuery = `SELECT id, transaction_id, account_number, type, amount, description, created_at
	FROM ledger_entries WHERE run_id = $1 AND account_number = $2 ORDER BY seq`
)

// PostgresLedgerStore journals entries into ledger_entries. Rows are tagged
// with the run that wrote them and reads only see the current run; rows of
// earlier runs stay in the table as history. Entry ids are unique per run.
type PostgresLedgerStore struct {
	db    *sql.DB
	runID string
}

func NewPostgresLedgerStore(db *sql.DB, runID string) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db:    db,
		runID: runID,
	}
}

func (p *PostgresLedgerStore) RunID() string { return p.runID }

// SaveEntries writes all entries inside a single database transaction.
func (p *PostgresLedgerStore) SaveEntries(ctx context.Context, entries ...models.LedgerEntry) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	for _, e := range entries {
		if err = p.saveEntry(ctx, dbTx, e); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) saveEntry(ctx context.Context, dbTx *sql.Tx, e models.LedgerEntry) error {
	_, err := dbTx.ExecContext(ctx, insertEntryQuery,
		p.runID, e.ID, e.TransactionID, e.AccountNumber, string(e.Type), e.Amount, e.Description, e.CreatedAt)
	return err
}

func (p *PostgresLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, selectEntriesQuery, p.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (p *PostgresLedgerStore) GetEntriesByAccount(ctx context.Context, accountNumber string) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, selectEntriesByAccountQuery, p.runID, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry

	for rows.Next() {
		var (
			entry  models.LedgerEntry
			txType string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.TransactionID,
			&entry.AccountNumber,
			&txType,
			&entry.Amount,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.Type = models.TransactionType(txType)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
