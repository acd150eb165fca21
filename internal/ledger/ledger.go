package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/idgen"
	interfaces "github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models/events"
)

// maxIDAttempts bounds how often an identifier is redrawn after a collision.
const maxIDAttempts = 8

var errIDSpaceExhausted = errors.New("could not generate an unused identifier")

// Ledger owns the customer directory and every account, and is the only
// thing that mutates account state.
type Ledger struct {
	store     interfaces.LedgerStore    // journal every applied transaction is mirrored to
	publisher interfaces.EventPublisher // optional, notified after each committed operation
	ids       interfaces.IDGenerator
	logger    *zap.Logger
	now       func() time.Time

	customersMu sync.RWMutex
	customers   map[string]models.Customer

	accountsMu sync.RWMutex
	accounts   map[string]*Account
	byCustomer map[string][]string // customer id -> account numbers, in opening order

	txMu  sync.Mutex
	txIDs map[string]struct{}
}

type Option func(*Ledger)

func WithIDGenerator(ids interfaces.IDGenerator) Option {
	return func(l *Ledger) { l.ids = ids }
}

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now for customer, account and transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates an empty ledger that journals to store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		ids:        idgen.NewRandom(),
		logger:     zap.NewNop(),
		now:        time.Now,
		customers:  make(map[string]models.Customer),
		accounts:   make(map[string]*Account),
		byCustomer: make(map[string][]string),
		txIDs:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateCustomer registers a new customer. Names and emails need not be unique.
func (l *Ledger) CreateCustomer(name, email string) (models.Customer, error) {
	l.customersMu.Lock()
	defer l.customersMu.Unlock()

	id, err := l.uniqueID(idgen.CustomerPrefix, func(id string) bool {
		_, taken := l.customers[id]
		return taken
	})
	if err != nil {
		return models.Customer{}, err
	}

	c := models.Customer{ID: id, Name: name, Email: email, CreatedAt: l.now()}
	l.customers[id] = c

	l.logger.Debug("customer created", zap.String("customer_id", id))
	return c, nil
}

// OpenAccount opens a zero-balance account for an existing customer and
// returns its account number.
func (l *Ledger) OpenAccount(customerID string, accountType models.AccountType) (string, error) {
	if _, err := l.requireCustomer(customerID); err != nil {
		return "", err
	}
	if !accountType.Valid() {
		return "", &InvalidArgumentError{Reason: fmt.Sprintf("unknown account type %q", accountType)}
	}

	l.accountsMu.Lock()
	defer l.accountsMu.Unlock()

	number, err := l.uniqueID(idgen.AccountPrefix, func(id string) bool {
		_, taken := l.accounts[id]
		return taken
	})
	if err != nil {
		return "", err
	}

	l.accounts[number] = newAccount(number, customerID, accountType, l.now())
	l.byCustomer[customerID] = append(l.byCustomer[customerID], number)

	l.logger.Debug("account opened",
		zap.String("customer_id", customerID),
		zap.String("account", number),
		zap.String("account_type", string(accountType)),
	)
	return number, nil
}

// Deposit credits amount to the account and returns the recorded transaction.
func (l *Ledger) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (models.Transaction, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return models.Transaction{}, err
	}

	tx, err := l.newTransaction(models.Deposit, amount, "Deposit into "+accountNumber)
	if err != nil {
		return models.Transaction{}, err
	}

	acc.mu.Lock()
	err = l.commit(ctx, posting{acc, tx})
	acc.mu.Unlock()
	if err != nil {
		l.logFailure("deposit", err, zap.String("account", accountNumber))
		return models.Transaction{}, err
	}

	l.publish(ctx, events.TransactionCompleted{
		TransactionID: tx.ID,
		Type:          events.OperationDeposit,
		ToAccount:     accountNumber,
		Amount:        tx.Amount,
		OccurredAt:    tx.Timestamp,
	})
	return tx, nil
}

// Withdraw debits amount from the account and returns the recorded transaction.
func (l *Ledger) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (models.Transaction, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return models.Transaction{}, err
	}

	tx, err := l.newTransaction(models.Withdrawal, amount, "Withdraw from "+accountNumber)
	if err != nil {
		return models.Transaction{}, err
	}

	acc.mu.Lock()
	err = l.commit(ctx, posting{acc, tx})
	acc.mu.Unlock()
	if err != nil {
		l.logFailure("withdraw", err, zap.String("account", accountNumber))
		return models.Transaction{}, err
	}

	l.publish(ctx, events.TransactionCompleted{
		TransactionID: tx.ID,
		Type:          events.OperationWithdrawal,
		FromAccount:   accountNumber,
		Amount:        tx.Amount,
		OccurredAt:    tx.Timestamp,
	})
	return tx, nil
}

// Transfer moves amount between two distinct accounts. The source is debited
// first; if that is rejected nothing else happens and the destination is
// never touched.
func (l *Ledger) Transfer(ctx context.Context, fromAccount, toAccount string, amount decimal.Decimal) error {
	if fromAccount == toAccount {
		return &InvalidArgumentError{Reason: "cannot transfer to the same account"}
	}

	from, err := l.requireAccount(fromAccount)
	if err != nil {
		return err
	}
	to, err := l.requireAccount(toAccount)
	if err != nil {
		return err
	}

	out, err := l.newTransaction(models.TransferOut, amount, "Transfer to "+toAccount)
	if err != nil {
		return err
	}

	unlock := lockPair(from, to)
	err = l.transferLocked(ctx, from, to, out)
	unlock()
	if err != nil {
		l.logFailure("transfer", err,
			zap.String("from_account", fromAccount),
			zap.String("to_account", toAccount),
		)
		return err
	}

	l.publish(ctx, events.TransactionCompleted{
		TransactionID: out.ID,
		Type:          events.OperationTransfer,
		FromAccount:   fromAccount,
		ToAccount:     toAccount,
		Amount:        out.Amount,
		OccurredAt:    out.Timestamp,
	})
	return nil
}

func (l *Ledger) transferLocked(ctx context.Context, from, to *Account, out models.Transaction) error {
	if err := from.checkDebit(out.Amount); err != nil {
		return err
	}

	in, err := l.newTransaction(models.TransferIn, out.Amount, "Transfer from "+from.accountNumber)
	if err != nil {
		return err
	}
	return l.commit(ctx, posting{from, out}, posting{to, in})
}

// GetAccount returns a snapshot of the account.
func (l *Ledger) GetAccount(accountNumber string) (models.AccountSnapshot, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return models.AccountSnapshot{}, err
	}
	return acc.Snapshot(), nil
}

// GetTransactions returns a copy of the account's history, oldest first.
func (l *Ledger) GetTransactions(accountNumber string) ([]models.Transaction, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return nil, err
	}
	return acc.Transactions(), nil
}

func (l *Ledger) GetCustomer(customerID string) (models.Customer, error) {
	return l.requireCustomer(customerID)
}

func (l *Ledger) GetBalance(accountNumber string) (decimal.Decimal, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance(), nil
}

// ListAccounts returns snapshots of the customer's accounts in opening order.
func (l *Ledger) ListAccounts(customerID string) ([]models.AccountSnapshot, error) {
	if _, err := l.requireCustomer(customerID); err != nil {
		return nil, err
	}

	l.accountsMu.RLock()
	owned := make([]*Account, 0, len(l.byCustomer[customerID]))
	for _, number := range l.byCustomer[customerID] {
		owned = append(owned, l.accounts[number])
	}
	l.accountsMu.RUnlock()

	out := make([]models.AccountSnapshot, 0, len(owned))
	for _, acc := range owned {
		out = append(out, acc.Snapshot())
	}
	return out, nil
}

// Reconcile checks the account's balance against the signed sum of its
// history and of its journal entries.
func (l *Ledger) Reconcile(ctx context.Context, accountNumber string) (models.Reconciliation, error) {
	acc, err := l.requireAccount(accountNumber)
	if err != nil {
		return models.Reconciliation{}, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	entries, err := l.store.GetEntriesByAccount(ctx, accountNumber)
	if err != nil {
		return models.Reconciliation{}, fmt.Errorf("load journal entries for %s: %w", accountNumber, err)
	}
	journal := decimal.Zero
	for _, e := range entries {
		journal = journal.Add(e.Amount)
	}

	r := models.Reconciliation{
		AccountNumber: accountNumber,
		Balance:       acc.balance,
		HistoryTotal:  acc.historyTotal(),
		JournalTotal:  journal,
	}
	r.Balanced = r.Balance.Equal(r.HistoryTotal) && r.Balance.Equal(r.JournalTotal)
	if !r.Balanced {
		l.logger.Error("account out of balance",
			zap.String("account", accountNumber),
			zap.Stringer("balance", r.Balance),
			zap.Stringer("history_total", r.HistoryTotal),
			zap.Stringer("journal_total", r.JournalTotal),
		)
	}
	return r, nil
}

// LedgerEntries returns the whole journal.
func (l *Ledger) LedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	entries, err := l.store.GetLedgerEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal entries: %w", err)
	}
	return entries, nil
}

// posting pairs a transaction with the account it lands on.
type posting struct {
	account *Account
	tx      models.Transaction
}

func (p posting) check() error {
	if p.tx.Type.IsCredit() {
		return p.account.checkCredit(p.tx.Amount)
	}
	return p.account.checkDebit(p.tx.Amount)
}

func (p posting) apply() error {
	if p.tx.Type.IsCredit() {
		return p.account.applyCredit(p.tx)
	}
	return p.account.applyDebit(p.tx)
}

// commit validates every posting, journals them in one call and only then
// mutates the accounts. The caller must hold every involved account's lock.
func (l *Ledger) commit(ctx context.Context, postings ...posting) error {
	for _, p := range postings {
		if err := p.check(); err != nil {
			return err
		}
	}

	entries := make([]models.LedgerEntry, 0, len(postings))
	for _, p := range postings {
		entries = append(entries, models.EntryFor(p.account.accountNumber, p.tx))
	}
	if err := l.store.SaveEntries(ctx, entries...); err != nil {
		return fmt.Errorf("record journal entries: %w", err)
	}

	for _, p := range postings {
		// Checked above under the same locks, so this cannot be rejected.
		if err := p.apply(); err != nil {
			return err
		}
		l.logger.Debug("transaction applied",
			zap.String("account", p.account.accountNumber),
			zap.String("transaction_id", p.tx.ID),
			zap.String("type", string(p.tx.Type)),
			zap.Stringer("amount", p.tx.Amount),
		)
	}
	return nil
}

// lockPair locks both accounts in ascending account-number order so that two
// transfers between the same pair in opposite directions cannot deadlock.
func lockPair(a, b *Account) (unlock func()) {
	first, second := a, b
	if b.accountNumber < a.accountNumber {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

func (l *Ledger) newTransaction(txType models.TransactionType, amount decimal.Decimal, description string) (models.Transaction, error) {
	l.txMu.Lock()
	id, err := l.uniqueID(idgen.TransactionPrefix, func(id string) bool {
		_, taken := l.txIDs[id]
		return taken
	})
	if err == nil {
		l.txIDs[id] = struct{}{}
	}
	l.txMu.Unlock()
	if err != nil {
		return models.Transaction{}, err
	}
	return models.NewTransaction(id, txType, amount, description, l.now()), nil
}

// uniqueID draws identifiers until taken reports a free one. The caller must
// hold the lock guarding the namespace.
func (l *Ledger) uniqueID(prefix string, taken func(string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := l.ids.NewID(prefix)
		if !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%s: %w", prefix, errIDSpaceExhausted)
}

func (l *Ledger) requireCustomer(customerID string) (models.Customer, error) {
	l.customersMu.RLock()
	defer l.customersMu.RUnlock()

	c, ok := l.customers[customerID]
	if !ok {
		return models.Customer{}, &NotFoundError{Entity: EntityCustomer, ID: customerID}
	}
	return c, nil
}

func (l *Ledger) requireAccount(accountNumber string) (*Account, error) {
	l.accountsMu.RLock()
	defer l.accountsMu.RUnlock()

	acc, ok := l.accounts[accountNumber]
	if !ok {
		return nil, &NotFoundError{Entity: EntityAccount, ID: accountNumber}
	}
	return acc, nil
}

// publish is best effort: the operation has already been committed.
func (l *Ledger) publish(ctx context.Context, event events.TransactionCompleted) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event.Key(), event); err != nil {
		l.logger.Error("failed to publish transaction event",
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

func (l *Ledger) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if kind := KindOf(err); kind != "" {
		l.logger.Info("operation rejected", append(fields, zap.String("kind", string(kind)))...)
		return
	}
	l.logger.Error("operation failed", fields...)
}
