package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sheikh-saqib/banking-ledger-core/internal/idgen"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-core/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	keys   []string
	events []events.TransactionCompleted
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(events.TransactionCompleted))
	return p.err
}

// flakyStore fails every SaveEntries call while failing is set.
type flakyStore struct {
	*memory.MemoryLedgerStore
	failing bool
}

func (s *flakyStore) SaveEntries(ctx context.Context, entries ...models.LedgerEntry) error {
	if s.failing {
		return errors.New("journal unavailable")
	}
	return s.MemoryLedgerStore.SaveEntries(ctx, entries...)
}

// scriptedIDs replays ids in order, then falls back to a sequence.
type scriptedIDs struct {
	ids []string
	seq *idgen.Sequence
}

func (s *scriptedIDs) NewID(prefix string) string {
	if len(s.ids) > 0 {
		id := s.ids[0]
		s.ids = s.ids[1:]
		return id
	}
	return s.seq.NewID(prefix)
}

type fixture struct {
	ledger *Ledger
	store  *flakyStore
	pub    *recordingPublisher
	ctx    context.Context
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: &flakyStore{MemoryLedgerStore: memory.NewMemoryLedgerStore()},
		pub:   &recordingPublisher{},
		ctx:   context.Background(),
	}
	base := []Option{
		WithIDGenerator(idgen.NewSequence()),
		WithClock(func() time.Time { return t0 }),
		WithPublisher(f.pub),
	}
	f.ledger = NewLedger(f.store, append(base, opts...)...)
	return f
}

// account creates a customer and opens an account funded with deposit.
func (f *fixture) account(t *testing.T, deposit string) string {
	t.Helper()
	c, err := f.ledger.CreateCustomer("Alice", "alice@example.com")
	require.NoError(t, err)
	number, err := f.ledger.OpenAccount(c.ID, models.Current)
	require.NoError(t, err)
	if deposit != "" {
		_, err = f.ledger.Deposit(f.ctx, number, dec(deposit))
		require.NoError(t, err)
	}
	return number
}

func (f *fixture) requireState(t *testing.T, number, balance string, txCount int) {
	t.Helper()
	snap, err := f.ledger.GetAccount(number)
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec(balance)), "balance of %s = %s, want %s", number, snap.Balance, balance)
	assert.Len(t, snap.Transactions, txCount)

	r, err := f.ledger.Reconcile(f.ctx, number)
	require.NoError(t, err)
	assert.True(t, r.Balanced, "%+v", r)
}

func TestCreateCustomer(t *testing.T) {
	f := newFixture(t)

	c, err := f.ledger.CreateCustomer("Alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "CUS-0000000001", c.ID)
	assert.Equal(t, "Alice", c.Name)
	assert.Equal(t, "alice@example.com", c.Email)
	assert.Equal(t, t0, c.CreatedAt)

	got, err := f.ledger.GetCustomer(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	// Same name and email is a different customer.
	dup, err := f.ledger.CreateCustomer("Alice", "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, dup.ID)
}

func TestCreateCustomerRedrawsCollidingIDs(t *testing.T) {
	ids := &scriptedIDs{ids: []string{"CUS-A", "CUS-A", "CUS-A", "CUS-B"}, seq: idgen.NewSequence()}
	f := newFixture(t, WithIDGenerator(ids))

	first, err := f.ledger.CreateCustomer("A", "a@example.com")
	require.NoError(t, err)
	second, err := f.ledger.CreateCustomer("B", "b@example.com")
	require.NoError(t, err)

	assert.Equal(t, "CUS-A", first.ID)
	assert.Equal(t, "CUS-B", second.ID)
}

func TestCreateCustomerGivesUpWhenIDsKeepColliding(t *testing.T) {
	script := make([]string, 0, maxIDAttempts+1)
	for i := 0; i <= maxIDAttempts; i++ {
		script = append(script, "CUS-SAME")
	}
	f := newFixture(t, WithIDGenerator(&scriptedIDs{ids: script, seq: idgen.NewSequence()}))

	_, err := f.ledger.CreateCustomer("A", "a@example.com")
	require.NoError(t, err)
	_, err = f.ledger.CreateCustomer("B", "b@example.com")
	require.ErrorIs(t, err, errIDSpaceExhausted)
	assert.Equal(t, Kind(""), KindOf(err))
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	c, err := f.ledger.CreateCustomer("Bob", "bob@example.com")
	require.NoError(t, err)

	current, err := f.ledger.OpenAccount(c.ID, models.Current)
	require.NoError(t, err)
	savings, err := f.ledger.OpenAccount(c.ID, models.Savings)
	require.NoError(t, err)
	assert.NotEqual(t, current, savings)

	snap, err := f.ledger.GetAccount(current)
	require.NoError(t, err)
	assert.Equal(t, current, snap.AccountNumber)
	assert.Equal(t, c.ID, snap.CustomerID)
	assert.Equal(t, models.Current, snap.Type)
	assert.Equal(t, t0, snap.OpenedAt)
	assert.True(t, snap.Balance.IsZero())
	assert.Empty(t, snap.Transactions)

	accounts, err := f.ledger.ListAccounts(c.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, current, accounts[0].AccountNumber)
	assert.Equal(t, savings, accounts[1].AccountNumber)
}

func TestOpenAccountErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.OpenAccount("CUS-MISSING", models.Current)
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, EntityCustomer, nf.Entity)
	assert.Equal(t, "CUS-MISSING", nf.ID)

	c, err := f.ledger.CreateCustomer("Bob", "bob@example.com")
	require.NoError(t, err)
	_, err = f.ledger.OpenAccount(c.ID, models.AccountType("CHECKING"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	accounts, err := f.ledger.ListAccounts(c.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	number := f.account(t, "")

	got, err := f.ledger.Deposit(f.ctx, number, dec("42.10"))
	require.NoError(t, err)
	assert.Equal(t, models.Deposit, got.Type)
	assert.True(t, got.Amount.Equal(dec("42.10")))
	assert.Equal(t, "Deposit into "+number, got.Description)
	assert.Equal(t, t0, got.Timestamp)

	f.requireState(t, number, "42.10", 1)

	history, err := f.ledger.GetTransactions(number)
	require.NoError(t, err)
	assert.Equal(t, got, history[0])
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	number := f.account(t, "5")

	for _, amount := range []decimal.Decimal{decimal.Zero, dec("-1"), {}} {
		_, err := f.ledger.Deposit(f.ctx, number, amount)
		require.ErrorIs(t, err, ErrInvalidAmount)
	}
	f.requireState(t, number, "5", 1)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	number := f.account(t, "100")

	got, err := f.ledger.Withdraw(f.ctx, number, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, models.Withdrawal, got.Type)
	assert.Equal(t, "Withdraw from "+number, got.Description)
	f.requireState(t, number, "0", 2)

	_, err = f.ledger.Withdraw(f.ctx, number, dec("0.01"))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.ledger.Withdraw(f.ctx, number, dec("-3"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	f.requireState(t, number, "0", 2)
}

func TestUnknownAccount(t *testing.T) {
	f := newFixture(t)
	known := f.account(t, "10")

	_, err := f.ledger.Deposit(f.ctx, "ACC-NOPE", dec("1"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.Withdraw(f.ctx, "ACC-NOPE", dec("1"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.ledger.Transfer(f.ctx, known, "ACC-NOPE", dec("1")), ErrNotFound)
	assert.ErrorIs(t, f.ledger.Transfer(f.ctx, "ACC-NOPE", known, dec("1")), ErrNotFound)
	_, err = f.ledger.GetAccount("ACC-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.GetTransactions("ACC-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.GetBalance("ACC-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.Reconcile(f.ctx, "ACC-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.GetCustomer("CUS-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.ListAccounts("CUS-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	f.requireState(t, known, "10", 1)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "300")
	b := f.account(t, "20")

	require.NoError(t, f.ledger.Transfer(f.ctx, a, b, dec("120.50")))

	f.requireState(t, a, "179.50", 2)
	f.requireState(t, b, "140.50", 2)

	out, err := f.ledger.GetTransactions(a)
	require.NoError(t, err)
	assert.Equal(t, models.TransferOut, out[1].Type)
	assert.Equal(t, "Transfer to "+b, out[1].Description)

	in, err := f.ledger.GetTransactions(b)
	require.NoError(t, err)
	assert.Equal(t, models.TransferIn, in[1].Type)
	assert.Equal(t, "Transfer from "+a, in[1].Description)
	assert.NotEqual(t, out[1].ID, in[1].ID)
}

func TestTransferToSameAccount(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "50")

	for _, amount := range []string{"1", "50", "5000", "0", "-1"} {
		err := f.ledger.Transfer(f.ctx, a, a, dec(amount))
		require.ErrorIs(t, err, ErrInvalidArgument, amount)
	}
	// Checked before any lookup.
	assert.ErrorIs(t, f.ledger.Transfer(f.ctx, "ACC-X", "ACC-X", dec("1")), ErrInvalidArgument)

	f.requireState(t, a, "50", 1)
}

func TestTransferRejectedLeavesBothAccountsUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   error
	}{
		{"insufficient funds", "50.01", ErrInsufficientFunds},
		{"zero", "0", ErrInvalidAmount},
		{"negative", "-10", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.account(t, "50")
			b := f.account(t, "5")
			published := len(f.pub.events)

			err := f.ledger.Transfer(f.ctx, a, b, dec(tt.amount))
			require.ErrorIs(t, err, tt.want)

			f.requireState(t, a, "50", 1)
			f.requireState(t, b, "5", 1)
			assert.Len(t, f.pub.events, published)
		})
	}
}

func TestJournalFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "100")
	b := f.account(t, "")

	f.store.failing = true
	_, err := f.ledger.Deposit(f.ctx, a, dec("1"))
	require.Error(t, err)
	assert.Equal(t, Kind(""), KindOf(err))
	_, err = f.ledger.Withdraw(f.ctx, a, dec("1"))
	require.Error(t, err)
	require.Error(t, f.ledger.Transfer(f.ctx, a, b, dec("1")))
	f.store.failing = false

	f.requireState(t, a, "100", 1)
	f.requireState(t, b, "0", 0)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "10")
	b := f.account(t, "")

	_, err := f.ledger.Withdraw(f.ctx, a, dec("2"))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Transfer(f.ctx, a, b, dec("3")))

	require.Len(t, f.pub.events, 3)
	assert.Equal(t, events.OperationDeposit, f.pub.events[0].Type)
	assert.Equal(t, a, f.pub.events[0].ToAccount)
	assert.Equal(t, events.OperationWithdrawal, f.pub.events[1].Type)
	assert.Equal(t, a, f.pub.events[1].FromAccount)

	transfer := f.pub.events[2]
	assert.Equal(t, events.OperationTransfer, transfer.Type)
	assert.Equal(t, a, transfer.FromAccount)
	assert.Equal(t, b, transfer.ToAccount)
	assert.True(t, transfer.Amount.Equal(dec("3")))
	assert.Equal(t, []string{a, a, a}, f.pub.keys)
}

func TestPublishFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	f.pub.err = errors.New("broker down")

	a := f.account(t, "10")
	f.requireState(t, a, "10", 1)

	assert.Equal(t, 1, logs.FilterMessage("failed to publish transaction event").Len())
}

func TestRejectionsAreLoggedWithKind(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	a := f.account(t, "1")

	_, err := f.ledger.Withdraw(f.ctx, a, dec("2"))
	require.Error(t, err)

	rejected := logs.FilterMessage("operation rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, string(KindInsufficientFunds), rejected[0].ContextMap()["kind"])
	assert.Equal(t, "withdraw", rejected[0].ContextMap()["op"])
}

func TestLedgerEntriesMirrorHistory(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "500.00")
	b := f.account(t, "")
	_, err := f.ledger.Withdraw(f.ctx, a, dec("150.00"))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Transfer(f.ctx, a, b, dec("200.00")))

	entries, err := f.ledger.LedgerEntries(f.ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	sum := map[string]decimal.Decimal{}
	for _, e := range entries {
		sum[e.AccountNumber] = sum[e.AccountNumber].Add(e.Amount)
	}
	assert.True(t, sum[a].Equal(dec("150")))
	assert.True(t, sum[b].Equal(dec("200")))
	assert.Equal(t, models.TransferOut, entries[2].Type)
	assert.True(t, entries[2].Amount.IsNegative())
}

// The walkthrough from the original demo: deposit, withdraw, transfer, then a
// withdrawal that must bounce.
func TestLedgerScenario(t *testing.T) {
	f := newFixture(t)

	alice, err := f.ledger.CreateCustomer("Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := f.ledger.CreateCustomer("Bob", "bob@example.com")
	require.NoError(t, err)

	src, err := f.ledger.OpenAccount(alice.ID, models.Current)
	require.NoError(t, err)
	dst, err := f.ledger.OpenAccount(bob.ID, models.Current)
	require.NoError(t, err)
	f.requireState(t, src, "0", 0)

	_, err = f.ledger.Deposit(f.ctx, src, dec("500.00"))
	require.NoError(t, err)
	f.requireState(t, src, "500.00", 1)

	_, err = f.ledger.Withdraw(f.ctx, src, dec("150.00"))
	require.NoError(t, err)
	f.requireState(t, src, "350.00", 2)

	require.NoError(t, f.ledger.Transfer(f.ctx, src, dst, dec("200.00")))
	f.requireState(t, src, "150.00", 3)
	f.requireState(t, dst, "200.00", 1)

	_, err = f.ledger.Withdraw(f.ctx, src, dec("1000.00"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	f.requireState(t, src, "150.00", 3)
}

func TestConcurrentOperationsConserveMoney(t *testing.T) {
	f := newFixture(t, WithIDGenerator(idgen.NewRandom()))

	const (
		accounts = 4
		workers  = 16
		rounds   = 200
	)
	numbers := make([]string, accounts)
	for i := range numbers {
		numbers[i] = f.account(t, "1000")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		netFlow = decimal.Zero // deposits minus withdrawals that succeeded
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				a := numbers[(w+i)%accounts]
				b := numbers[(w+i+1+w%2)%accounts]
				switch i % 4 {
				case 0, 1:
					// Opposite directions on the same pair exercise lock ordering.
					from, to := a, b
					if w%2 == 1 {
						from, to = b, a
					}
					_ = f.ledger.Transfer(f.ctx, from, to, dec("7.25"))
				case 2:
					if _, err := f.ledger.Deposit(f.ctx, a, dec("3")); err == nil {
						mu.Lock()
						netFlow = netFlow.Add(dec("3"))
						mu.Unlock()
					}
				case 3:
					if _, err := f.ledger.Withdraw(f.ctx, a, dec("11")); err == nil {
						mu.Lock()
						netFlow = netFlow.Sub(dec("11"))
						mu.Unlock()
					}
				}
			}
		}(w)
	}
	wg.Wait()

	total := decimal.Zero
	for _, n := range numbers {
		bal, err := f.ledger.GetBalance(n)
		require.NoError(t, err)
		assert.False(t, bal.IsNegative())
		total = total.Add(bal)

		r, err := f.ledger.Reconcile(f.ctx, n)
		require.NoError(t, err)
		assert.True(t, r.Balanced, fmt.Sprintf("%+v", r))
	}
	want := dec("1000").Mul(decimal.NewFromInt(accounts)).Add(netFlow)
	assert.True(t, total.Equal(want), "total %s, want %s", total, want)
}

func TestConcurrentAccountOpeningYieldsUniqueNumbers(t *testing.T) {
	f := newFixture(t, WithIDGenerator(idgen.NewRandom()))
	c, err := f.ledger.CreateCustomer("Carol", "carol@example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.OpenAccount(c.ID, models.Savings)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	accounts, err := f.ledger.ListAccounts(c.ID)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, a := range accounts {
		seen[a.AccountNumber] = true
	}
	assert.Len(t, seen, 64)
}
