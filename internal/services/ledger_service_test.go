package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/store"
	"homeledger/internal/store/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expense(day int, amount, category string) core.Transaction {
	return core.Transaction{
		Date:     core.NewDate(2024, 3, day),
		Kind:     core.Expense,
		Amount:   dec(amount),
		Category: category,
	}
}

// rewriteOnly hides the memory store's append capability. Every conflicts
// counter tick simulates another writer landing between read and replace.
type rewriteOnly struct {
	m         *memory.Store
	conflicts int
}

func (r *rewriteOnly) ReadTransactions(ctx context.Context) ([]core.Transaction, store.Version, error) {
	return r.m.ReadTransactions(ctx)
}

func (r *rewriteOnly) ReadSnapshots(ctx context.Context) ([]core.AssetSnapshot, store.Version, error) {
	return r.m.ReadSnapshots(ctx)
}

func (r *rewriteOnly) ReplaceTransactions(ctx context.Context, all []core.Transaction, expect store.Version) (store.Version, error) {
	if r.conflicts > 0 {
		r.conflicts--
		if _, err := r.m.AppendTransaction(ctx, expense(1, "1", "concurrent")); err != nil {
			return 0, err
		}
	}
	return r.m.ReplaceTransactions(ctx, all, expect)
}

func (r *rewriteOnly) ReplaceSnapshots(ctx context.Context, all []core.AssetSnapshot, expect store.Version) (store.Version, error) {
	return r.m.ReplaceSnapshots(ctx, all, expect)
}

func (r *rewriteOnly) ListCategories(ctx context.Context) ([]string, error) {
	return r.m.ListCategories(ctx)
}

// readOnly offers reads only.
type readOnly struct{ m *memory.Store }

func (r readOnly) ReadTransactions(ctx context.Context) ([]core.Transaction, store.Version, error) {
	return r.m.ReadTransactions(ctx)
}

func (r readOnly) ReadSnapshots(ctx context.Context) ([]core.AssetSnapshot, store.Version, error) {
	return r.m.ReadSnapshots(ctx)
}

func (r readOnly) ListCategories(ctx context.Context) ([]string, error) {
	return r.m.ListCategories(ctx)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RecordAppendedMessage
	err  error
}

func (p *recordingPublisher) PublishRecordAppended(_ context.Context, msg *amqp.RecordAppendedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestRecordTransaction_Appends(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	pub := &recordingPublisher{}
	svc := NewLedgerService(st, core.NewValidator(nil), pub, 3)
	invalidated := 0
	svc.OnWrite(func() { invalidated++ })

	got, version, err := svc.RecordTransaction(ctx, core.Transaction{
		Date:     core.NewDate(2024, 3, 2),
		Kind:     core.Expense,
		Amount:   dec("12.50"),
		Category: "  Dining ",
	})
	require.NoError(t, err)

	assert.Equal(t, store.Version(1), version)
	assert.Equal(t, "Dining", got.Category)
	assert.Equal(t, core.Household, got.Person)
	assert.Equal(t, 1, invalidated)

	txs, _, err := st.ReadTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, got.Category, txs[0].Category)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, string(store.Transactions), pub.msgs[0].Stream)
	assert.Equal(t, int64(1), pub.msgs[0].Version)
	assert.Equal(t, "2024-03-02", pub.msgs[0].Date)
}

func TestRecordTransaction_ValidationErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	pub := &recordingPublisher{}
	svc := NewLedgerService(st, core.NewValidator([]string{"alice", "bob"}), pub, 3)

	_, _, err := svc.RecordTransaction(ctx, core.Transaction{
		Date:   core.NewDate(2024, 3, 2),
		Kind:   core.Expense,
		Amount: dec("-4"),
	})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, _, err = svc.RecordTransaction(ctx, core.Transaction{
		Date:   core.NewDate(2024, 3, 2),
		Kind:   core.Expense,
		Amount: dec("4"),
		Person: "carol",
	})
	assert.ErrorIs(t, err, core.ErrUnknownPerson)

	txs, version, err := st.ReadTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, store.Version(0), version)
	assert.Empty(t, pub.msgs)
}

func TestRecordTransaction_PublishFailureIsNotFatal(t *testing.T) {
	st := memory.New(nil)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(st, core.NewValidator(nil), pub, 3)

	_, version, err := svc.RecordTransaction(context.Background(), expense(3, "10", "Groceries"))
	require.NoError(t, err)
	assert.Equal(t, store.Version(1), version)
	assert.Len(t, pub.msgs, 1)
}

func TestRecordTransaction_RewriteRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	rw := &rewriteOnly{m: memory.New(nil), conflicts: 2}
	svc := NewLedgerService(rw, core.NewValidator(nil), nil, 3)

	_, _, err := svc.RecordTransaction(ctx, expense(5, "30", "Groceries"))
	require.NoError(t, err)

	txs, _, err := rw.ReadTransactions(ctx)
	require.NoError(t, err)
	// both concurrent writes survive and ours lands last
	require.Len(t, txs, 3)
	assert.Equal(t, "concurrent", txs[0].Category)
	assert.Equal(t, "concurrent", txs[1].Category)
	assert.Equal(t, "Groceries", txs[2].Category)
}

func TestRecordTransaction_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	rw := &rewriteOnly{m: memory.New(nil), conflicts: 5}
	svc := NewLedgerService(rw, core.NewValidator(nil), nil, 2)

	_, _, err := svc.RecordTransaction(ctx, expense(5, "30", "Groceries"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	txs, _, err := rw.ReadTransactions(ctx)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.Equal(t, "concurrent", tx.Category)
	}
}

func TestRecordSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("appender", func(t *testing.T) {
		st := memory.New(nil)
		pub := &recordingPublisher{}
		svc := NewLedgerService(st, core.NewValidator(nil), pub, 3)

		got, version, err := svc.RecordSnapshot(ctx, core.AssetSnapshot{
			Date:     core.NewDate(2024, 5, 31),
			Identity: core.AssetIdentity{Name: " Broker "},
			Class:    core.HighRiskInvestment,
			Balance:  dec("1500"),
		})
		require.NoError(t, err)
		assert.Equal(t, store.Version(1), version)
		assert.Equal(t, core.AssetIdentity{Name: "Broker", Owner: core.JointOwner}, got.Identity)
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, string(store.AssetSnapshots), pub.msgs[0].Stream)
	})

	t.Run("rewriter", func(t *testing.T) {
		rw := &rewriteOnly{m: memory.New(nil)}
		svc := NewLedgerService(rw, core.NewValidator(nil), nil, 3)

		for i, bal := range []string{"100", "-40"} {
			_, version, err := svc.RecordSnapshot(ctx, core.AssetSnapshot{
				Date:     core.NewDate(2024, 5, i+1),
				Identity: core.AssetIdentity{Name: "Card", Owner: "alice"},
				Class:    core.Liability,
				Balance:  dec(bal),
			})
			require.NoError(t, err)
			assert.Equal(t, store.Version(i+1), version)
		}
		snaps, _, err := rw.ReadSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.True(t, dec("-40").Equal(snaps[1].Balance))
	})

	t.Run("invalid class", func(t *testing.T) {
		svc := NewLedgerService(memory.New(nil), core.NewValidator(nil), nil, 3)
		_, _, err := svc.RecordSnapshot(ctx, core.AssetSnapshot{
			Date:     core.NewDate(2024, 5, 31),
			Identity: core.AssetIdentity{Name: "Car"},
			Class:    "vehicle",
		})
		assert.ErrorIs(t, err, core.ErrInvalidAssetClass)
	})
}

func TestRecord_ReadOnlyStore(t *testing.T) {
	svc := NewLedgerService(readOnly{m: memory.New(nil)}, core.NewValidator(nil), nil, 3)

	_, _, err := svc.RecordTransaction(context.Background(), expense(1, "5", "Dining"))
	assert.ErrorIs(t, err, ErrReadOnly)
}
