package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
	"github.com/warp/stock-ledger/stock/store"
	"github.com/warp/stock-ledger/stock/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) stock.Store { return store.NewMemory() })
}

var key = stock.NewStockKey("jeans", "m", "Levi's")

func testEntry(id string, day, minute int) stock.Entry {
	return stock.Entry{
		ID:              stock.EntryID(id),
		TransactionDate: stock.NewDate(2024, time.March, day),
		Key:             key,
		Received:        1,
		Kind:            stock.KindBalanceForward,
		CreatedAt:       time.Date(2024, time.March, 1, 0, minute, 0, 0, time.UTC),
	}
}

func insert(t *testing.T, m *store.Memory, entries ...stock.Entry) {
	t.Helper()
	require.NoError(t, m.WithTx(context.Background(), func(tx stock.Tx) error {
		for _, e := range entries {
			if err := tx.InsertEntry(context.Background(), e); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestMemory_DuplicateEntryID(t *testing.T) {
	m := store.NewMemory()
	insert(t, m, testEntry("a", 1, 1))

	err := m.WithTx(context.Background(), func(tx stock.Tx) error {
		return tx.InsertEntry(context.Background(), testEntry("a", 2, 2))
	})
	assert.Error(t, err)
}

func TestMemory_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// First write expects version 0
	require.NoError(t, m.WithTx(ctx, func(tx stock.Tx) error {
		_, ok, err := tx.RunningBalance(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		return tx.PutRunningBalance(ctx, key, 10, 0)
	}))

	// A stale version loses
	err := m.WithTx(ctx, func(tx stock.Tx) error {
		return tx.PutRunningBalance(ctx, key, 20, 0)
	})
	assert.ErrorIs(t, err, stock.ErrConcurrentModification)
	assert.True(t, stock.IsRetryable(err))

	balances, err := m.RunningBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(10), balances[0].Balance)
	assert.Equal(t, int64(1), balances[0].Version)
	assert.False(t, balances[0].UpdatedAt.IsZero())
}
