package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
	"github.com/warp/stock-ledger/stock/storetest"
	"github.com/warp/stock-ledger/store/sqlite"
	"github.com/warp/stock-ledger/store/sqlstore"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) stock.Store { return newStore(t) })
}

func TestSQLite_ReopenKeepsLedger(t *testing.T) {
	// GIVEN: A file database with one movement
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stock.db")

	st, err := sqlite.New(path)
	require.NoError(t, err)

	catalog := stock.NewCatalog(st)
	item, _, err := catalog.Add(ctx, stock.CatalogItems, "Jeans")
	require.NoError(t, err)
	size, _, err := catalog.Add(ctx, stock.CatalogSizes, "M")
	require.NoError(t, err)

	key := stock.NewStockKey(stock.ItemID(item.ID), stock.SizeID(size.ID), "Levi's")
	_, err = stock.NewLedger(st).Append(ctx, stock.Received(stock.NewDate(2024, time.March, 1), key, 20, "GRN-1"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// WHEN: Reopening (migrations run again)
	st, err = sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// THEN: The running balance continues from the stored counter
	e, err := stock.NewLedger(st).Append(ctx, stock.BalanceForward(stock.NewDate(2024, time.March, 2), key, 5))
	require.NoError(t, err)
	assert.Equal(t, int64(25), e.Balance)
}

func TestSQLite_CheckConstraintRejectsNegativeQuantity(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	err := st.WithTx(ctx, func(tx stock.Tx) error {
		return tx.InsertEntry(ctx, stock.Entry{
			ID:              "bad",
			TransactionDate: stock.NewDate(2024, time.March, 1),
			Key:             stock.NewStockKey("i", "s", "b"),
			Received:        -1,
			Kind:            stock.KindReceived,
			CreatedAt:       time.Now(),
		})
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, stock.ErrConcurrentModification)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	_, err := st.DB().ExecContext(ctx, `INSERT INTO items (id, name, created_at) VALUES ('x', 'a', 'now')`)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(ctx, `INSERT INTO items (id, name, created_at) VALUES ('x', 'b', 'now')`)
	require.Error(t, err)

	assert.True(t, sqlite.IsUniqueViolation(err))
	assert.False(t, sqlite.IsUniqueViolation(errors.New("UNIQUE constraint failed")))
}
