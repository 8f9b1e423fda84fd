// Package storetest is a conformance suite for stock.Store
// implementations. Every store runs the same cases:
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) stock.Store { return newStore(t) })
//	}
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/lock"
	"github.com/warp/stock-ledger/stock"
)

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) stock.Store

// Run executes every case against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(*testing.T, stock.Store)
	}{
		{"CanonicalOrder", testCanonicalOrder},
		{"LatestForKey", testLatestForKey},
		{"RoundTrip", testRoundTrip},
		{"CompareAndSet", testCompareAndSet},
		{"Rollback", testRollback},
		{"Catalog", testCatalog},
		{"LedgerConcurrency", testLedgerConcurrency},
		{"LedgerConcurrencyTwoLedgers", testLedgerConcurrencyTwoLedgers},
		{"BrandsDifferingInCase", testBrandsDifferingInCase},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, newStore(t))
		})
	}
}

var key = stock.NewStockKey("item-1", "size-1", "Levi's")

var created = time.Date(2024, time.March, 1, 8, 0, 0, 123456789, time.UTC)

func entry(id string, day, second int) stock.Entry {
	return stock.Entry{
		ID:              stock.EntryID(id),
		TransactionDate: stock.NewDate(2024, time.March, day),
		Key:             key,
		Received:        1,
		Balance:         1,
		Kind:            stock.KindBalanceForward,
		CreatedAt:       created.Add(time.Duration(second) * time.Second),
	}
}

func insert(t *testing.T, s stock.Store, entries ...stock.Entry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx stock.Tx) error {
		for _, e := range entries {
			if err := tx.InsertEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))
}

func entryIDs(entries []stock.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.ID)
	}
	return out
}

func testCanonicalOrder(t *testing.T, s stock.Store) {
	insert(t, s,
		entry("a", 1, 1),
		entry("b", 3, 2),
		entry("c", 2, 3),
		entry("d", 3, 4),
		entry("f", 3, 4),
		entry("e", 3, 4),
	)

	entries, err := s.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "e", "d", "b", "c", "a"}, entryIDs(entries))
}

func testLatestForKey(t *testing.T, s stock.Store) {
	ctx := context.Background()

	latest, err := s.LatestForKey(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, latest)

	other := entry("z", 9, 9)
	other.Key = stock.NewStockKey("item-2", "size-1", "Levi's")
	insert(t, s, entry("a", 1, 1), entry("b", 5, 0), other)

	latest, err = s.LatestForKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, stock.EntryID("b"), latest.ID)
}

func testRoundTrip(t *testing.T, s stock.Store) {
	ctx := context.Background()
	issued := stock.Entry{
		ID:                  "issue-1",
		TransactionDate:     stock.NewDate(2024, time.February, 29),
		Key:                 key,
		Issued:              7,
		Balance:             -7,
		Kind:                stock.KindIssued,
		CustomerID:          "cust-1",
		DeliveryOrderNumber: "DO-77",
		CreatedAt:           created,
	}
	received := stock.Entry{
		ID:              "recv-1",
		TransactionDate: stock.NewDate(2024, time.February, 28),
		Key:             key,
		Received:        12,
		Balance:         12,
		Kind:            stock.KindReceived,
		GRNNumber:       "GRN-12",
		CreatedAt:       created.Add(-time.Nanosecond),
	}
	insert(t, s, issued, received)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := entries[0]
	assert.Equal(t, issued.ID, got.ID)
	assert.True(t, issued.TransactionDate.Equal(got.TransactionDate))
	assert.True(t, issued.CreatedAt.Equal(got.CreatedAt), "created_at keeps nanoseconds")
	assert.Equal(t, issued.Key, got.Key)
	assert.Equal(t, issued.Kind, got.Kind)
	assert.Equal(t, issued.Issued, got.Issued)
	assert.Equal(t, issued.Balance, got.Balance)
	assert.Equal(t, issued.CustomerID, got.CustomerID)
	assert.Equal(t, issued.DeliveryOrderNumber, got.DeliveryOrderNumber)
	assert.Empty(t, got.GRNNumber)

	assert.Equal(t, "GRN-12", entries[1].GRNNumber)
	assert.Empty(t, entries[1].CustomerID)
}

func testCompareAndSet(t *testing.T, s stock.Store) {
	ctx := context.Background()

	put := func(balance, version int64) error {
		return s.WithTx(ctx, func(tx stock.Tx) error {
			return tx.PutRunningBalance(ctx, key, balance, version)
		})
	}

	require.NoError(t, put(10, 0))
	assert.ErrorIs(t, put(99, 0), stock.ErrConcurrentModification, "second first-write")
	require.NoError(t, put(15, 1))
	assert.ErrorIs(t, put(99, 1), stock.ErrConcurrentModification, "stale version")

	require.NoError(t, s.WithTx(ctx, func(tx stock.Tx) error {
		rb, ok, err := tx.RunningBalance(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(15), rb.Balance)
		assert.Equal(t, int64(2), rb.Version)
		return nil
	}))

	balances, err := s.RunningBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, key, balances[0].Key)
}

func testRollback(t *testing.T, s stock.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx stock.Tx) error {
		if err := tx.PutRunningBalance(ctx, key, 5, 0); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, entry("a", 1, 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
	assert.Empty(t, snap.Balances)
}

func testCatalog(t *testing.T, s stock.Store) {
	ctx := context.Background()
	add := func(kind stock.CatalogKind, id, name string) {
		require.NoError(t, s.AddCatalogEntry(ctx, kind, stock.CatalogEntry{ID: id, Name: name, CreatedAt: created}))
	}
	add(stock.CatalogItems, "2", "Jeans")
	add(stock.CatalogItems, "1", "Jeans")
	add(stock.CatalogItems, "3", "Hoodie")
	add(stock.CatalogSizes, "3", "XL")

	items, err := s.ListCatalog(ctx, stock.CatalogItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.True(t, created.Equal(items[0].CreatedAt))

	size, err := s.GetCatalogEntry(ctx, stock.CatalogSizes, "3")
	require.NoError(t, err)
	require.NotNil(t, size)
	assert.Equal(t, "XL", size.Name)

	missing, err := s.GetCatalogEntry(ctx, stock.CatalogCustomers, "3")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.RemoveCatalogEntry(ctx, stock.CatalogItems, "3"))
	err = s.RemoveCatalogEntry(ctx, stock.CatalogItems, "3")
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

// testLedgerConcurrency drives the store through the real ledger.
func testLedgerConcurrency(t *testing.T, s stock.Store) {
	ctx := context.Background()
	catalog := stock.NewCatalog(s)

	item, _, err := catalog.Add(ctx, stock.CatalogItems, "Jeans")
	require.NoError(t, err)
	size, _, err := catalog.Add(ctx, stock.CatalogSizes, "M")
	require.NoError(t, err)
	customer, _, err := catalog.Add(ctx, stock.CatalogCustomers, "Acme")
	require.NoError(t, err)

	ledger := stock.NewLedger(s, stock.WithRetry(20, time.Millisecond))
	k := stock.NewStockKey(stock.ItemID(item.ID), stock.SizeID(size.ID), "X")
	date := stock.NewDate(2024, time.March, 1)

	_, err = ledger.Append(ctx, stock.BalanceForward(date, k, 50))
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Append(ctx, stock.Received(date, k, 5, fmt.Sprintf("GRN-%d", i)))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Append(ctx, stock.Issued(date, k, 3, stock.CustomerID(customer.ID), fmt.Sprintf("DO-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	latest, err := ledger.Latest(ctx, k)
	require.NoError(t, err)
	require.NotNil(t, latest)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 1+2*workers)

	report := stock.CheckIntegrity(snap.Entries, snap.Balances)
	assert.True(t, report.OK(), "mismatches: %+v", report.Mismatches)

	levels := stock.CurrentStock(snap.Entries)
	assert.Equal(t, int64(50+workers*5-workers*3), levels[k].CurrentStock)
}

// ledgerFixture adds one item, one size and one customer to s.
type ledgerFixture struct {
	item     stock.ItemID
	size     stock.SizeID
	customer stock.CustomerID
}

func newLedgerFixture(t *testing.T, s stock.Store) ledgerFixture {
	t.Helper()
	ctx := context.Background()
	catalog := stock.NewCatalog(s)

	add := func(kind stock.CatalogKind, name string) string {
		e, _, err := catalog.Add(ctx, kind, name)
		require.NoError(t, err)
		return e.ID
	}
	return ledgerFixture{
		item:     stock.ItemID(add(stock.CatalogItems, "Sneakers")),
		size:     stock.SizeID(add(stock.CatalogSizes, "L")),
		customer: stock.CustomerID(add(stock.CatalogCustomers, "Acme")),
	}
}

// testLedgerConcurrencyTwoLedgers runs two ledgers with separate
// in-process lockers against one store, as two server processes without
// Redis would. Only the store serializes their appends.
func testLedgerConcurrencyTwoLedgers(t *testing.T, s stock.Store) {
	ctx := context.Background()
	fx := newLedgerFixture(t, s)
	k := stock.NewStockKey(fx.item, fx.size, "X")
	date := stock.NewDate(2024, time.March, 1)

	ledgers := []*stock.Ledger{
		stock.NewLedger(s, stock.WithLocker(lock.NewLocal()), stock.WithRetry(50, time.Millisecond)),
		stock.NewLedger(s, stock.WithLocker(lock.NewLocal()), stock.WithRetry(50, time.Millisecond)),
	}

	const perLedger = 15
	var wg sync.WaitGroup
	for li, ledger := range ledgers {
		for i := 0; i < perLedger; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := ledger.Append(ctx, stock.Received(date, k, 4, fmt.Sprintf("GRN-%d-%d", li, i)))
				assert.NoError(t, err)
			}(i)
			go func(i int) {
				defer wg.Done()
				_, err := ledger.Append(ctx, stock.Issued(date, k, 1, fx.customer, fmt.Sprintf("DO-%d-%d", li, i)))
				assert.NoError(t, err)
			}(i)
		}
	}
	wg.Wait()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2*2*perLedger)

	report := stock.CheckIntegrity(snap.Entries, snap.Balances)
	assert.True(t, report.OK(), "mismatches: %+v", report.Mismatches)

	levels := stock.CurrentStock(snap.Entries)
	assert.Equal(t, int64(2*perLedger*(4-1)), levels[k].CurrentStock)
}

// testBrandsDifferingInCase checks that the store compares brands exactly.
func testBrandsDifferingInCase(t *testing.T, s stock.Store) {
	ctx := context.Background()
	fx := newLedgerFixture(t, s)
	ledger := stock.NewLedger(s)
	date := stock.NewDate(2024, time.March, 1)

	brands := map[string]int64{"Nike": 10, "NIKE": 1, "Niké": 4}
	keys := make(map[string]stock.StockKey, len(brands))
	for brand, qty := range brands {
		keys[brand] = stock.NewStockKey(fx.item, fx.size, brand)
		e, err := ledger.Append(ctx, stock.Received(date, keys[brand], qty, "GRN-"+brand))
		require.NoError(t, err)
		assert.Equal(t, qty, e.Balance, brand)
	}

	for brand, qty := range brands {
		latest, err := s.LatestForKey(ctx, keys[brand])
		require.NoError(t, err)
		require.NotNil(t, latest, brand)
		assert.Equal(t, brand, latest.Key.Brand)
		assert.Equal(t, qty, latest.Balance, brand)
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Balances, len(brands))
	report := stock.CheckIntegrity(snap.Entries, snap.Balances)
	assert.True(t, report.OK(), "mismatches: %+v", report.Mismatches)
}
