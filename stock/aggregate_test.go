package stock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
)

var base = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func entry(id string, key stock.StockKey, received, issued int64, createdMinutes int) stock.Entry {
	kind := stock.KindReceived
	if issued > 0 {
		kind = stock.KindIssued
	}
	return stock.Entry{
		ID:              stock.EntryID(id),
		TransactionDate: stock.DateOf(base),
		Key:             key,
		Received:        received,
		Issued:          issued,
		Kind:            kind,
		CreatedAt:       base.Add(time.Duration(createdMinutes) * time.Minute),
	}
}

func k(item, brand string) stock.StockKey {
	return stock.NewStockKey(stock.ItemID(item), "size-m", brand)
}

func TestCurrentStock_SumsPerKey(t *testing.T) {
	entries := []stock.Entry{
		entry("1", k("jeans", "A"), 20, 0, 1),
		entry("2", k("jeans", "A"), 0, 5, 2),
		entry("3", k("jeans", "B"), 8, 0, 3),
		entry("4", k("jeans", "A"), 3, 0, 4),
	}

	levels := stock.CurrentStock(entries)

	require.Len(t, levels, 2)
	a := levels[k("jeans", "A")]
	assert.Equal(t, int64(23), a.TotalReceived)
	assert.Equal(t, int64(5), a.TotalIssued)
	assert.Equal(t, int64(18), a.CurrentStock)
	assert.Equal(t, int64(8), levels[k("jeans", "B")].CurrentStock)
}

func TestCurrentStock_OrderIndependent(t *testing.T) {
	entries := []stock.Entry{
		entry("1", k("jeans", "A"), 20, 0, 1),
		entry("2", k("jeans", "A"), 0, 25, 2),
		entry("3", k("jeans", "A"), 4, 0, 3),
	}
	reversed := []stock.Entry{entries[2], entries[1], entries[0]}

	assert.Equal(t, stock.CurrentStock(entries), stock.CurrentStock(reversed))
	assert.Equal(t, int64(-1), stock.CurrentStock(entries)[k("jeans", "A")].CurrentStock)
}

func TestIsLow(t *testing.T) {
	tests := []struct {
		stock int64
		low   bool
	}{
		{-3, false},
		{0, false},
		{1, true},
		{9, true},
		{10, false},
		{50, false},
	}
	for _, tt := range tests {
		l := stock.StockLevel{CurrentStock: tt.stock}
		assert.Equal(t, tt.low, l.IsLow(), "stock %d", tt.stock)
	}
}

func TestLowStock_KeyOrder(t *testing.T) {
	levels := stock.CurrentStock([]stock.Entry{
		entry("1", k("shirt", "A"), 5, 0, 1),
		entry("2", k("jeans", "B"), 9, 0, 2),
		entry("3", k("jeans", "A"), 10, 0, 3),
		entry("4", k("coat", "A"), 2, 2, 4),
	})

	low := stock.LowStock(levels)

	require.Len(t, low, 2)
	assert.Equal(t, k("jeans", "B"), low[0].Key)
	assert.Equal(t, k("shirt", "A"), low[1].Key)
}

func TestTopReceivedAndIssued(t *testing.T) {
	levels := stock.CurrentStock([]stock.Entry{
		entry("1", k("a", "X"), 50, 0, 1),
		entry("2", k("b", "X"), 70, 0, 2),
		entry("3", k("c", "X"), 50, 0, 3),
		entry("4", k("b", "X"), 0, 10, 4),
		entry("5", k("c", "X"), 0, 30, 5),
	})

	top := stock.TopReceived(levels, 2)
	require.Len(t, top, 2)
	assert.Equal(t, k("b", "X"), top[0].Key)
	assert.Equal(t, k("a", "X"), top[1].Key, "ties break by key")

	issued := stock.TopIssued(levels, 5)
	require.Len(t, issued, 3, "keys with nothing issued still rank")
	assert.Equal(t, k("c", "X"), issued[0].Key)
	assert.Equal(t, k("b", "X"), issued[1].Key)
	assert.Equal(t, int64(0), issued[2].TotalIssued)

	assert.Nil(t, stock.TopReceived(levels, 0))
}

func TestRecentActivity_ByCreationNotTransactionDate(t *testing.T) {
	old := entry("1", k("a", "X"), 1, 0, 30)
	old.TransactionDate = stock.NewDate(2020, time.January, 1)
	entries := []stock.Entry{
		entry("2", k("a", "X"), 1, 0, 10),
		old,
		entry("3", k("a", "X"), 1, 0, 20),
		entry("4", k("a", "X"), 1, 0, 20),
	}

	recent := stock.RecentActivity(entries, 3)

	require.Len(t, recent, 3)
	assert.Equal(t, stock.EntryID("1"), recent[0].ID)
	assert.Equal(t, stock.EntryID("4"), recent[1].ID)
	assert.Equal(t, stock.EntryID("3"), recent[2].ID)
	assert.Equal(t, stock.EntryID("2"), entries[0].ID, "input is not reordered")
}

func TestBuildDashboard(t *testing.T) {
	entries := []stock.Entry{
		entry("1", k("a", "X"), 40, 0, 1),
		entry("2", k("a", "X"), 0, 35, 2),
		entry("3", k("b", "X"), 12, 0, 3),
	}

	d := stock.BuildDashboard(entries, stock.DashboardSize)

	assert.Equal(t, 2, d.TotalKeys)
	assert.Equal(t, int64(17), d.TotalStock)
	require.Len(t, d.LowStock, 1)
	assert.Equal(t, k("a", "X"), d.LowStock[0].Key)
	assert.Equal(t, k("a", "X"), d.TopReceived[0].Key)
	assert.Equal(t, k("a", "X"), d.TopIssued[0].Key)
	require.Len(t, d.Recent, 3)
	assert.Equal(t, stock.EntryID("3"), d.Recent[0].ID)
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := stock.BuildDashboard(nil, stock.DashboardSize)
	assert.Zero(t, d.TotalKeys)
	assert.Empty(t, d.TopReceived)
	assert.Empty(t, d.LowStock)
	assert.Empty(t, d.Recent)
}
