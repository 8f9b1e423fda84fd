package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
)

func TestBuildReport(t *testing.T) {
	// GIVEN: A ledger and an issued-only query
	generated := time.Date(2024, time.March, 31, 18, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	q := stock.Query{View: stock.ViewIssued}

	// WHEN: Building the report without a title
	r := stock.BuildReport(sampleLedger(), q, testNames(), "  ", generated)

	// THEN: Title, summary and rows follow the query
	assert.Equal(t, "Issued Transactions", r.Title)
	assert.Equal(t, "View: Issued", r.FilterSummary)
	assert.Equal(t, time.UTC, r.GeneratedAt.Location())
	assert.True(t, generated.Equal(r.GeneratedAt))

	require.Len(t, r.Rows, 2)
	row := r.Rows[0]
	assert.Equal(t, "Jeans", row.ItemName)
	assert.Equal(t, "M", row.SizeName)
	assert.Equal(t, "Acme", row.CustomerName)
	assert.Equal(t, "DO-2", row.DeliveryOrderNumber)

	// AND: Totals cover only the matching rows
	assert.Equal(t, stock.Totals{TotalReceived: 0, TotalIssued: 7, NetBalance: -7}, r.Totals)
}

func TestBuildReport_CustomTitleAndOrphans(t *testing.T) {
	r := stock.BuildReport(sampleLedger(), stock.Query{Brand: "Wrangler"}, testNames(), "March audit", time.Now())

	assert.Equal(t, "March audit", r.Title)
	assert.Equal(t, "Brand: Wrangler", r.FilterSummary)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, stock.OrphanLabel, r.Rows[0].ItemName)
	assert.Empty(t, r.Rows[0].CustomerName, "received rows have no customer")
}

func TestTotalsOf(t *testing.T) {
	totals := stock.TotalsOf(sampleLedger())
	assert.Equal(t, int64(39), totals.TotalReceived)
	assert.Equal(t, int64(7), totals.TotalIssued)
	assert.Equal(t, int64(32), totals.NetBalance)

	assert.Equal(t, stock.Totals{}, stock.TotalsOf(nil))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "All Transactions", stock.DefaultTitle(stock.ViewAll))
	assert.Equal(t, "All Transactions", stock.DefaultTitle(""))
	assert.Equal(t, "Received Transactions", stock.DefaultTitle(stock.ViewReceived))
}

func TestReporter_Report(t *testing.T) {
	// GIVEN: Two movements appended through the ledger
	ctx := context.Background()
	f := newFixture(t, stock.WithClock(tickingClock()))
	key := f.key("Levi's")
	f.receive(t, march(1), key, 20)
	f.issue(t, march(2), key, 5)

	stamp := time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)
	reporter := f.reporter.WithClock(func() time.Time { return stamp })

	// WHEN: Reporting everything
	r, err := reporter.Report(ctx, stock.ReportRequest{})
	require.NoError(t, err)

	// THEN: Rows are in canonical order with balances
	assert.Equal(t, "All Transactions", r.Title)
	assert.Equal(t, "All records", r.FilterSummary)
	assert.Equal(t, stamp, r.GeneratedAt)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, stock.KindIssued, r.Rows[0].Kind)
	assert.Equal(t, int64(15), r.Rows[0].Balance)
	assert.Equal(t, int64(20), r.Rows[1].Balance)
	assert.Equal(t, int64(15), r.Totals.NetBalance)
}

func TestReporter_Report_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.reporter.Report(context.Background(), stock.ReportRequest{Query: stock.Query{
		From: march(10),
		To:   march(1),
	}})

	assert.ErrorIs(t, err, stock.ErrValidation)
}

func TestReporter_Movements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, march(1), f.key("A"), 4)
	f.receive(t, march(1), stock.NewStockKey(f.shirt, f.large, "B"), 9)

	rows, totals, err := f.reporter.Movements(ctx, stock.Query{Search: "shirt"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T-Shirt", rows[0].ItemName)
	assert.Equal(t, "L", rows[0].SizeName)
	assert.Equal(t, int64(9), totals.TotalReceived)

	low, err := f.reporter.LowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, low, 2)

	d, err := f.reporter.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), d.TotalStock)
}
