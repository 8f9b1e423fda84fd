package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
)

func testNames() *stock.Names {
	return stock.NewNames(
		[]stock.CatalogEntry{{ID: "jeans", Name: "Jeans"}, {ID: "shirt", Name: "T-Shirt"}},
		[]stock.CatalogEntry{{ID: "m", Name: "M"}, {ID: "xl", Name: "XL"}},
		[]stock.CatalogEntry{{ID: "acme", Name: "Acme"}},
	)
}

func movement(id string, item, size, brand string, day int, received, issued int64) stock.Entry {
	e := stock.Entry{
		ID:              stock.EntryID(id),
		TransactionDate: stock.NewDate(2024, time.March, day),
		Key:             stock.NewStockKey(stock.ItemID(item), stock.SizeID(size), brand),
		Received:        received,
		Issued:          issued,
		Kind:            stock.KindReceived,
		GRNNumber:       "GRN-" + id,
	}
	if issued > 0 {
		e.Kind = stock.KindIssued
		e.GRNNumber = ""
		e.CustomerID = "acme"
		e.DeliveryOrderNumber = "DO-" + id
	}
	return e
}

func sampleLedger() []stock.Entry {
	return []stock.Entry{
		movement("1", "jeans", "m", "Levi's", 1, 20, 0),
		movement("2", "jeans", "m", "Levi's", 5, 0, 5),
		movement("3", "shirt", "xl", "Uniqlo", 10, 12, 0),
		movement("4", "shirt", "m", "Uniqlo", 15, 0, 2),
		movement("5", "gone", "m", "Wrangler", 20, 7, 0),
	}
}

func ids(entries []stock.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	names := testNames()
	entries := sampleLedger()

	tests := []struct {
		name  string
		query stock.Query
		want  []string
	}{
		{"empty query", stock.Query{}, []string{"1", "2", "3", "4", "5"}},
		{"search item name", stock.Query{Search: "JEA"}, []string{"1", "2"}},
		{"search size name", stock.Query{Search: "xl"}, []string{"3"}},
		{"search brand", stock.Query{Search: "uni"}, []string{"3", "4"}},
		{"search orphan label", stock.Query{Search: "deleted"}, []string{"5"}},
		{"item id", stock.Query{ItemID: "shirt"}, []string{"3", "4"}},
		{"size id", stock.Query{SizeID: "m"}, []string{"1", "2", "4", "5"}},
		{"brand exact", stock.Query{Brand: " Levi's "}, []string{"1", "2"}},
		{"brand is not a substring match", stock.Query{Brand: "Levi"}, []string{}},
		{"from inclusive", stock.Query{From: stock.NewDate(2024, time.March, 10)}, []string{"3", "4", "5"}},
		{"to inclusive", stock.Query{To: stock.NewDate(2024, time.March, 5)}, []string{"1", "2"}},
		{"received view", stock.Query{View: stock.ViewReceived}, []string{"1", "3", "5"}},
		{"issued view", stock.Query{View: stock.ViewIssued}, []string{"2", "4"}},
		{
			"conjunction",
			stock.Query{Search: "uniqlo", SizeID: "m", View: stock.ViewIssued},
			[]string{"4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stock.Filter(entries, tt.query, names)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	ok := stock.Query{From: stock.NewDate(2024, 1, 1), To: stock.NewDate(2024, 1, 1)}
	assert.NoError(t, ok.Validate())

	inverted := stock.Query{From: stock.NewDate(2024, 2, 1), To: stock.NewDate(2024, 1, 1)}
	assert.ErrorIs(t, inverted.Validate(), stock.ErrValidation)

	badView := stock.Query{View: "returns"}
	assert.ErrorIs(t, badView.Validate(), stock.ErrValidation)
}

func TestParseView(t *testing.T) {
	for in, want := range map[string]stock.View{
		"":         stock.ViewAll,
		"all":      stock.ViewAll,
		"Received": stock.ViewReceived,
		" issued ": stock.ViewIssued,
	} {
		got, err := stock.ParseView(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := stock.ParseView("transfers")
	assert.True(t, stock.IsClientError(err))
}

func TestQuery_Summary(t *testing.T) {
	names := testNames()

	assert.Equal(t, "All records", stock.Query{}.Summary(names))
	assert.True(t, stock.Query{View: stock.ViewAll}.IsZero())

	q := stock.Query{
		Search: "jea",
		ItemID: "jeans",
		SizeID: "m",
		Brand:  "Levi's",
		From:   stock.NewDate(2024, time.January, 1),
		To:     stock.NewDate(2024, time.March, 31),
		View:   stock.ViewReceived,
	}
	assert.Equal(t,
		`Search: "jea"; Item: Jeans; Size: M; Brand: Levi's; From: 2024-01-01; To: 2024-03-31; View: Received`,
		q.Summary(names))
	assert.False(t, q.IsZero())
}

func TestDate_Compare(t *testing.T) {
	mar1 := stock.NewDate(2024, time.March, 1)
	mar2 := stock.NewDate(2024, time.March, 2)

	assert.Equal(t, -1, mar1.Compare(mar2))
	assert.Equal(t, 1, mar2.Compare(mar1))
	assert.Equal(t, 0, mar1.Compare(stock.NewDate(2024, time.March, 1)))
}

func TestPrecedes(t *testing.T) {
	at := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	base := stock.Entry{ID: "b", TransactionDate: stock.NewDate(2024, time.March, 1), CreatedAt: at}

	later := base
	later.TransactionDate = stock.NewDate(2024, time.March, 2)
	later.CreatedAt = at.Add(-time.Hour)
	assert.True(t, stock.Precedes(later, base), "later transaction date first")
	assert.False(t, stock.Precedes(base, later))

	newer := base
	newer.CreatedAt = at.Add(time.Second)
	assert.True(t, stock.Precedes(newer, base), "same date: newer created_at first")

	tie := base
	tie.ID = "c"
	assert.True(t, stock.Precedes(tie, base), "full tie: larger id first")
	assert.False(t, stock.Precedes(base, base))
}

func TestFacetsOf(t *testing.T) {
	f := stock.FacetsOf(sampleLedger(), testNames())

	assert.Equal(t, []stock.Facet{
		{ID: "gone", Name: stock.OrphanLabel},
		{ID: "jeans", Name: "Jeans"},
		{ID: "shirt", Name: "T-Shirt"},
	}, f.Items)
	assert.Equal(t, []stock.Facet{{ID: "m", Name: "M"}, {ID: "xl", Name: "XL"}}, f.Sizes)
	assert.Equal(t, []string{"Levi's", "Uniqlo", "Wrangler"}, f.Brands)
}

func TestReporter_Facets_OnlyValuesInUse(t *testing.T) {
	f := newFixture(t)
	f.receive(t, march(1), f.key("Levi's"), 5)

	facets, err := f.reporter.Facets(context.Background())
	require.NoError(t, err)

	require.Len(t, facets.Items, 1)
	assert.Equal(t, "Jeans", facets.Items[0].Name)
	require.Len(t, facets.Sizes, 1)
	assert.Equal(t, []string{"Levi's"}, facets.Brands)
}
