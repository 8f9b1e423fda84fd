package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/stock-ledger/logging"
	"github.com/warp/stock-ledger/stock"
	"github.com/warp/stock-ledger/stock/store"
)

func TestCatalog_Add(t *testing.T) {
	ctx := context.Background()
	c := stock.NewCatalog(store.NewMemory())

	e, warning, err := c.Add(ctx, stock.CatalogItems, "  Jeans ")
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.Equal(t, "Jeans", e.Name)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := c.Get(ctx, stock.CatalogItems, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
}

func TestCatalog_Add_DuplicateNameWarns(t *testing.T) {
	// GIVEN: A customer named Acme
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logging.WithLogger(context.Background(), logging.Wrap(zap.New(core)))
	c := stock.NewCatalog(store.NewMemory())
	first, _, err := c.Add(ctx, stock.CatalogCustomers, "Acme")
	require.NoError(t, err)

	// WHEN: Adding "acme" again
	second, warning, err := c.Add(ctx, stock.CatalogCustomers, "acme")

	// THEN: The entry is created with a warning
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, first.ID, warning.ExistingID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, errors.Is(warning, stock.ErrDuplicateName))
	assert.Contains(t, warning.String(), `customer named "acme"`)

	list, err := c.List(ctx, stock.CatalogCustomers)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// AND: The duplicate is logged
	require.Equal(t, 1, logs.FilterMessage("duplicate catalog name").Len())
}

func TestCatalog_Add_Rejects(t *testing.T) {
	ctx := context.Background()
	c := stock.NewCatalog(store.NewMemory())

	_, _, err := c.Add(ctx, stock.CatalogSizes, "   ")
	assert.ErrorIs(t, err, stock.ErrValidation)

	_, _, err = c.Add(ctx, "colours", "Red")
	assert.ErrorIs(t, err, stock.ErrValidation)
}

func TestCatalog_Remove(t *testing.T) {
	ctx := context.Background()
	c := stock.NewCatalog(store.NewMemory())
	e, _, err := c.Add(ctx, stock.CatalogSizes, "XL")
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, stock.CatalogSizes, e.ID))

	err = c.Remove(ctx, stock.CatalogSizes, e.ID)
	assert.True(t, stock.IsNotFound(err))
	var nf *stock.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, `size "`+e.ID+`" not found`, nf.Error())

	_, err = c.Get(ctx, stock.CatalogSizes, e.ID)
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

func TestCatalog_List_ByName(t *testing.T) {
	ctx := context.Background()
	c := stock.NewCatalog(store.NewMemory())
	for _, name := range []string{"Sneakers", "Hoodie", "Jeans"} {
		_, _, err := c.Add(ctx, stock.CatalogItems, name)
		require.NoError(t, err)
	}

	list, err := c.List(ctx, stock.CatalogItems)
	require.NoError(t, err)

	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"Hoodie", "Jeans", "Sneakers"}, names)
}

func TestCatalog_SeedDefaults(t *testing.T) {
	ctx := context.Background()
	c := stock.NewCatalog(store.NewMemory())

	// GIVEN: An existing size
	_, _, err := c.Add(ctx, stock.CatalogSizes, "One Size")
	require.NoError(t, err)

	// WHEN: Seeding
	added, err := c.SeedDefaults(ctx)

	// THEN: Only the empty catalog is filled
	require.NoError(t, err)
	assert.Equal(t, len(stock.DefaultItems), added)

	sizes, err := c.List(ctx, stock.CatalogSizes)
	require.NoError(t, err)
	assert.Len(t, sizes, 1)

	// AND: Seeding again is a no-op
	added, err = c.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestNames_Orphans(t *testing.T) {
	names := stock.NewNames([]stock.CatalogEntry{{ID: "i1", Name: "Jeans"}}, nil, nil)

	assert.Equal(t, "Jeans", names.Item("i1"))
	assert.Equal(t, stock.OrphanLabel, names.Item("i2"))
	assert.Equal(t, stock.OrphanLabel, names.Size("s1"))
	assert.Equal(t, "", names.Customer(""))
	assert.Equal(t, stock.OrphanLabel, names.Customer("c1"))

	var none *stock.Names
	assert.Equal(t, stock.OrphanLabel, none.Item("i1"))
}
