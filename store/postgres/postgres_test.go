package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/stock"
	"github.com/warp/stock-ledger/stock/storetest"
	"github.com/warp/stock-ledger/store/postgres"
	"github.com/warp/stock-ledger/store/sqlstore"
)

// newStore connects to TEST_POSTGRES_DSN and empties every table.
func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	st, err := postgres.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, table := range []string{"stock_entries", "stock_balances", "items", "sizes", "customers"} {
		_, err := st.DB().ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return st
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) stock.Store { return newStore(t) })
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, postgres.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, postgres.IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.True(t, postgres.IsConflict(&pgconn.PgError{Code: "40001"}))
	assert.True(t, postgres.IsConflict(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, postgres.IsConflict(errors.New("deadlock detected")))
}
