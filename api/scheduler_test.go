package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/stock-ledger/api"
	"github.com/warp/stock-ledger/logging"
	"github.com/warp/stock-ledger/stock"
	"github.com/warp/stock-ledger/stock/store"
)

func TestIntegrityScheduler_RunNow(t *testing.T) {
	// GIVEN: A ledger with one movement
	st := store.NewMemory()
	a := newTestAPI(t, st)
	require.Equal(t, http.StatusCreated, a.receive("2024-03-01", 7, "A").Code)

	sched := api.NewIntegrityScheduler(stock.NewReporter(st), time.Hour)
	_, at, _ := sched.Last()
	assert.True(t, at.IsZero())

	// WHEN: Running a check by hand
	report, err := sched.RunNow(context.Background())

	// THEN: The report is kept for later reads
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Checked)

	last, at, err := sched.Last()
	require.NoError(t, err)
	assert.False(t, at.IsZero())
	assert.Equal(t, report, last)
}

func TestIntegrityScheduler_LastEndpoint(t *testing.T) {
	st := store.NewMemory()
	a := newTestAPI(t, st)
	a.handler.Scheduler = api.NewIntegrityScheduler(a.handler.Reporter, time.Hour)
	router := api.NewRouter(a.handler, api.RouterOptions{Logger: logging.Nop()})

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/integrity/last", nil))
		return rec
	}

	assert.Equal(t, http.StatusNotFound, get().Code)

	_, err := a.handler.Scheduler.RunNow(context.Background())
	require.NoError(t, err)

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["checked_at"])
}

func TestIntegrityScheduler_StartRunsImmediately(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.WithLogger(context.Background(), logging.Wrap(zap.New(core)))

	sched := api.NewIntegrityScheduler(stock.NewReporter(store.NewMemory()), time.Hour)
	sched.Start(ctx)
	t.Cleanup(sched.Stop)

	require.Eventually(t, func() bool {
		_, at, _ := sched.Last()
		return !at.IsZero()
	}, time.Second, 5*time.Millisecond)

	sched.Stop()
	assert.Equal(t, 1, logs.FilterMessage("integrity scheduler started").Len())
}

func TestIntegrityScheduler_Disabled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.WithLogger(context.Background(), logging.Wrap(zap.New(core)))

	sched := api.NewIntegrityScheduler(stock.NewReporter(store.NewMemory()), 0)
	sched.Start(ctx)
	sched.Stop()

	_, at, _ := sched.Last()
	assert.True(t, at.IsZero())
	assert.Equal(t, 1, logs.FilterMessage("integrity scheduler disabled").Len())
}
