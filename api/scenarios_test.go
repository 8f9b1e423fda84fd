/*
scenarios_test.go - Tests for the demo data loaders

Each scenario must load through the real ledger and leave it consistent.
*/
package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/api"
)

func TestScenarios_List(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[map[string][]api.ScenarioDTO](t, rec)["scenarios"]
	require.Len(t, list, 2)
	assert.Equal(t, "opening-stock", list[0].ID)
	assert.Equal(t, "busy-week", list[1].ID)
}

func TestScenario_OpeningStock(t *testing.T) {
	// GIVEN: A catalog that already has Jeans
	a := newTestAPI(t, nil)

	// WHEN: Loading opening stock
	rec := a.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "opening-stock"})

	// THEN: Five Balance Forward entries are appended
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"entries":5`)

	movements := decode[api.MovementsResponse](t, a.do(http.MethodGet, "/api/movements", nil))
	assert.Equal(t, 5, movements.Count)
	for _, row := range movements.Rows {
		assert.Equal(t, "Balance Forward", string(row.Kind))
	}

	// AND: Existing names are reused instead of duplicated
	items := decode[map[string][]api.CatalogEntryDTO](t, a.do(http.MethodGet, "/api/items", nil))["items"]
	var jeans int
	for _, it := range items {
		if it.Name == "Jeans" {
			jeans++
		}
	}
	assert.Equal(t, 1, jeans)
}

func TestScenario_BusyWeek(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "busy-week"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"entries":14`)

	dash := decode[api.DashboardDTO](t, a.do(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, 6, dash.TotalKeys)
	assert.Equal(t, int64(52+18+25+0+5+6), dash.TotalStock)

	low := make(map[string]int64)
	for _, l := range dash.LowStock {
		low[l.ItemName] = l.CurrentStock
	}
	assert.Equal(t, map[string]int64{"Hoodie": 5, "Sneakers": 6}, low)

	integrity := decode[map[string]any](t, a.do(http.MethodGet, "/api/integrity", nil))
	assert.Equal(t, true, integrity["ok"])
}

func TestScenario_Unknown(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "year-end"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, fieldNames(t, rec), "scenario_id")

	rec = a.do(http.MethodPost, "/api/scenarios/load", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
