/*
scenarios.go - Demo data loaders

PURPOSE:

	Populates an empty ledger with realistic movements for demos and
	manual testing of the dashboard and reports. Every movement goes
	through stock.Ledger, so balances and validation behave exactly as
	they do for user input.

AVAILABLE SCENARIOS:

	opening-stock:  Default catalog plus Balance Forward for a few keys
	busy-week:      Opening stock followed by a week of receipts and
	                issues; leaves some keys low and one at zero

HOW SCENARIOS WORK:
 1. Make sure the catalog names the scenario uses exist (reusing entries
    with the same name)
 2. Append movements dated relative to today

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "busy-week"}

NOTE:

	The ledger is append-only, so loading is additive. Load scenarios
	into an empty database only.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/stock-ledger/stock"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s *scenarioBuilder) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "opening-stock",
			Name:        "Opening Stock",
			Description: "Default items and sizes with Balance Forward entries",
		},
		load: loadOpeningStock,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "busy-week",
			Name:        "Busy Week",
			Description: "Opening stock, then a week of receipts and issues to two customers",
		},
		load: loadBusyWeek,
	},
}

// ListScenarios returns the available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": out})
}

// LoadScenario appends a scenario's movements.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, "Invalid request", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == strings.TrimSpace(req.ScenarioID) {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		h.writeDomainError(w, r, "Unknown scenario",
			stock.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", req.ScenarioID)))
		return
	}

	b := &scenarioBuilder{h: h, today: stock.Today(), ids: map[stock.CatalogKind]map[string]string{}}
	if err := found.load(r.Context(), b); err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "loaded",
		"scenario": found.ID,
		"entries":  b.appended,
	})
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

type scenarioBuilder struct {
	h        *Handler
	today    stock.Date
	ids      map[stock.CatalogKind]map[string]string
	appended int
}

// id returns the catalog entry named name, creating it when missing.
func (b *scenarioBuilder) id(ctx context.Context, kind stock.CatalogKind, name string) (string, error) {
	byName, ok := b.ids[kind]
	if !ok {
		entries, err := b.h.Catalog.List(ctx, kind)
		if err != nil {
			return "", err
		}
		byName = make(map[string]string, len(entries))
		for _, e := range entries {
			if _, dup := byName[strings.ToLower(e.Name)]; !dup {
				byName[strings.ToLower(e.Name)] = e.ID
			}
		}
		b.ids[kind] = byName
	}

	if id, ok := byName[strings.ToLower(name)]; ok {
		return id, nil
	}
	e, _, err := b.h.Catalog.Add(ctx, kind, name)
	if err != nil {
		return "", err
	}
	byName[strings.ToLower(name)] = e.ID
	return e.ID, nil
}

func (b *scenarioBuilder) key(ctx context.Context, item, size, brand string) (stock.StockKey, error) {
	itemID, err := b.id(ctx, stock.CatalogItems, item)
	if err != nil {
		return stock.StockKey{}, err
	}
	sizeID, err := b.id(ctx, stock.CatalogSizes, size)
	if err != nil {
		return stock.StockKey{}, err
	}
	return stock.NewStockKey(stock.ItemID(itemID), stock.SizeID(sizeID), brand), nil
}

// movement is one scripted line: qty > 0 receives, qty < 0 issues.
type movement struct {
	daysAgo            int
	item, size, brand  string
	qty                int64
	opening            bool
	customer, document string
}

func (b *scenarioBuilder) apply(ctx context.Context, moves []movement) error {
	for _, m := range moves {
		key, err := b.key(ctx, m.item, m.size, m.brand)
		if err != nil {
			return err
		}
		date := b.today.AddDays(-m.daysAgo)

		var draft stock.Draft
		switch {
		case m.opening:
			draft = stock.BalanceForward(date, key, m.qty)
		case m.qty > 0:
			draft = stock.Received(date, key, m.qty, m.document)
		default:
			customer, err := b.id(ctx, stock.CatalogCustomers, m.customer)
			if err != nil {
				return err
			}
			draft = stock.Issued(date, key, -m.qty, stock.CustomerID(customer), m.document)
		}

		if _, err := b.h.Ledger.Append(ctx, draft); err != nil {
			return fmt.Errorf("%s %s %s: %w", m.item, m.size, m.brand, err)
		}
		b.appended++
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var openingStock = []movement{
	{daysAgo: 10, item: "Jeans", size: "M", brand: "Levi's", qty: 40, opening: true},
	{daysAgo: 10, item: "Jeans", size: "L", brand: "Levi's", qty: 25, opening: true},
	{daysAgo: 10, item: "T-Shirt", size: "S", brand: "Uniqlo", qty: 60, opening: true},
	{daysAgo: 10, item: "T-Shirt", size: "M", brand: "Uniqlo", qty: 8, opening: true},
	{daysAgo: 10, item: "Hoodie", size: "XL", brand: "Nike", qty: 12, opening: true},
}

func loadOpeningStock(ctx context.Context, b *scenarioBuilder) error {
	if _, err := b.h.Catalog.SeedDefaults(ctx); err != nil {
		return err
	}
	return b.apply(ctx, openingStock)
}

func loadBusyWeek(ctx context.Context, b *scenarioBuilder) error {
	if err := loadOpeningStock(ctx, b); err != nil {
		return err
	}
	return b.apply(ctx, []movement{
		{daysAgo: 7, item: "Jeans", size: "M", brand: "Levi's", qty: 30, document: "GRN-1001"},
		{daysAgo: 6, item: "Jeans", size: "M", brand: "Levi's", qty: -18, customer: "Northwind Retail", document: "DO-2001"},
		{daysAgo: 6, item: "T-Shirt", size: "S", brand: "Uniqlo", qty: -35, customer: "Contoso Outlet", document: "DO-2002"},
		{daysAgo: 5, item: "Sneakers", size: "L", brand: "Adidas", qty: 20, document: "GRN-1002"},
		{daysAgo: 4, item: "Hoodie", size: "XL", brand: "Nike", qty: -7, customer: "Northwind Retail", document: "DO-2003"},
		{daysAgo: 3, item: "T-Shirt", size: "M", brand: "Uniqlo", qty: -8, customer: "Contoso Outlet", document: "DO-2004"},
		{daysAgo: 2, item: "Sneakers", size: "L", brand: "Adidas", qty: -14, customer: "Contoso Outlet", document: "DO-2005"},
		{daysAgo: 1, item: "Jeans", size: "L", brand: "Levi's", qty: 15, document: "GRN-1003"},
		{daysAgo: 0, item: "Jeans", size: "L", brand: "Levi's", qty: -22, customer: "Northwind Retail", document: "DO-2006"},
	})
}
