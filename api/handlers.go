/*
handlers.go - HTTP API handlers for the stock ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response
  and JSON serialization, and delegates to package stock.

ENDPOINTS:
  Catalog:
    GET    /api/{items|sizes|customers}        List, ordered by name
    POST   /api/{items|sizes|customers}        Create {name}
    DELETE /api/{items|sizes|customers}/{id}   Remove (no cascade)
    POST   /api/catalog/defaults               Seed default items and sizes

  Movements:
    POST   /api/movements/received             Received or Balance Forward
    POST   /api/movements/issued               Issued
    GET    /api/movements                      Filtered listing
    GET    /api/movements/facets               Filter dropdown values

  Stock:
    GET    /api/stock                          Current stock per key
    GET    /api/stock/low                      Low stock
    GET    /api/dashboard                      Top movers, low stock, recent
    GET    /api/integrity                      Running balance check

  Reports:
    GET    /api/reports/export?format=csv|xlsx Download

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (every violated field is listed)
  - 404: Catalog entry not found
  - 503: Append gave up after retries; safe to resubmit
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - validation.go: Request shape validation
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/stock-ledger/export"
	"github.com/warp/stock-ledger/logging"
	"github.com/warp/stock-ledger/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog  *stock.Catalog
	Ledger   *stock.Ledger
	Reporter *stock.Reporter

	// Ping reports store health for /healthz. Optional.
	Ping func(ctx context.Context) error

	// Scheduler serves /api/integrity/last. Optional.
	Scheduler *IntegrityScheduler

	validate *validator.Validate
}

// NewHandler wires the engine services around store. The ledger is
// passed in so that the caller controls its locker and retry policy.
func NewHandler(store stock.Store, ledger *stock.Ledger) *Handler {
	return &Handler{
		Catalog:  stock.NewCatalog(store),
		Ledger:   ledger,
		Reporter: stock.NewReporter(store).WithClock(ledger.Now),
		validate: newValidator(),
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCatalog returns every entry of kind.
// GET /api/items
func (h *Handler) ListCatalog(kind stock.CatalogKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.Catalog.List(r.Context(), kind)
		if err != nil {
			h.writeDomainError(w, r, fmt.Sprintf("Failed to list %s", kind), err)
			return
		}

		dtos := make([]CatalogEntryDTO, len(entries))
		for i, e := range entries {
			dtos[i] = toCatalogEntryDTO(e)
		}
		writeJSON(w, http.StatusOK, map[string]any{string(kind): dtos})
	}
}

// CreateCatalogEntry adds an entry. A duplicate name is reported in the
// warning field; the entry is still created.
// POST /api/items
func (h *Handler) CreateCatalogEntry(kind stock.CatalogKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCatalogEntryRequest
		if err := h.decodeJSON(w, r, &req); err != nil {
			h.writeDomainError(w, r, "Invalid request", err)
			return
		}

		entry, warning, err := h.Catalog.Add(r.Context(), kind, req.Name)
		if err != nil {
			h.writeDomainError(w, r, fmt.Sprintf("Failed to create %s", kind.Singular()), err)
			return
		}

		resp := CreateCatalogEntryResponse{Entry: toCatalogEntryDTO(entry)}
		if warning != nil {
			resp.Warning = warning.String()
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// GetCatalogEntry returns one entry.
// GET /api/items/{id}
func (h *Handler) GetCatalogEntry(kind stock.CatalogKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.Catalog.Get(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			h.writeDomainError(w, r, fmt.Sprintf("Failed to get %s", kind.Singular()), err)
			return
		}
		writeJSON(w, http.StatusOK, toCatalogEntryDTO(entry))
	}
}

// DeleteCatalogEntry removes an entry. Ledger entries referencing it are
// kept and render with the "(deleted)" label.
// DELETE /api/items/{id}
func (h *Handler) DeleteCatalogEntry(kind stock.CatalogKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.Catalog.Remove(r.Context(), kind, id); err != nil {
			h.writeDomainError(w, r, fmt.Sprintf("Failed to delete %s", kind.Singular()), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	}
}

// SeedDefaults adds the default items and sizes to empty catalogs.
// POST /api/catalog/defaults
func (h *Handler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	added, err := h.Catalog.SeedDefaults(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to seed defaults", err)
		return
	}

	status := http.StatusOK
	if added > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"status": "seeded", "count": added})
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ReceiveStock records a Received or Balance Forward movement.
// POST /api/movements/received
func (h *Handler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req ReceiveStockRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, "Invalid request", err)
		return
	}

	date, qty, err := parseMovement(req.Date, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, "Invalid request", err)
		return
	}

	key := stock.NewStockKey(stock.ItemID(req.ItemID), stock.SizeID(req.SizeID), req.Brand)
	var draft stock.Draft
	switch req.Kind {
	case receiveKindBalanceForward:
		draft = stock.BalanceForward(date, key, qty)
		draft.GRNNumber = req.GRNNumber
	default:
		draft = stock.Received(date, key, qty, req.GRNNumber)
	}

	h.appendMovement(w, r, draft)
}

// IssueStock records an Issued movement.
// POST /api/movements/issued
func (h *Handler) IssueStock(w http.ResponseWriter, r *http.Request) {
	var req IssueStockRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeDomainError(w, r, "Invalid request", err)
		return
	}

	date, qty, err := parseMovement(req.Date, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, "Invalid request", err)
		return
	}

	key := stock.NewStockKey(stock.ItemID(req.ItemID), stock.SizeID(req.SizeID), req.Brand)
	draft := stock.Issued(date, key, qty, stock.CustomerID(req.CustomerID), req.DeliveryOrderNumber)
	h.appendMovement(w, r, draft)
}

func parseMovement(rawDate string, quantity decimal.Decimal) (stock.Date, int64, error) {
	date, err := stock.ParseDate(rawDate)
	if err != nil {
		return stock.Date{}, 0, stock.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	qty, err := wholeQuantity(quantity)
	if err != nil {
		return stock.Date{}, 0, err
	}
	return date, qty, nil
}

func (h *Handler) appendMovement(w http.ResponseWriter, r *http.Request, draft stock.Draft) {
	entry, err := h.Ledger.Append(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, r, "Failed to record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": toEntryDTO(entry)})
}

// ListMovements returns the filtered ledger in canonical order.
// GET /api/movements?search=&item_id=&size_id=&brand=&from=&to=&view=
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid filter", err)
		return
	}

	report, err := h.Reporter.Report(r.Context(), stock.ReportRequest{Query: q})
	if err != nil {
		h.writeDomainError(w, r, "Failed to list movements", err)
		return
	}

	writeJSON(w, http.StatusOK, MovementsResponse{
		Rows:          report.Rows,
		Count:         len(report.Rows),
		Totals:        report.Totals,
		FilterSummary: report.FilterSummary,
	})
}

// GetFacets returns the values offered by the filter dropdowns.
// GET /api/movements/facets
func (h *Handler) GetFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.Reporter.Facets(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to load facets", err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (h *Handler) parseQuery(r *http.Request) (stock.Query, error) {
	v := r.URL.Query()
	mq := MovementsQuery{
		Search: v.Get("search"),
		ItemID: v.Get("item_id"),
		SizeID: v.Get("size_id"),
		Brand:  v.Get("brand"),
		From:   v.Get("from"),
		To:     v.Get("to"),
		View:   v.Get("view"),
	}
	if err := h.validateStruct(mq); err != nil {
		return stock.Query{}, err
	}

	q := stock.Query{
		Search: mq.Search,
		ItemID: stock.ItemID(mq.ItemID),
		SizeID: stock.SizeID(mq.SizeID),
		Brand:  mq.Brand,
	}
	var err error
	if mq.From != "" {
		if q.From, err = stock.ParseDate(mq.From); err != nil {
			return stock.Query{}, stock.NewValidationError("from", err.Error())
		}
	}
	if mq.To != "" {
		if q.To, err = stock.ParseDate(mq.To); err != nil {
			return stock.Query{}, stock.NewValidationError("to", err.Error())
		}
	}
	if q.View, err = stock.ParseView(mq.View); err != nil {
		return stock.Query{}, err
	}
	return q, q.Validate()
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// GetStock returns the current stock of every key.
// GET /api/stock
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	h.writeLevels(w, r, h.Reporter.CurrentStock)
}

// GetLowStock returns keys with 0 < stock < stock.LowStockThreshold.
// GET /api/stock/low
func (h *Handler) GetLowStock(w http.ResponseWriter, r *http.Request) {
	h.writeLevels(w, r, h.Reporter.LowStock)
}

func (h *Handler) writeLevels(w http.ResponseWriter, r *http.Request, load func(context.Context) ([]stock.StockLevel, error)) {
	ctx := r.Context()
	levels, err := load(ctx)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load stock", err)
		return
	}
	names, err := h.Catalog.Names(ctx)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": toStockLevelDTOs(levels, names)})
}

// GetDashboard returns the landing page summary.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dash, err := h.Reporter.Dashboard(ctx)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load dashboard", err)
		return
	}
	names, err := h.Catalog.Names(ctx)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash, names))
}

// CheckIntegrity compares running balances with the recomputed history.
// GET /api/integrity
func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reporter.Verify(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to check integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, IntegrityDTO{OK: report.OK(), IntegrityReport: report})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ExportReport renders the filtered ledger as a downloadable document.
// GET /api/reports/export?format=csv|xlsx&title=...&<filters>
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	formatter, err := export.ByName(format)
	if err != nil {
		h.writeDomainError(w, r, "Invalid format", stock.NewValidationError("format", err.Error()))
		return
	}

	q, err := h.parseQuery(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid filter", err)
		return
	}

	report, err := h.Reporter.Report(r.Context(), stock.ReportRequest{
		Title: r.URL.Query().Get("title"),
		Query: q,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to build report", err)
		return
	}

	var buf bytes.Buffer
	if err := formatter.Write(&buf, report); err != nil {
		h.writeDomainError(w, r, "Failed to render report", err)
		return
	}

	w.Header().Set("Content-Type", formatter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(report, formatter)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warnw("export write interrupted", "error", err)
	}
}

// Health reports liveness and, when configured, store reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the stock error taxonomy to a status code.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *stock.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Details: verr.Error(),
			Fields:  verr.Fields,
		})
	case stock.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, stock.ErrTransient):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		logging.FromContext(r.Context()).Errorw(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
