/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request shape (required fields, date format, enums) is declared with
  validator struct tags and checked in validation.go. Domain rules
  (mutually exclusive quantities, kind-specific fields, catalog
  references) stay in package stock.

QUANTITIES:
  Quantities decode into decimal.Decimal so that 2.5 is rejected instead
  of silently truncated to 2.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/stock-ledger/stock"
)

// =============================================================================
// CATALOG
// =============================================================================

type CatalogEntryDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toCatalogEntryDTO(e stock.CatalogEntry) CatalogEntryDTO {
	return CatalogEntryDTO{ID: e.ID, Name: e.Name, CreatedAt: e.CreatedAt}
}

type CreateCatalogEntryRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCatalogEntryResponse carries a warning when the name was taken.
// The entry is created either way.
type CreateCatalogEntryResponse struct {
	Entry   CatalogEntryDTO `json:"entry"`
	Warning string          `json:"warning,omitempty"`
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// Movement kinds accepted by POST /api/movements/received.
const (
	receiveKindReceived       = "received"
	receiveKindBalanceForward = "balance_forward"
)

type ReceiveStockRequest struct {
	Date      string          `json:"date" validate:"required,date"`
	ItemID    string          `json:"item_id" validate:"required"`
	SizeID    string          `json:"size_id" validate:"required"`
	Brand     string          `json:"brand" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Kind      string          `json:"kind" validate:"omitempty,oneof=received balance_forward"`
	GRNNumber string          `json:"grn_number"`
}

type IssueStockRequest struct {
	Date                string          `json:"date" validate:"required,date"`
	ItemID              string          `json:"item_id" validate:"required"`
	SizeID              string          `json:"size_id" validate:"required"`
	Brand               string          `json:"brand" validate:"required"`
	Quantity            decimal.Decimal `json:"quantity"`
	CustomerID          string          `json:"customer_id" validate:"required"`
	DeliveryOrderNumber string          `json:"delivery_order_number" validate:"required"`
}

// MovementsQuery mirrors the query string of the listing and export
// endpoints.
type MovementsQuery struct {
	Search string `json:"search" validate:"max=200"`
	ItemID string `json:"item_id"`
	SizeID string `json:"size_id"`
	Brand  string `json:"brand"`
	From   string `json:"from" validate:"omitempty,date"`
	To     string `json:"to" validate:"omitempty,date"`
	View   string `json:"view" validate:"omitempty,oneof=all received issued"`
}

// EntryDTO is a stored ledger entry.
type EntryDTO struct {
	ID                  string     `json:"id"`
	TransactionDate     stock.Date `json:"transaction_date"`
	ItemID              string     `json:"item_id"`
	SizeID              string     `json:"size_id"`
	Brand               string     `json:"brand"`
	Kind                string     `json:"movement_kind"`
	Received            int64      `json:"received_quantity"`
	Issued              int64      `json:"issued_quantity"`
	Balance             int64      `json:"balance"`
	GRNNumber           string     `json:"grn_number,omitempty"`
	CustomerID          string     `json:"customer_id,omitempty"`
	DeliveryOrderNumber string     `json:"delivery_order_number,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toEntryDTO(e stock.Entry) EntryDTO {
	return EntryDTO{
		ID:                  string(e.ID),
		TransactionDate:     e.TransactionDate,
		ItemID:              string(e.Key.ItemID),
		SizeID:              string(e.Key.SizeID),
		Brand:               e.Key.Brand,
		Kind:                string(e.Kind),
		Received:            e.Received,
		Issued:              e.Issued,
		Balance:             e.Balance,
		GRNNumber:           e.GRNNumber,
		CustomerID:          string(e.CustomerID),
		DeliveryOrderNumber: e.DeliveryOrderNumber,
		CreatedAt:           e.CreatedAt,
	}
}

type MovementsResponse struct {
	Rows          []stock.ReportRow `json:"rows"`
	Count         int               `json:"count"`
	Totals        stock.Totals      `json:"totals"`
	FilterSummary string            `json:"filter_summary"`
}

// =============================================================================
// STOCK LEVELS
// =============================================================================

type StockLevelDTO struct {
	ItemID        string `json:"item_id"`
	ItemName      string `json:"item_name"`
	SizeID        string `json:"size_id"`
	SizeName      string `json:"size_name"`
	Brand         string `json:"brand"`
	TotalReceived int64  `json:"total_received"`
	TotalIssued   int64  `json:"total_issued"`
	CurrentStock  int64  `json:"current_stock"`
	Low           bool   `json:"low"`
}

func toStockLevelDTOs(levels []stock.StockLevel, names *stock.Names) []StockLevelDTO {
	dtos := make([]StockLevelDTO, len(levels))
	for i, l := range levels {
		dtos[i] = StockLevelDTO{
			ItemID:        string(l.Key.ItemID),
			ItemName:      names.Item(l.Key.ItemID),
			SizeID:        string(l.Key.SizeID),
			SizeName:      names.Size(l.Key.SizeID),
			Brand:         l.Key.Brand,
			TotalReceived: l.TotalReceived,
			TotalIssued:   l.TotalIssued,
			CurrentStock:  l.CurrentStock,
			Low:           l.IsLow(),
		}
	}
	return dtos
}

type DashboardDTO struct {
	TotalKeys         int               `json:"total_keys"`
	TotalStock        int64             `json:"total_stock"`
	LowStockThreshold int               `json:"low_stock_threshold"`
	TopReceived       []StockLevelDTO   `json:"top_received"`
	TopIssued         []StockLevelDTO   `json:"top_issued"`
	LowStock          []StockLevelDTO   `json:"low_stock"`
	Recent            []stock.ReportRow `json:"recent"`
}

func toDashboardDTO(d stock.Dashboard, names *stock.Names) DashboardDTO {
	recent := make([]stock.ReportRow, len(d.Recent))
	for i, e := range d.Recent {
		recent[i] = stock.NewReportRow(e, names)
	}
	return DashboardDTO{
		TotalKeys:         d.TotalKeys,
		TotalStock:        d.TotalStock,
		LowStockThreshold: stock.LowStockThreshold,
		TopReceived:       toStockLevelDTOs(d.TopReceived, names),
		TopIssued:         toStockLevelDTOs(d.TopIssued, names),
		LowStock:          toStockLevelDTOs(d.LowStock, names),
		Recent:            recent,
	}
}

type IntegrityDTO struct {
	OK bool `json:"ok"`
	stock.IntegrityReport
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string             `json:"error"`
	Details string             `json:"details,omitempty"`
	Fields  []stock.FieldError `json:"fields,omitempty"`
}
