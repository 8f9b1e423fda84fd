/*
report.go - Filtered listing handed to the export formatters

A Report is everything a document renderer needs: a title, a
human-readable summary of the filter, the generation time, the matching
rows with catalog names already resolved, and the totals of those rows.
Renderers never look anything up themselves.
*/
package stock

import (
	"strings"
	"time"
)

// ReportRow is an Entry with display names. Orphaned references carry
// OrphanLabel.
type ReportRow struct {
	ID                  EntryID      `json:"id"`
	TransactionDate     Date         `json:"transaction_date"`
	ItemID              ItemID       `json:"item_id"`
	ItemName            string       `json:"item_name"`
	SizeID              SizeID       `json:"size_id"`
	SizeName            string       `json:"size_name"`
	Brand               string       `json:"brand"`
	Kind                MovementKind `json:"movement_kind"`
	Received            int64        `json:"received_quantity"`
	Issued              int64        `json:"issued_quantity"`
	Balance             int64        `json:"balance"`
	GRNNumber           string       `json:"grn_number,omitempty"`
	CustomerID          CustomerID   `json:"customer_id,omitempty"`
	CustomerName        string       `json:"customer_name,omitempty"`
	DeliveryOrderNumber string       `json:"delivery_order_number,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// NewReportRow resolves e's references through names.
func NewReportRow(e Entry, names *Names) ReportRow {
	return ReportRow{
		ID:                  e.ID,
		TransactionDate:     e.TransactionDate,
		ItemID:              e.Key.ItemID,
		ItemName:            names.Item(e.Key.ItemID),
		SizeID:              e.Key.SizeID,
		SizeName:            names.Size(e.Key.SizeID),
		Brand:               e.Key.Brand,
		Kind:                e.Kind,
		Received:            e.Received,
		Issued:              e.Issued,
		Balance:             e.Balance,
		GRNNumber:           e.GRNNumber,
		CustomerID:          e.CustomerID,
		CustomerName:        names.Customer(e.CustomerID),
		DeliveryOrderNumber: e.DeliveryOrderNumber,
		CreatedAt:           e.CreatedAt,
	}
}

// Totals sums a set of rows. NetBalance is TotalReceived - TotalIssued.
type Totals struct {
	TotalReceived int64 `json:"total_received"`
	TotalIssued   int64 `json:"total_issued"`
	NetBalance    int64 `json:"net_balance"`
}

func TotalsOf(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.TotalReceived += e.Received
		t.TotalIssued += e.Issued
	}
	t.NetBalance = t.TotalReceived - t.TotalIssued
	return t
}

type Report struct {
	Title         string      `json:"title"`
	FilterSummary string      `json:"filter_summary"`
	GeneratedAt   time.Time   `json:"generated_at"`
	Rows          []ReportRow `json:"rows"`
	Totals        Totals      `json:"totals"`
}

// DefaultTitle names a report after its view.
func DefaultTitle(v View) string {
	switch v {
	case ViewReceived:
		return "Received Transactions"
	case ViewIssued:
		return "Issued Transactions"
	default:
		return "All Transactions"
	}
}

// BuildReport filters entries by q and packages the result. An empty
// title is replaced by DefaultTitle.
func BuildReport(entries []Entry, q Query, names *Names, title string, generatedAt time.Time) Report {
	q = q.normalized()
	matched := Filter(entries, q, names)

	rows := make([]ReportRow, len(matched))
	for i, e := range matched {
		rows[i] = NewReportRow(e, names)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle(q.View)
	}

	return Report{
		Title:         title,
		FilterSummary: q.Summary(names),
		GeneratedAt:   generatedAt.UTC(),
		Rows:          rows,
		Totals:        TotalsOf(matched),
	}
}
