/*
Package export renders a stock.Report into a downloadable document.

LAYOUT (every format):
  title
  Filters: <filter summary>
  Generated: <timestamp>

  Date | Item | Size | Brand | Type | Received | Issued | Balance | GRN No. | Customer | DO No.
  ...one line per row, in report order...

  Total Received | Total Issued | Net Balance

Formatters never resolve names or recompute anything: the report is
rendered as handed over.
*/
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/warp/stock-ledger/stock"
)

// Formatter writes a report in one document format.
type Formatter interface {
	// Name is the value of the ?format= query parameter.
	Name() string
	ContentType() string
	Extension() string
	Write(w io.Writer, r stock.Report) error
}

var formatters = map[string]Formatter{}

func register(f Formatter) {
	formatters[f.Name()] = f
}

func init() {
	register(CSV{})
	register(XLSX{})
}

// ByName returns the formatter for name (case-insensitive).
func ByName(name string) (Formatter, error) {
	f, ok := formatters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered formats.
func Names() []string {
	names := make([]string, 0, len(formatters))
	for n := range formatters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filename is a download name derived from the title and generation time,
// e.g. "issued-transactions-20240315.xlsx".
func Filename(r stock.Report, f Formatter) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(r.Title) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	base := strings.TrimSuffix(b.String(), "-")
	if base == "" {
		base = "report"
	}
	return fmt.Sprintf("%s-%s.%s", base, r.GeneratedAt.Format("20060102"), f.Extension())
}

// =============================================================================
// SHARED LAYOUT
// =============================================================================

var columns = []string{
	"Date", "Item", "Size", "Brand", "Type",
	"Received", "Issued", "Balance",
	"GRN No.", "Customer", "DO No.",
}

var totalsHeader = []string{"Total Received", "Total Issued", "Net Balance"}

func headerLines(r stock.Report) [][]string {
	return [][]string{
		{escapeCell(r.Title)},
		{"Filters: " + r.FilterSummary},
		{"Generated: " + r.GeneratedAt.UTC().Format(time.RFC3339)},
	}
}

// rowValues returns the cells of a row. Quantities stay numeric so that
// spreadsheets can sum them.
func rowValues(row stock.ReportRow) []any {
	return []any{
		row.TransactionDate.String(),
		escapeCell(row.ItemName),
		escapeCell(row.SizeName),
		escapeCell(row.Brand),
		string(row.Kind),
		row.Received,
		row.Issued,
		row.Balance,
		escapeCell(row.GRNNumber),
		escapeCell(row.CustomerName),
		escapeCell(row.DeliveryOrderNumber),
	}
}

// escapeCell prefixes user text that a spreadsheet would read as a
// formula with a single quote.
func escapeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func totalsValues(t stock.Totals) []any {
	return []any{t.TotalReceived, t.TotalIssued, t.NetBalance}
}
