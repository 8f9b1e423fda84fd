package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/warp/stock-ledger/stock"
)

// CSV writes RFC 4180 comma-separated values.
type CSV struct{}

func (CSV) Name() string        { return "csv" }
func (CSV) ContentType() string { return "text/csv; charset=utf-8" }
func (CSV) Extension() string   { return "csv" }

func (CSV) Write(w io.Writer, r stock.Report) error {
	cw := csv.NewWriter(w)

	records := headerLines(r)
	records = append(records, nil, columns)
	for _, row := range r.Rows {
		records = append(records, stringify(rowValues(row)))
	}
	records = append(records, nil, totalsHeader, stringify(totalsValues(r.Totals)))

	for _, rec := range records {
		if rec == nil {
			rec = []string{""}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func stringify(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}
