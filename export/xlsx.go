package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/stock-ledger/stock"
)

// SheetName is the name of the single worksheet.
const SheetName = "Report"

// XLSX writes an Office Open XML workbook.
type XLSX struct{}

func (XLSX) Name() string { return "xlsx" }
func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return "xlsx" }

func (XLSX) Write(w io.Writer, r stock.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	rowNo := 1
	setRow := func(values []any, style int) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
		if style != 0 && len(values) > 0 {
			last, err := excelize.CoordinatesToCellName(len(values), rowNo)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(SheetName, cell, last, style); err != nil {
				return err
			}
		}
		rowNo++
		return nil
	}

	for i, line := range headerLines(r) {
		style := 0
		if i == 0 {
			style = bold
		}
		if err := setRow(anySlice(line), style); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	rowNo++

	if err := setRow(anySlice(columns), bold); err != nil {
		return fmt.Errorf("write columns: %w", err)
	}
	for _, row := range r.Rows {
		if err := setRow(rowValues(row), 0); err != nil {
			return fmt.Errorf("write row %s: %w", row.ID, err)
		}
	}
	rowNo++

	if err := setRow(anySlice(totalsHeader), bold); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	if err := setRow(totalsValues(r.Totals), 0); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
