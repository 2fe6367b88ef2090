package bom

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorksheetName is the sheet holding the review rows.
const WorksheetName = "Review"

var worksheetHeaders = []string{
	"Line",
	"Description",
	"NSN",
	"NSN Confidence",
	"Quantity",
	"Quantity Confidence",
	"Description Confidence",
	"Overall Confidence",
	"Needs Review",
	"Review Notes",
}

// ExportWorksheet renders items into an XLSX workbook for offline review.
func ExportWorksheet(items Items) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(WorksheetName); index == -1 {
		if _, err := f.NewSheet(WorksheetName); err != nil {
			return nil, fmt.Errorf("create sheet: %w", err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(WorksheetName)
	f.SetActiveSheet(activeIndex)

	for i, h := range worksheetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(WorksheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for r := range items {
		it := &items[r]
		row := r + 2
		values := []any{
			it.LineNo,
			it.Description,
			it.NSN,
			it.NSNConfidence,
			it.Qty,
			it.QtyConfidence,
			it.DescriptionConfidence,
			round1(it.OverallConfidence()),
			yesNo(it.NeedsReview),
			strings.Join(it.ReviewNotes, "; "),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(WorksheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(WorksheetName, "A", "A", 6)
	_ = f.SetColWidth(WorksheetName, "B", "B", 48)
	_ = f.SetColWidth(WorksheetName, "C", "C", 14)
	_ = f.SetColWidth(WorksheetName, "D", "I", 12)
	_ = f.SetColWidth(WorksheetName, "J", "J", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
