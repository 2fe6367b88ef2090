// Package form renders verified BOM items onto the DD1750 packing list.
package form

import (
	"strconv"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
)

// DD1750 geometry in PDF points, origin at the bottom-left corner.
const (
	RowsPerPage = 18

	PageWidth  = 612.0
	PageHeight = 792.0

	BoxLeft, BoxRight         = 44.0, 88.0
	ContentLeft, ContentRight = 88.0, 365.0
	UnitLeft, UnitRight       = 365.0, 408.5
	InitialLeft, InitialRight = 408.5, 453.5
	SparesLeft, SparesRight   = 453.5, 514.5
	TotalLeft, TotalRight     = 514.5, 566.0

	TableTop    = 616.0
	TableBottom = 89.5
	RowHeight   = (TableTop - TableBottom) / RowsPerPage
	PadX        = 3.0

	firstRowInset = 5.0
	descDrop      = 7.0
	nsnDrop       = 12.2

	MaxDescriptionLen = 50
	UnitOfIssue       = "EA"
	SparesQty         = "0"
)

// Font sizes.
const (
	numberFontSize      = 8
	descriptionFontSize = 7
	nsnFontSize         = 6
)

// Align says how DrawOp.X anchors the text.
type Align int

const (
	// AlignLeft places the start of the text at X.
	AlignLeft Align = iota
	// AlignCenter centers the text on X.
	AlignCenter
)

// DrawOp is one Helvetica text run on a form page. Y is the baseline.
type DrawOp struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize int     `json:"font_size"`
	Align    Align   `json:"align"`
}

// PageCount is the number of form pages needed for n items.
func PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + RowsPerPage - 1) / RowsPerPage
}

// Layout computes the draw operations for every output page.
func Layout(items bom.Items) [][]DrawOp {
	pages := make([][]DrawOp, PageCount(len(items)))
	for p := range pages {
		start := p * RowsPerPage
		end := min(start+RowsPerPage, len(items))
		for r, it := range items[start:end] {
			pages[p] = append(pages[p], rowOps(it, r)...)
		}
	}
	return pages
}

func rowOps(it bom.Item, row int) []DrawOp {
	y := (TableTop - firstRowInset) - float64(row)*RowHeight
	yDesc := y - descDrop
	yNSN := y - nsnDrop
	qty := strconv.Itoa(it.Qty)

	ops := []DrawOp{
		{Text: strconv.Itoa(it.LineNo), X: center(BoxLeft, BoxRight), Y: yDesc, FontSize: numberFontSize, Align: AlignCenter},
		{Text: truncate(it.Description, MaxDescriptionLen), X: ContentLeft + PadX, Y: yDesc, FontSize: descriptionFontSize, Align: AlignLeft},
	}
	if it.NSN != "" {
		ops = append(ops, DrawOp{Text: "NSN: " + it.NSN, X: ContentLeft + PadX, Y: yNSN, FontSize: nsnFontSize, Align: AlignLeft})
	}
	return append(ops,
		DrawOp{Text: UnitOfIssue, X: center(UnitLeft, UnitRight), Y: yDesc, FontSize: numberFontSize, Align: AlignCenter},
		DrawOp{Text: qty, X: center(InitialLeft, InitialRight), Y: yDesc, FontSize: numberFontSize, Align: AlignCenter},
		DrawOp{Text: SparesQty, X: center(SparesLeft, SparesRight), Y: yDesc, FontSize: numberFontSize, Align: AlignCenter},
		DrawOp{Text: qty, X: center(TotalLeft, TotalRight), Y: yDesc, FontSize: numberFontSize, Align: AlignCenter},
	)
}

func center(left, right float64) float64 {
	return (left + right) / 2
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
