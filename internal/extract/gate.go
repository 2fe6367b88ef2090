package extract

import (
	"fmt"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
)

// Review thresholds. A field scoring below its threshold gets a note.
const (
	NSNReviewThreshold         = 100.0
	DescriptionReviewThreshold = 80.0
	QtyReviewThreshold         = 90.0
)

// GenericReviewNote is attached when no field fell below its threshold.
const GenericReviewNote = "Extracted via OCR - Manual verification required"

// Admit turns candidate rows into pending items appended to items. Line
// numbers continue from len(items) so numbering runs across pages.
func Admit(rows []Row, items bom.Items) bom.Items {
	for _, row := range rows {
		it := bom.Item{
			LineNo:                len(items) + 1,
			Description:           row.Description,
			NSN:                   row.NSN,
			Qty:                   row.Qty,
			DescriptionConfidence: row.DescriptionConfidence,
			NSNConfidence:         row.NSNConfidence,
			QtyConfidence:         row.QtyConfidence,
		}

		if it.NSNConfidence < NSNReviewThreshold {
			it.AddReviewNote(fmt.Sprintf("NSN confidence: %.0f%% - Verify accuracy", it.NSNConfidence))
		}
		if it.DescriptionConfidence < DescriptionReviewThreshold {
			it.AddReviewNote(fmt.Sprintf("Description confidence: %.0f%% - Check for OCR errors", it.DescriptionConfidence))
		}
		if it.QtyConfidence < QtyReviewThreshold {
			it.AddReviewNote(fmt.Sprintf("Quantity confidence: %.0f%% - Verify count", it.QtyConfidence))
		}

		it.NeedsReview = true
		if len(it.ReviewNotes) == 0 {
			it.AddReviewNote(GenericReviewNote)
		}
		items = append(items, it)
	}
	return items
}
