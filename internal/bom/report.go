package bom

import (
	"fmt"
	"strings"
)

var reportRule = strings.Repeat("=", 80)

var reviewInstructions = []string{
	"1. Review each item carefully",
	"2. Verify NSNs are correct (9 digits)",
	"3. Check descriptions for OCR errors",
	"4. Confirm quantities match source document",
	"5. Make corrections in the preview interface",
	"6. Only generate DD1750 after ALL items verified",
}

// Report renders the plain-text review summary shown to the reviewer.
// The output depends only on items, so repeated calls are identical.
func Report(items Items) string {
	lines := []string{
		reportRule,
		"OCR EXTRACTION REVIEW REPORT",
		reportRule,
		fmt.Sprintf("\nTotal Items Extracted: %d", len(items)),
		fmt.Sprintf("Items Needing Review: %d", items.PendingCount()),
		fmt.Sprintf("Average Confidence: %.1f%%", items.AverageConfidence()),
		"\n" + reportRule,
		"ITEM-BY-ITEM REVIEW",
		reportRule + "\n",
	}

	for i := range items {
		it := &items[i]
		lines = append(lines,
			fmt.Sprintf("Item #%d:", it.LineNo),
			fmt.Sprintf("  Description: %s", it.Description),
			fmt.Sprintf("  NSN: %s (Confidence: %.0f%%)", it.NSN, it.NSNConfidence),
			fmt.Sprintf("  Quantity: %d (Confidence: %.0f%%)", it.Qty, it.QtyConfidence),
			fmt.Sprintf("  Overall Confidence: %.0f%%", it.OverallConfidence()),
		)
		if it.NeedsReview {
			lines = append(lines, "  ⚠️  NEEDS REVIEW:")
			for _, note := range it.ReviewNotes {
				lines = append(lines, "      - "+note)
			}
		}
		lines = append(lines, "")
	}

	lines = append(lines, reportRule, "INSTRUCTIONS:")
	lines = append(lines, reviewInstructions...)
	lines = append(lines, reportRule)

	return strings.Join(lines, "\n")
}
