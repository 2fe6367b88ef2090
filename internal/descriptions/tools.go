package descriptions

import "sort"

// Tool names exposed over MCP.
const (
	ToolExtract         = "bom_extract"
	ToolReviewReport    = "bom_review_report"
	ToolGenerate        = "bom_generate"
	ToolClassify        = "bom_classify"
	ToolExportWorksheet = "bom_export_worksheet"
	ToolServerInfo      = "bom_server_info"
)

// Tool descriptions with practical examples and use cases
const (
	BOMExtractDescription = `Extract line items from a scanned or handwritten Bill-of-Materials PDF using OCR.

**When to use:** A BOM, packing list or hand receipt arrives as a scan and its items must be entered on a DD1750.

**Why it's useful:** Rasterizes each page, cleans the scan, recognizes text and rebuilds item rows from stock-number anchors. Every field gets a 0-100 confidence score.

**Examples:**
• Scanned packing list: "Extract items from boms/radio-kit.pdf"
• Skip a cover sheet: "Extract items from boms/hand-receipt.pdf starting at page 1"

**Common workflows:**
1. Extract → read the review report → correct items → set needs_review=false on each → bom_generate
2. Extract → bom_export_worksheet → review offline → bom_generate

**Best practices:** Every extracted item is returned with needs_review=true. OCR output is never trusted without a human check; compare NSNs and quantities against the source document.`

	BOMReviewReportDescription = `Render the plain-text review report for a list of BOM items.

**When to use:** After editing items, to see which ones still need review and why.

**Why it's useful:** Summarizes totals, pending count and average confidence, then lists each item with its review notes and the verification checklist.

**Examples:**
• Re-check after edits: "Show the review report for the corrected items"

**Best practices:** Pass the full item list as JSON, exactly as returned by bom_extract with your corrections applied.`

	BOMGenerateDescription = `Generate a filled DD1750 (Packing List) PDF from verified BOM items.

**When to use:** Every item has been checked by a reviewer and marked needs_review=false.

**Why it's useful:** Lays items onto copies of the blank DD1750 template, 18 rows per page, with line number, description, NSN, unit of issue and quantities.

**Examples:**
• Final form: "Generate the DD1750 for the verified radio kit items into boms/radio-kit_dd1750.pdf"

**Common workflows:**
1. bom_extract → review and correct → bom_generate

**Best practices:** Generation is refused while any item still has needs_review=true. If rendering fails the blank template page is written and the result reports a fallback.`

	BOMClassifyDescription = `Check whether a BOM PDF carries machine-readable text or only page scans.

**When to use:** Triage before extraction, or to explain poor OCR results on a document that already has a text layer.

**Why it's useful:** Reports TEXT_BASED, IMAGE_BASED or UNKNOWN from the first page's text. Extraction runs OCR in every case.

**Examples:**
• Triage: "Is boms/component-listing.pdf a scan or a text PDF?"`

	BOMExportWorksheetDescription = `Export BOM items to an XLSX review worksheet.

**When to use:** Reviewers want to check items in a spreadsheet, or an audit copy of the extraction is needed.

**Why it's useful:** One row per item with all fields, confidences, review state and notes.

**Examples:**
• Offline review: "Export the extracted items to boms/radio-kit_review.xlsx"

**Best practices:** Pending items are allowed here; the worksheet is a review aid and not a gated artifact.`

	BOMServerInfoDescription = `Get server information, available tools, BOM documents in the configured directory and usage guidance.

**When to use:** At the start of a session to discover documents and the configured DD1750 template.

**Examples:**
• Discovery: "What BOM documents are available?"`
)

// UsageGuidance is appended to the server info response.
const UsageGuidance = `📖 Workflow:
1. bom_extract the scanned BOM (paths are relative to the BOM directory)
2. Review every item: fix description, NSN and qty, then set needs_review=false
3. Optionally bom_review_report or bom_export_worksheet to re-check
4. bom_generate the DD1750 once no item needs review`

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolExtract:         BOMExtractDescription,
	ToolReviewReport:    BOMReviewReportDescription,
	ToolGenerate:        BOMGenerateDescription,
	ToolClassify:        BOMClassifyDescription,
	ToolExportWorksheet: BOMExportWorksheetDescription,
	ToolServerInfo:      BOMServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary returns the first line of a tool's description.
func Summary(toolName string) string {
	desc := GetToolDescription(toolName)
	for i, r := range desc {
		if r == '\n' {
			return desc[:i]
		}
	}
	return desc
}
