package workflow

import (
	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/pdf"
)

// DocumentInfo describes a BOM PDF found in the configured directory.
type DocumentInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// ExtractRequest asks for OCR extraction of a BOM document.
type ExtractRequest struct {
	Path      string `json:"path"`
	StartPage int    `json:"start_page"` // 0-based; earlier pages are skipped
}

// GenerateRequest asks for a DD1750 from reviewed items.
type GenerateRequest struct {
	Items        bom.Items `json:"items"`
	TemplatePath string    `json:"template_path,omitempty"` // configured template when empty
	OutputPath   string    `json:"output_path,omitempty"`
}

// ExportRequest asks for an XLSX review worksheet.
type ExportRequest struct {
	Items      bom.Items `json:"items"`
	OutputPath string    `json:"output_path,omitempty"`
}

// ClassifyRequest asks for the text/image format of a document.
type ClassifyRequest struct {
	Path string `json:"path"`
}

// Response Types

// ExtractResult is the envelope handed to the review surface.
type ExtractResult struct {
	RunID      string     `json:"run_id"`
	Path       string     `json:"path"`
	Format     pdf.Format `json:"format"`
	TotalItems int        `json:"total_items"`
	Items      bom.Items  `json:"items"`
	Report     string     `json:"report"`
	// NeedsReview is true when every item is pending, which is always the
	// case for a fresh extraction.
	NeedsReview bool `json:"needs_review"`
}

// GenerateResult describes a written DD1750.
type GenerateResult struct {
	RunID      string `json:"run_id"`
	OutputPath string `json:"output_path"`
	ItemCount  int    `json:"item_count"`
	PageCount  int    `json:"page_count"`
	Size       int64  `json:"size"`
	Fallback   bool   `json:"fallback"`
}

// ExportResult describes a written review worksheet.
type ExportResult struct {
	RunID      string `json:"run_id"`
	OutputPath string `json:"output_path"`
	ItemCount  int    `json:"item_count"`
	Size       int64  `json:"size"`
}

// ClassifyResult carries the classifier verdict for a document.
type ClassifyResult struct {
	Path   string     `json:"path"`
	Format pdf.Format `json:"format"`
}

// ServerInfoResult summarizes the server configuration and the documents
// available for extraction.
type ServerInfoResult struct {
	ServerName   string         `json:"server_name"`
	Version      string         `json:"version"`
	BOMDirectory string         `json:"bom_directory"`
	TemplatePath string         `json:"template_path"`
	MaxFileSize  int64          `json:"max_file_size"`
	Documents    []DocumentInfo `json:"documents"`
	Truncated    bool           `json:"truncated"`
}
