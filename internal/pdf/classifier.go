// Package pdf validates input documents and classifies their layout.
package pdf

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Format describes how a BOM document carries its text.
type Format string

const (
	FormatTextBased  Format = "TEXT_BASED"
	FormatImageBased Format = "IMAGE_BASED"
	FormatUnknown    Format = "UNKNOWN"
)

// Classification thresholds on trimmed first-page text length.
const (
	minTextChars  = 50
	richTextChars = 200
)

var formatKeywords = []string{"COMPONENT LISTING", "HAND RECEIPT"}

// ClassifyText classifies a document from its first-page text.
func ClassifyText(text string) Format {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextChars {
		return FormatImageBased
	}
	for _, kw := range formatKeywords {
		if strings.Contains(text, kw) {
			return FormatTextBased
		}
	}
	if len(trimmed) > richTextChars {
		return FormatTextBased
	}
	return FormatImageBased
}

// FormatClassifier reports whether a document has extractable text. The
// result is informational; extraction always runs OCR.
type FormatClassifier struct {
	logger *zap.Logger
}

// NewFormatClassifier creates a classifier. A nil logger disables logging.
func NewFormatClassifier(logger *zap.Logger) *FormatClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormatClassifier{logger: logger}
}

// ClassifyFile classifies the document at path. Any failure yields
// FormatUnknown.
func (c *FormatClassifier) ClassifyFile(path string) Format {
	text, err := firstPageText(path)
	if err != nil {
		c.logger.Warn("format detection failed", zap.String("path", path), zap.Error(err))
		return FormatUnknown
	}
	format := ClassifyText(text)
	c.logger.Info("detected BOM format", zap.String("path", path), zap.String("format", string(format)))
	return format
}

func firstPageText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return "", fmt.Errorf("document has no pages")
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", fmt.Errorf("first page is missing")
	}
	return page.GetPlainText(nil)
}
