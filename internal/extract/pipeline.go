// Package extract rebuilds reviewable BOM items from scanned PDF pages.
package extract

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/ocr"
)

// PageSource rasterizes document pages. Page numbers are 1-based.
type PageSource interface {
	PageCount(ctx context.Context, path string) (int, error)
	RasterizePage(ctx context.Context, path string, page int) (image.Image, error)
}

// Conditioner prepares a page raster for recognition.
type Conditioner interface {
	Process(img image.Image) (*image.Gray, error)
}

// TextReader recognizes the text of a conditioned page.
type TextReader interface {
	Recognize(ctx context.Context, img image.Image) (ocr.Page, error)
}

// Extractor runs the page pipeline: rasterize, condition, recognize, parse
// and admit.
type Extractor struct {
	pages       PageSource
	conditioner Conditioner
	reader      TextReader
	logger      *zap.Logger
}

// NewExtractor wires the pipeline stages. A nil logger disables logging.
func NewExtractor(pages PageSource, conditioner Conditioner, reader TextReader, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{pages: pages, conditioner: conditioner, reader: reader, logger: logger}
}

// Extract processes every page from the 0-based startPage onward and returns
// the pending items in document order.
//
// A failure in any page stage is logged and yields an empty list with a nil
// error. Only a negative start page and context cancellation are returned as
// errors.
func (e *Extractor) Extract(ctx context.Context, path string, startPage int) (bom.Items, error) {
	if startPage < 0 {
		return nil, bom.NewInputError("extract", fmt.Sprintf("start page must be >= 0, got %d", startPage), nil)
	}

	start := time.Now()
	log := e.logger.With(zap.String("path", path))

	items, err := e.run(ctx, path, startPage, log)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("extraction failed, returning no items", zap.Error(err))
		return bom.Items{}, nil
	}

	log.Info("extraction complete",
		zap.Int("items", len(items)),
		zap.Int("pending", items.PendingCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return items, nil
}

func (e *Extractor) run(ctx context.Context, path string, startPage int, log *zap.Logger) (bom.Items, error) {
	count, err := e.pages.PageCount(ctx, path)
	if err != nil {
		return nil, bom.NewRecognitionError("page_count", "failed to count pages", err)
	}
	log.Debug("document opened", zap.Int("pages", count), zap.Int("start_page", startPage))

	items := bom.Items{}
	for page := startPage + 1; page <= count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err = e.processPage(ctx, path, page, items, log)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

// processPage keeps the raster and conditioned buffers scoped to one page.
func (e *Extractor) processPage(ctx context.Context, path string, page int, items bom.Items, log *zap.Logger) (bom.Items, error) {
	raster, err := e.pages.RasterizePage(ctx, path, page)
	if err != nil {
		return nil, bom.NewRecognitionError("rasterize", fmt.Sprintf("page %d", page), err)
	}

	binary, err := e.conditioner.Process(raster)
	if err != nil {
		return nil, bom.NewRecognitionError("preprocess", fmt.Sprintf("page %d", page), err)
	}

	text, err := e.reader.Recognize(ctx, binary)
	if err != nil {
		return nil, bom.NewRecognitionError("recognize", fmt.Sprintf("page %d", page), err)
	}

	rows := ParseRows(text.Lines, text.Confidence)
	first := len(items)
	items = Admit(rows, items)

	log.Info("page processed",
		zap.Int("page", page),
		zap.Int("chars", len(text.Text)),
		zap.Int("rows", len(rows)),
	)
	for _, it := range items[first:] {
		log.Debug("item extracted",
			zap.Int("line_no", it.LineNo),
			zap.String("nsn", it.NSN),
			zap.Int("qty", it.Qty),
			zap.Float64("confidence", it.OverallConfidence()),
		)
	}
	return items, nil
}
