// Package raster turns PDF pages into images for OCR.
package raster

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// DefaultDPI is the resolution page rasters are normalized to.
const DefaultDPI = 300

// Rasterizer kinds accepted by New.
const (
	KindEmbedded = "embedded"
	KindPdftoppm = "pdftoppm"
)

// KindUsage describes the rasterizer choice for command line help.
const KindUsage = "Page rasterizer: 'embedded' takes the scanner image stored in each page " +
	"and fails on pages without one; 'pdftoppm' renders any page at the configured DPI"

// Rasterizer renders document pages. Page numbers are 1-based.
type Rasterizer interface {
	PageCount(ctx context.Context, path string) (int, error)
	RasterizePage(ctx context.Context, path string, page int) (image.Image, error)
}

// Config selects and configures a Rasterizer.
type Config struct {
	Kind         string
	DPI          int
	PdftoppmPath string
}

// New returns the rasterizer named by cfg.Kind.
func New(cfg Config, logger *zap.Logger) (Rasterizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}

	switch cfg.Kind {
	case "", KindEmbedded:
		return NewEmbedded(cfg.DPI, logger), nil
	case KindPdftoppm:
		return NewPdftoppm(cfg.PdftoppmPath, cfg.DPI, logger), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", cfg.Kind)
	}
}

func checkPage(page, count int) error {
	if page < 1 || page > count {
		return fmt.Errorf("page %d out of range (document has %d pages)", page, count)
	}
	return nil
}
