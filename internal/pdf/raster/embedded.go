package raster

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Embedded rasterizes scanned PDFs by pulling the page scan image out of the
// page resources. Scanner output carries one full-page image per page, so
// the largest image on the page is taken as the page raster. Pages without an
// embedded scan fail; use the pdftoppm rasterizer for born-digital PDFs.
//
// The parsed document is kept between calls and reused while the file's path,
// size and modification time are unchanged.
type Embedded struct {
	dpi    int
	logger *zap.Logger

	mu     sync.Mutex
	cached *parsedDocument
	parses int
}

type parsedDocument struct {
	path    string
	size    int64
	modTime time.Time
	pctx    *model.Context
}

// NewEmbedded returns a pdfcpu-backed rasterizer producing rasters at dpi.
func NewEmbedded(dpi int, logger *zap.Logger) *Embedded {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedded{dpi: dpi, logger: logger}
}

// PageCount returns the number of pages in the document.
func (e *Embedded) PageCount(ctx context.Context, path string) (int, error) {
	var count int
	err := e.withDocument(path, func(pctx *model.Context) error {
		count = pctx.PageCount
		return nil
	})
	return count, err
}

// RasterizePage returns the scan of page resampled to the configured DPI.
func (e *Embedded) RasterizePage(ctx context.Context, path string, page int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		scan   model.Image
		dims   []types.Dim
		dimErr error
	)
	err := e.withDocument(path, func(pctx *model.Context) error {
		if err := checkPage(page, pctx.PageCount); err != nil {
			return err
		}
		images, err := pdfcpu.ExtractPageImages(pctx, page, false)
		if err != nil {
			return fmt.Errorf("failed to extract images from page %d: %w", page, err)
		}
		var ok bool
		if scan, ok = largestImage(images); !ok {
			return fmt.Errorf("page %d has no embedded scan image", page)
		}
		dims, dimErr = pctx.PageDims()
		return nil
	})
	if err != nil {
		return nil, err
	}

	img, err := decodeScan(scan.FileType, scan)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	if dimErr != nil || page > len(dims) {
		e.logger.Warn("page dimensions unavailable, keeping native scan resolution",
			zap.Int("page", page), zap.Error(dimErr))
		return img, nil
	}

	out := scaleToDPI(img, dims[page-1], e.dpi)
	e.logger.Debug("page rasterized",
		zap.Int("page", page),
		zap.String("format", scan.FileType),
		zap.Int("scan_width", img.Bounds().Dx()),
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()),
	)
	return out, nil
}

// withDocument runs fn on the parsed document at path, parsing it only when
// the cached copy is missing or stale. fn runs under the cache lock because
// pdfcpu contexts are not safe for concurrent use.
func (e *Embedded) withDocument(path string, fn func(*model.Context) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cached
	if c == nil || c.path != path || c.size != info.Size() || !c.modTime.Equal(info.ModTime()) {
		pctx, err := readContext(path)
		if err != nil {
			return err
		}
		e.parses++
		c = &parsedDocument{path: path, size: info.Size(), modTime: info.ModTime(), pctx: pctx}
		e.cached = c
		e.logger.Debug("document parsed", zap.String("path", path), zap.Int("pages", pctx.PageCount))
	}
	return fn(c.pctx)
}

func readContext(path string) (*model.Context, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return pctx, nil
}

func largestImage(images map[int]model.Image) (model.Image, bool) {
	var (
		best  model.Image
		found bool
	)
	for _, img := range images {
		if !found || img.Width*img.Height > best.Width*best.Height {
			best = img
			found = true
		}
	}
	return best, found
}

func decodeScan(fileType string, r io.Reader) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "tif", "tiff":
		img, err = tiff.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported scan image format %q", fileType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s scan: %w", fileType, err)
	}
	return img, nil
}

// scaleToDPI resamples img so that it covers a page of dim points at dpi.
func scaleToDPI(img image.Image, dim types.Dim, dpi int) image.Image {
	if dim.Width <= 0 || dim.Height <= 0 || dpi <= 0 {
		return img
	}
	w := int(math.Round(dim.Width / 72 * float64(dpi)))
	h := int(math.Round(dim.Height / 72 * float64(dpi)))
	b := img.Bounds()
	if w <= 0 || h <= 0 || (w == b.Dx() && h == b.Dy()) {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
