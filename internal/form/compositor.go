package form

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const overlayFont = "Helvetica"

// Compositor draws page layouts onto copies of a blank template.
type Compositor interface {
	// Compose returns a document with one template copy per layout page.
	Compose(template []byte, pages [][]DrawOp) ([]byte, error)
	// FirstPage returns the template's first page unmodified.
	FirstPage(template []byte) ([]byte, error)
}

// PDFCPUCompositor implements Compositor with pdfcpu text stamps.
type PDFCPUCompositor struct{}

// NewPDFCPUCompositor creates a pdfcpu-backed compositor.
func NewPDFCPUCompositor() *PDFCPUCompositor {
	return &PDFCPUCompositor{}
}

// config returns a fresh relaxed configuration; pdfcpu records the running
// command on it, so it is not shared between calls.
func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// FirstPage trims the template to its first page.
func (c *PDFCPUCompositor) FirstPage(template []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(template), &out, []string{"1"}, config()); err != nil {
		return nil, fmt.Errorf("failed to extract template page: %w", err)
	}
	return out.Bytes(), nil
}

// Compose renders pages onto fresh copies of the template's first page.
func (c *PDFCPUCompositor) Compose(template []byte, pages [][]DrawOp) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to compose")
	}

	blank, err := c.FirstPage(template)
	if err != nil {
		return nil, err
	}

	base := blank
	if len(pages) > 1 {
		copies := make([]io.ReadSeeker, len(pages))
		for i := range copies {
			copies[i] = bytes.NewReader(blank)
		}
		var merged bytes.Buffer
		if err := api.MergeRaw(copies, &merged, false, config()); err != nil {
			return nil, fmt.Errorf("failed to replicate template page: %w", err)
		}
		base = merged.Bytes()
	}

	stamps := make(map[int][]*model.Watermark, len(pages))
	for i, ops := range pages {
		for _, op := range ops {
			wm, err := textStamp(op)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", i+1, err)
			}
			stamps[i+1] = append(stamps[i+1], wm)
		}
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(base), &out, stamps, config()); err != nil {
		return nil, fmt.Errorf("failed to draw items: %w", err)
	}
	return out.Bytes(), nil
}

// stampRise is the baseline shift pdfcpu applies inside every text stamp
// (a leading "0 2 Td").
const stampRise = 2.0

// stampOffset returns the bottom-left stamp offset that puts op's baseline at
// op.Y and, for centered ops, the text's midpoint at op.X.
func stampOffset(op DrawOp) (x, y float64) {
	x = op.X
	if op.Align == AlignCenter {
		x -= font.TextWidth(op.Text, overlayFont, op.FontSize) / 2
	}
	return x, op.Y - stampRise
}

// textStamp builds an on-top text stamp anchored at the op's bottom-left.
func textStamp(op DrawOp) (*model.Watermark, error) {
	x, y := stampOffset(op)
	desc := fmt.Sprintf(
		"fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
		overlayFont, op.FontSize, x, y,
	)
	wm, err := api.TextWatermark(op.Text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid stamp %q: %w", op.Text, err)
	}
	return wm, nil
}
