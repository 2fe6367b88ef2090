package form

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
)

// Result is a rendered DD1750 document.
type Result struct {
	PDF       []byte `json:"-"`
	ItemCount int    `json:"item_count"`
	PageCount int    `json:"page_count"`
	// Fallback is set when rendering failed and the blank template page was
	// emitted instead.
	Fallback bool `json:"fallback"`
}

// Generator renders verified items onto a blank DD1750 template.
type Generator struct {
	compositor Compositor
	logger     *zap.Logger
}

// NewGenerator creates a generator. A nil compositor uses pdfcpu and a nil
// logger disables logging.
func NewGenerator(compositor Compositor, logger *zap.Logger) *Generator {
	if compositor == nil {
		compositor = NewPDFCPUCompositor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{compositor: compositor, logger: logger}
}

// Generate renders items onto copies of the template's first page, 18 rows
// per page.
//
// Items still pending review fail with *bom.GateError and nothing is
// rendered. An empty list yields the blank first page. Rendering failures are
// logged and also yield the blank first page, with Fallback set and an item
// count of 0.
func (g *Generator) Generate(items bom.Items, template []byte) (*Result, error) {
	if len(template) == 0 {
		return nil, bom.NewInputError("generate", "missing required files", fmt.Errorf("template is empty"))
	}
	if err := bom.RequireVerified(items); err != nil {
		g.logger.Warn("generation blocked by review gate", zap.Error(err))
		return nil, err
	}

	if len(items) == 0 {
		return &Result{PDF: g.blankPage(template), ItemCount: 0, PageCount: 1}, nil
	}

	pdf, err := g.compose(items, template)
	if err != nil {
		g.logger.Error("DD1750 rendering failed, emitting blank template", zap.Error(err))
		return &Result{PDF: g.blankPage(template), ItemCount: 0, PageCount: 1, Fallback: true}, nil
	}

	pages := PageCount(len(items))
	g.logger.Info("DD1750 generated", zap.Int("items", len(items)), zap.Int("pages", pages))
	return &Result{PDF: pdf, ItemCount: len(items), PageCount: pages}, nil
}

func (g *Generator) compose(items bom.Items, template []byte) (pdf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = bom.NewRenderingError("compose", "renderer panicked", fmt.Errorf("%v", r))
		}
	}()

	pdf, err = g.compositor.Compose(template, Layout(items))
	if err != nil {
		return nil, bom.NewRenderingError("compose", "failed to render items", err)
	}
	return pdf, nil
}

// blankPage returns the template's first page, or the template itself when
// it cannot be trimmed.
func (g *Generator) blankPage(template []byte) (page []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("template trim panicked, returning template as is", zap.Any("panic", r))
			page = template
		}
	}()

	page, err := g.compositor.FirstPage(template)
	if err != nil {
		g.logger.Error("template trim failed, returning template as is", zap.Error(err))
		return template
	}
	return page
}
