// Package tesseract provides the Tesseract OCR engine through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/a3tai/mcp-bom-reader/internal/ocr"
)

// Config configures the Tesseract engine.
type Config struct {
	Languages      []string
	DPI            int
	TessdataPrefix string
}

// Engine implements ocr.Engine with the gosseract client.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed engine.
func New(cfg Config) *Engine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on img and returns its words in reading order.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if e.cfg.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.cfg.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}
	return tokensFromBoxes(boxes), nil
}

// tokensFromBoxes starts a new line whenever the line number Tesseract
// reports changes between consecutive words. Table cells recognized as
// separate blocks all report line 1, so a row's cells stay on one line.
func tokensFromBoxes(boxes []gosseract.BoundingBox) []ocr.Token {
	tokens := make([]ocr.Token, 0, len(boxes))
	line := -1
	lastLineNum := 0
	for i, b := range boxes {
		if i == 0 || b.LineNum != lastLineNum {
			line++
			lastLineNum = b.LineNum
		}
		tokens = append(tokens, ocr.Token{Text: b.Word, Confidence: b.Confidence, Line: line})
	}
	return tokens
}
