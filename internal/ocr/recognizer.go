package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Assemble rebuilds page text from engine tokens. Empty words are dropped,
// words sharing a line index are joined with single spaces and lines keep
// the engine's order.
func Assemble(tokens []Token) Page {
	page := Page{Confidence: make(map[string]float64)}

	var current []string
	currentLine := 0
	started := false

	flush := func() {
		if len(current) > 0 {
			page.Lines = append(page.Lines, strings.Join(current, " "))
		}
		current = nil
	}

	for _, tok := range tokens {
		word := strings.TrimSpace(tok.Text)
		if word == "" {
			continue
		}
		if !started || tok.Line != currentLine {
			flush()
			currentLine = tok.Line
			started = true
		}
		current = append(current, word)
		page.Confidence[word] = tok.Confidence
		page.WordCount++
	}
	flush()

	page.Text = strings.Join(page.Lines, "\n")
	return page
}

// Recognizer runs an Engine and assembles its output.
type Recognizer struct {
	engine Engine
	logger *zap.Logger
}

// NewRecognizer wraps engine. A nil logger disables logging.
func NewRecognizer(engine Engine, logger *zap.Logger) *Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{engine: engine, logger: logger}
}

// Recognize extracts text and word confidences from a binary page image.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (Page, error) {
	if r.engine == nil {
		return Page{}, fmt.Errorf("no OCR engine configured")
	}
	if img == nil || img.Bounds().Empty() {
		return Page{}, fmt.Errorf("cannot recognize empty image")
	}

	start := time.Now()
	tokens, err := r.engine.Recognize(ctx, img)
	if err != nil {
		return Page{}, fmt.Errorf("%s: %w", r.engine.Name(), err)
	}

	page := Assemble(tokens)
	r.logger.Debug("ocr page recognized",
		zap.String("engine", r.engine.Name()),
		zap.Int("words", page.WordCount),
		zap.Int("lines", len(page.Lines)),
		zap.Int("chars", len(page.Text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return page, nil
}
