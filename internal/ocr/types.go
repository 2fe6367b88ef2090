// Package ocr recovers words, reading-order lines and per-word confidence
// from a conditioned page image.
package ocr

import (
	"context"
	"image"
)

// Token is one recognized word.
type Token struct {
	Text string `json:"text"`
	// Confidence is the engine's 0-100 score for the word.
	Confidence float64 `json:"confidence"`
	// Line groups words into reading-order lines. Tokens of the same line
	// are contiguous in the engine's output.
	Line int `json:"line"`
}

// Engine is the recognition backend capability.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]Token, error)
}

// Page is the recognized content of one page.
type Page struct {
	// Text holds the lines joined by newlines.
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
	// Confidence maps a word to its OCR confidence. Repeated words keep the
	// score of their last occurrence.
	Confidence map[string]float64 `json:"confidence"`
	WordCount  int                `json:"word_count"`
}
