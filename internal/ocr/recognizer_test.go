package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	tokens []Token
	err    error
	calls  int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image) ([]Token, error) {
	f.calls++
	return f.tokens, f.err
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name      string
		tokens    []Token
		wantText  string
		wantLines []string
		wantConf  map[string]float64
	}{
		{
			name:     "no tokens",
			wantText: "",
			wantConf: map[string]float64{},
		},
		{
			name: "words grouped by line",
			tokens: []Token{
				{Text: "1", Confidence: 91, Line: 0},
				{Text: "FIELD", Confidence: 96, Line: 0},
				{Text: "RADIO", Confidence: 95, Line: 0},
				{Text: "NSN:", Confidence: 80, Line: 1},
				{Text: "12345678", Confidence: 89, Line: 1},
			},
			wantText:  "1 FIELD RADIO\nNSN: 12345678",
			wantLines: []string{"1 FIELD RADIO", "NSN: 12345678"},
			wantConf:  map[string]float64{"1": 91, "FIELD": 96, "RADIO": 95, "NSN:": 80, "12345678": 89},
		},
		{
			name: "blank words skipped",
			tokens: []Token{
				{Text: " ", Confidence: 10, Line: 0},
				{Text: "", Confidence: 10, Line: 1},
				{Text: "KIT", Confidence: 70, Line: 2},
			},
			wantText:  "KIT",
			wantLines: []string{"KIT"},
			wantConf:  map[string]float64{"KIT": 70},
		},
		{
			name: "repeated word keeps last score",
			tokens: []Token{
				{Text: "EA", Confidence: 40, Line: 0},
				{Text: "EA", Confidence: 85, Line: 1},
			},
			wantText:  "EA\nEA",
			wantLines: []string{"EA", "EA"},
			wantConf:  map[string]float64{"EA": 85},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Assemble(tt.tokens)
			assert.Equal(t, tt.wantText, page.Text)
			assert.Equal(t, tt.wantLines, page.Lines)
			assert.Equal(t, tt.wantConf, page.Confidence)
		})
	}
}

func TestRecognizer_Recognize(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))

	t.Run("assembles engine output", func(t *testing.T) {
		engine := &fakeEngine{tokens: []Token{{Text: "CASE", Confidence: 88, Line: 3}}}
		page, err := NewRecognizer(engine, nil).Recognize(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, "CASE", page.Text)
		assert.Equal(t, 1, page.WordCount)
		assert.Equal(t, 1, engine.calls)
	})

	t.Run("engine failure", func(t *testing.T) {
		engine := &fakeEngine{err: errors.New("tessdata missing")}
		_, err := NewRecognizer(engine, nil).Recognize(context.Background(), img)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tessdata missing")
	})

	t.Run("empty image", func(t *testing.T) {
		engine := &fakeEngine{}
		_, err := NewRecognizer(engine, nil).Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
		require.Error(t, err)
		assert.Zero(t, engine.calls)
	})

	t.Run("no engine", func(t *testing.T) {
		_, err := NewRecognizer(nil, nil).Recognize(context.Background(), img)
		assert.Error(t, err)
	})
}
