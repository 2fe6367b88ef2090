package main

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/config"
	"github.com/a3tai/mcp-bom-reader/internal/ocr"
	"github.com/a3tai/mcp-bom-reader/internal/preprocess"
	"github.com/a3tai/mcp-bom-reader/internal/testutil"
	"github.com/a3tai/mcp-bom-reader/internal/workflow"
)

type onePage struct{}

func (onePage) PageCount(ctx context.Context, path string) (int, error) { return 1, nil }

func (onePage) RasterizePage(ctx context.Context, path string, page int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

type scriptedOCR struct{}

func (scriptedOCR) Recognize(ctx context.Context, img image.Image) (ocr.Page, error) {
	var tokens []ocr.Token
	for i, line := range []string{
		"1 FIELD RADIO SET 123456789 Auth Qty: 2",
		"2 ANTENNA, WHIP 123456789 1",
	} {
		for _, w := range strings.Fields(line) {
			tokens = append(tokens, ocr.Token{Text: w, Confidence: 90, Line: i})
		}
	}
	return ocr.Assemble(tokens), nil
}

func useScriptedService(t *testing.T) {
	t.Helper()
	old := newService
	newService = func(cfg *config.Config, logger *zap.Logger) (*workflow.Service, error) {
		return workflow.NewService(workflow.Options{
			ServerName:   cfg.ServerName,
			Version:      cfg.Version,
			BOMDirectory: cfg.BOMDirectory,
			TemplatePath: cfg.TemplatePath,
			MaxFileSize:  cfg.MaxFileSize,
			Pages:        onePage{},
			Conditioner:  preprocess.New(preprocess.DefaultOptions()),
			Reader:       scriptedOCR{},
			Logger:       logger,
		})
	}
	t.Cleanup(func() { newService = old })
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "USAGE:")

	err = run(context.Background(), []string{"scan"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "scan"`)

	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "bom_review extract")
}

func TestRun_ExtractHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"extract", "--help"}, &stdout, &stderr)
	require.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, stderr.String(), "fails on pages without one")
	assert.Contains(t, stderr.String(), "--rasterizer")
}

func TestRun_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "extract without file", args: []string{"extract"}, wantErr: "exactly one BOM PDF"},
		{name: "generate without file", args: []string{"generate", "--template", "t.pdf"}, wantErr: "exactly one items JSON"},
		{name: "generate without template", args: []string{"generate", "items.json"}, wantErr: "--template is required"},
		{name: "unknown flag", args: []string{"extract", "--nope", "a.pdf"}, wantErr: "unknown flag"},
	}

	t.Setenv("BOM_READER_TEMPLATE", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_ExtractReviewGenerate(t *testing.T) {
	useScriptedService(t)
	dir := t.TempDir()
	source := testutil.WritePDF(t, dir, "kit.pdf", "")
	template := testutil.WritePDF(t, t.TempDir(), "dd1750.pdf", "")
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"extract", "--xlsx", "review.xlsx", source}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "FIELD RADIO SET")
	assert.Contains(t, out, "Items written to")
	assert.FileExists(t, filepath.Join(dir, "review.xlsx"))

	itemsPath := filepath.Join(dir, "kit_items.json")
	data, err := os.ReadFile(itemsPath)
	require.NoError(t, err)
	items, err := bom.DecodeItems(data)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Unreviewed items are refused before anything is written.
	stdout.Reset()
	stderr.Reset()
	err = run(ctx, []string{"generate", "--template", template, "--out", "kit_1750.pdf", itemsPath}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 items still need review")
	assert.Contains(t, stderr.String(), "ANTENNA")
	assert.NoFileExists(t, filepath.Join(dir, "kit_1750.pdf"))

	for i := range items {
		items[i].Verify()
	}
	reviewed, err := bom.EncodeItems(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(itemsPath, reviewed, 0o644))

	stdout.Reset()
	err = run(ctx, []string{"generate", "--template", template, "--out", "kit_1750.pdf", itemsPath}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "(2 items, 1 pages)")
	assert.FileExists(t, filepath.Join(dir, "kit_1750.pdf"))
}

func TestRenderItems(t *testing.T) {
	items := bom.Items{
		{LineNo: 1, Description: "FIELD RADIO SET", NSN: "123456789", Qty: 2,
			DescriptionConfidence: 90, NSNConfidence: 90, QtyConfidence: 90,
			NeedsReview: true, ReviewNotes: []string{"Verify quantity"}},
		{LineNo: 2, Description: "ANTENNA", NSN: "987654321", Qty: 1,
			DescriptionConfidence: 100, NSNConfidence: 100, QtyConfidence: 100},
	}

	var buf bytes.Buffer
	renderItems(&buf, items)
	out := buf.String()

	assert.Contains(t, out, "FIELD RADIO SET")
	assert.Contains(t, out, "Verify quantity")
	assert.Contains(t, out, "90%")
	assert.Contains(t, out, "ok")
	assert.Len(t, pendingOnly(items), 1)
}
