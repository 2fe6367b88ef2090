package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/form"
	"github.com/a3tai/mcp-bom-reader/internal/ocr"
	"github.com/a3tai/mcp-bom-reader/internal/pdf"
	"github.com/a3tai/mcp-bom-reader/internal/preprocess"
	"github.com/a3tai/mcp-bom-reader/internal/testutil"
)

type fakePages struct {
	count int
	err   error
}

func (f *fakePages) PageCount(ctx context.Context, path string) (int, error) {
	return f.count, f.err
}

func (f *fakePages) RasterizePage(ctx context.Context, path string, page int) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, page, 1)), nil
}

type grayOnly struct{}

func (grayOnly) Process(img image.Image) (*image.Gray, error) {
	return preprocess.Grayscale(img), nil
}

// fakeReader returns the same recognized tokens for every page.
type fakeReader struct {
	tokens []ocr.Token
}

func (f *fakeReader) Recognize(ctx context.Context, img image.Image) (ocr.Page, error) {
	return ocr.Assemble(f.tokens), nil
}

type fakeCompositor struct {
	pages [][]form.DrawOp
}

func (f *fakeCompositor) Compose(template []byte, pages [][]form.DrawOp) ([]byte, error) {
	f.pages = pages
	return []byte("%PDF-filled"), nil
}

func (f *fakeCompositor) FirstPage(template []byte) ([]byte, error) {
	return []byte("%PDF-blank"), nil
}

func radioRow() []ocr.Token {
	words := []string{"1", "FIELD", "RADIO", "SET", "123456789", "Auth", "Qty:", "2"}
	tokens := make([]ocr.Token, len(words))
	for i, w := range words {
		tokens[i] = ocr.Token{Text: w, Confidence: 92, Line: 0}
	}
	return tokens
}

type fixture struct {
	dir        string
	template   string
	compositor *fakeCompositor
	pages      *fakePages
	svc        *Service
}

func newFixture(t *testing.T, tokens []ocr.Token) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:        dir,
		template:   testutil.WritePDF(t, t.TempDir(), "blank_1750.pdf", ""),
		compositor: &fakeCompositor{},
		pages:      &fakePages{count: 1},
	}

	svc, err := NewService(Options{
		ServerName:   "mcp-bom-reader",
		Version:      "test",
		BOMDirectory: dir,
		TemplatePath: f.template,
		MaxFileSize:  1 << 20,
		Pages:        f.pages,
		Conditioner:  grayOnly{},
		Reader:       &fakeReader{tokens: tokens},
		Compositor:   f.compositor,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	svc.newRunID = func() string { return "0f8fad5b-d9cb-469f-a165-70867728950e" }
	f.svc = svc
	return f
}

func verified(items bom.Items) bom.Items {
	out := items.Clone()
	for i := range out {
		out[i].Verify()
	}
	return out
}

func TestNewService_RequiresPipeline(t *testing.T) {
	_, err := NewService(Options{BOMDirectory: t.TempDir()})
	assert.Error(t, err)
}

func TestService_Extract(t *testing.T) {
	f := newFixture(t, radioRow())
	testutil.WritePDF(t, f.dir, "kit.pdf", "")

	res, err := f.svc.Extract(context.Background(), ExtractRequest{Path: "kit.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", res.RunID)
	assert.Equal(t, filepath.Join(f.dir, "kit.pdf"), res.Path)
	assert.Equal(t, pdf.FormatImageBased, res.Format)
	assert.Equal(t, 1, res.TotalItems)
	assert.True(t, res.NeedsReview)

	require.Len(t, res.Items, 1)
	it := res.Items[0]
	assert.Equal(t, "123456789", it.NSN)
	assert.Equal(t, "FIELD RADIO SET", it.Description)
	assert.Equal(t, 2, it.Qty)
	assert.Equal(t, []string{"Extracted via OCR - Manual verification required"}, it.ReviewNotes)

	assert.Equal(t, bom.Report(res.Items), res.Report)
	assert.Contains(t, res.Report, "Total Items Extracted: 1")
}

func TestService_Extract_NoItems(t *testing.T) {
	f := newFixture(t, nil)
	testutil.WritePDF(t, f.dir, "cover.pdf", "")

	res, err := f.svc.Extract(context.Background(), ExtractRequest{Path: "cover.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalItems)
	assert.NotNil(t, res.Items)
	assert.Contains(t, res.Report, "Total Items Extracted: 0")
}

func TestService_Extract_RecognitionFailureDegrades(t *testing.T) {
	f := newFixture(t, radioRow())
	f.pages.err = errors.New("xref stream corrupt")
	testutil.WritePDF(t, f.dir, "kit.pdf", "")

	res, err := f.svc.Extract(context.Background(), ExtractRequest{Path: "kit.pdf"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestService_Extract_InputErrors(t *testing.T) {
	f := newFixture(t, radioRow())
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "empty.pdf"), nil, 0o644))
	outside := testutil.WritePDF(t, t.TempDir(), "outside.pdf", "")

	tests := []struct {
		name string
		req  ExtractRequest
	}{
		{name: "missing file", req: ExtractRequest{Path: "missing.pdf"}},
		{name: "not a pdf", req: ExtractRequest{Path: "notes.txt"}},
		{name: "empty pdf", req: ExtractRequest{Path: "empty.pdf"}},
		{name: "outside directory", req: ExtractRequest{Path: outside}},
		{name: "traversal", req: ExtractRequest{Path: "../outside.pdf"}},
		{name: "negative start page", req: ExtractRequest{Path: "kit.pdf", StartPage: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Extract(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, bom.ErrorKindInput, bom.KindOf(err))
		})
	}
}

func TestService_Extract_Cancelled(t *testing.T) {
	f := newFixture(t, radioRow())
	testutil.WritePDF(t, f.dir, "kit.pdf", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Extract(ctx, ExtractRequest{Path: "kit.pdf"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Generate(t *testing.T) {
	f := newFixture(t, radioRow())
	items := verified(bom.Items{
		{LineNo: 1, Description: "FIELD RADIO SET", NSN: "123456789", Qty: 2},
		{LineNo: 2, Description: "HANDSET", NSN: "", Qty: 1},
	})

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Items: items, OutputPath: "out/kit_dd1750.pdf"})
	require.NoError(t, err)

	want := filepath.Join(f.dir, "out", "kit_dd1750.pdf")
	assert.Equal(t, want, res.OutputPath)
	assert.Equal(t, 2, res.ItemCount)
	assert.Equal(t, 1, res.PageCount)
	assert.False(t, res.Fallback)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-filled", string(data))
	assert.Equal(t, int64(len(data)), res.Size)
	require.Len(t, f.compositor.pages, 1)
}

func TestService_Generate_DefaultOutputName(t *testing.T) {
	f := newFixture(t, radioRow())

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Items: bom.Items{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "DD1750_0f8fad5b.pdf"), res.OutputPath)
	assert.Equal(t, 0, res.ItemCount)
	assert.Equal(t, 1, res.PageCount)
}

func TestService_Generate_ReviewGate(t *testing.T) {
	f := newFixture(t, radioRow())
	items := bom.Items{
		{LineNo: 1, Description: "FIELD RADIO SET", NSN: "123456789", Qty: 2, NeedsReview: true},
		{LineNo: 2, Description: "HANDSET", Qty: 1},
	}

	res, err := f.svc.Generate(context.Background(), GenerateRequest{Items: items, OutputPath: "blocked.pdf"})
	require.Error(t, err)
	assert.Nil(t, res)

	var gate *bom.GateError
	require.True(t, errors.As(err, &gate))
	assert.Equal(t, 1, gate.Pending)
	assert.Equal(t, "1 items still need review. Please verify all items before generating DD1750.", err.Error())

	_, statErr := os.Stat(filepath.Join(f.dir, "blocked.pdf"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Nil(t, f.compositor.pages)
}

func TestService_Generate_TemplateErrors(t *testing.T) {
	f := newFixture(t, radioRow())
	f.svc.opts.TemplatePath = ""
	testutil.WritePDF(t, f.dir, "blank.pdf", "")
	outside := testutil.WritePDF(t, t.TempDir(), "other.pdf", "")

	tests := []struct {
		name     string
		req      GenerateRequest
		wantText string
	}{
		{name: "no template configured", req: GenerateRequest{}, wantText: "missing required files"},
		{name: "missing template", req: GenerateRequest{TemplatePath: "nope.pdf"}, wantText: "invalid template"},
		{name: "template outside directory", req: GenerateRequest{TemplatePath: outside}, wantText: "security validation failed"},
		{name: "output outside directory", req: GenerateRequest{TemplatePath: "blank.pdf", OutputPath: "../x.pdf"}, wantText: "security validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, bom.ErrorKindInput, bom.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestService_ExportWorksheet(t *testing.T) {
	f := newFixture(t, radioRow())
	items := bom.Items{{LineNo: 1, Description: "FIELD RADIO SET", NSN: "123456789", Qty: 2, NeedsReview: true, ReviewNotes: []string{"check"}}}

	res, err := f.svc.ExportWorksheet(context.Background(), ExportRequest{Items: items})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "bom_review_0f8fad5b.xlsx"), res.OutputPath)
	assert.Equal(t, 1, res.ItemCount)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
}

func TestService_ExportWorksheet_OutputIsDirectory(t *testing.T) {
	f := newFixture(t, radioRow())
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "sheets"), 0o755))

	_, err := f.svc.ExportWorksheet(context.Background(), ExportRequest{OutputPath: "sheets"})
	require.Error(t, err)
	assert.Equal(t, bom.ErrorKindInput, bom.KindOf(err))
}

func TestService_Classify(t *testing.T) {
	f := newFixture(t, nil)
	testutil.WritePDF(t, f.dir, "listing.pdf",
		"COMPONENT LISTING / HAND RECEIPT\nEND ITEM: RADIO SET AN/PRC-152 WITH ANCILLARY EQUIPMENT")
	testutil.WritePDF(t, f.dir, "scan.pdf", "")

	res, err := f.svc.Classify(ClassifyRequest{Path: "listing.pdf"})
	require.NoError(t, err)
	assert.Equal(t, pdf.FormatTextBased, res.Format)

	res, err = f.svc.Classify(ClassifyRequest{Path: "scan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, pdf.FormatImageBased, res.Format)

	_, err = f.svc.Classify(ClassifyRequest{Path: "missing.pdf"})
	assert.Equal(t, bom.ErrorKindInput, bom.KindOf(err))
}

func TestService_ServerInfo(t *testing.T) {
	f := newFixture(t, nil)
	testutil.WritePDF(t, f.dir, "kit.pdf", "")

	info := f.svc.ServerInfo(context.Background())
	assert.Equal(t, "mcp-bom-reader", info.ServerName)
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, f.dir, info.BOMDirectory)
	assert.Equal(t, f.template, info.TemplatePath)
	require.Len(t, info.Documents, 1)
	assert.Equal(t, "kit.pdf", info.Documents[0].Name)
	assert.False(t, info.Truncated)
}
