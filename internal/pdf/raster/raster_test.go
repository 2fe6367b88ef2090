package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/tiff"

	"github.com/a3tai/mcp-bom-reader/internal/testutil"
)

func TestNew(t *testing.T) {
	r, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Embedded{}, r)
	assert.Equal(t, DefaultDPI, r.(*Embedded).dpi)

	r, err = New(Config{Kind: KindPdftoppm, DPI: 150}, nil)
	require.NoError(t, err)
	require.IsType(t, &Pdftoppm{}, r)
	assert.Equal(t, "pdftoppm", r.(*Pdftoppm).binary)
	assert.Equal(t, 150, r.(*Pdftoppm).dpi)

	_, err = New(Config{Kind: "ghostscript"}, nil)
	assert.Error(t, err)
}

func testScan(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(w/2, h/2, color.Gray{Y: 0})
	return img
}

func TestDecodeScan(t *testing.T) {
	src := testScan(8, 6)

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	var tiffBuf bytes.Buffer
	require.NoError(t, tiff.Encode(&tiffBuf, src, nil))

	tests := []struct {
		name     string
		fileType string
		data     []byte
		wantErr  bool
	}{
		{name: "png", fileType: "png", data: pngBuf.Bytes()},
		{name: "tiff", fileType: "tif", data: tiffBuf.Bytes()},
		{name: "unsupported", fileType: "jp2", data: []byte{0}, wantErr: true},
		{name: "corrupt", fileType: "png", data: []byte("not a png"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := decodeScan(tt.fileType, bytes.NewReader(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, src.Bounds(), img.Bounds())
		})
	}
}

func TestLargestImage(t *testing.T) {
	_, ok := largestImage(nil)
	assert.False(t, ok)

	images := map[int]model.Image{
		3: {Name: "logo", Width: 40, Height: 40},
		7: {Name: "scan", Width: 2550, Height: 3300},
		9: {Name: "stamp", Width: 300, Height: 100},
	}
	best, ok := largestImage(images)
	require.True(t, ok)
	assert.Equal(t, "scan", best.Name)
}

func TestScaleToDPI(t *testing.T) {
	// One inch by half an inch at 40 DPI.
	page := types.Dim{Width: 72, Height: 36}

	out := scaleToDPI(testScan(20, 10), page, 40)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())

	native := testScan(40, 20)
	assert.Same(t, native, scaleToDPI(native, page, 40))
	assert.Same(t, native, scaleToDPI(native, types.Dim{}, 40))
}

type fakeRunner struct {
	args []string
	img  image.Image
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = args
	if f.err != nil {
		return nil, []byte("Syntax Error: broken xref"), f.err
	}
	prefix := args[len(args)-1]
	out, err := os.Create(prefix + ".png")
	if err != nil {
		return nil, nil, err
	}
	defer out.Close()
	return nil, nil, png.Encode(out, f.img)
}

func TestPdftoppm_RasterizePage(t *testing.T) {
	runner := &fakeRunner{img: testScan(10, 12)}
	p := NewPdftoppm("", 300, zaptest.NewLogger(t))
	p.runner = runner

	img, err := p.RasterizePage(context.Background(), "bom.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 12), img.Bounds())
	assert.Equal(t, []string{"-r", "300", "-png", "-f", "3", "-l", "3", "-singlefile", "bom.pdf"}, runner.args[:9])

	_, err = p.RasterizePage(context.Background(), "bom.pdf", 0)
	assert.Error(t, err)
}

func TestPdftoppm_RunnerFailure(t *testing.T) {
	p := NewPdftoppm("/opt/poppler/bin/pdftoppm", 300, zaptest.NewLogger(t))
	p.runner = &fakeRunner{err: errors.New("exit status 1")}

	_, err := p.RasterizePage(context.Background(), "bom.pdf", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken xref")
}

func TestEmbedded_MissingFile(t *testing.T) {
	e := NewEmbedded(300, zaptest.NewLogger(t))

	_, err := e.PageCount(context.Background(), "/nonexistent/bom.pdf")
	assert.Error(t, err)

	_, err = e.RasterizePage(context.Background(), "/nonexistent/bom.pdf", 1)
	assert.Error(t, err)
}

func TestEmbedded_ReusesParsedDocument(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePDF(t, dir, "kit.pdf", "", "")
	e := NewEmbedded(300, zaptest.NewLogger(t))
	ctx := context.Background()

	n, err := e.PageCount(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for page := 1; page <= 2; page++ {
		_, err := e.RasterizePage(ctx, path, page)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no embedded scan image")
	}
	_, err = e.RasterizePage(ctx, path, 3)
	assert.Contains(t, err.Error(), "out of range")
	assert.Equal(t, 1, e.parses, "one parse serves the whole run")

	// A rewritten file is parsed again.
	testutil.WritePDF(t, dir, "kit.pdf", "", "", "")
	n, err = e.PageCount(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, e.parses)

	other := testutil.WritePDF(t, dir, "other.pdf", "")
	n, err = e.PageCount(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, e.parses)
}
