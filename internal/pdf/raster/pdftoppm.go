package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *zap.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	fields := []zap.Field{
		zap.String("cmd", name),
		zap.String("args", strings.Join(args, " ")),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		r.logger.Error("exec failed", append(fields, zap.Error(err), zap.String("stderr", truncate(errb.String(), 8<<10)))...)
	} else {
		r.logger.Debug("exec ok", fields...)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Pdftoppm renders pages with poppler's pdftoppm. It handles documents whose
// pages are vector drawn or composed of several images.
type Pdftoppm struct {
	binary string
	dpi    int
	runner Runner
	logger *zap.Logger
}

// NewPdftoppm returns a rasterizer running binary (default "pdftoppm").
func NewPdftoppm(binary string, dpi int, logger *zap.Logger) *Pdftoppm {
	if logger == nil {
		logger = zap.NewNop()
	}
	if binary == "" {
		binary = "pdftoppm"
	}
	return &Pdftoppm{binary: binary, dpi: dpi, runner: execRunner{logger: logger}, logger: logger}
}

// PageCount returns the number of pages in the document.
func (p *Pdftoppm) PageCount(ctx context.Context, path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// RasterizePage renders a single page to PNG and decodes it.
func (p *Pdftoppm) RasterizePage(ctx context.Context, path string, page int) (image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("page %d out of range", page)
	}

	tmpDir, err := os.MkdirTemp("", "bom-page-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("failed to remove temp dir", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	// pdftoppm -r 300 -png -f N -l N -singlefile <in.pdf> <tmp/page>
	_, errb, err := p.runner.Run(ctx, p.binary,
		"-r", strconv.Itoa(p.dpi), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w: %s", page, err, strings.TrimSpace(string(errb)))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d: %w", page, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page %d: %w", page, err)
	}
	return img, nil
}
