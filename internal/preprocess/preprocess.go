// Package preprocess conditions scanned page rasters for OCR.
//
// The stages run in a fixed order on OpenCV matrices: grayscale, CLAHE
// contrast equalization, non-local means denoising and Otsu binarization.
// Matrices are closed before Process returns, so nothing outlives the page.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Default conditioning parameters, tuned for 300 DPI scans.
const (
	DefaultClipLimit       = 2.0
	DefaultTileGrid        = 8
	DefaultDenoiseStrength = 10
	DefaultTemplateWindow  = 7
	DefaultSearchWindow    = 21
)

// ErrEmptyImage is returned for nil or zero-area input.
var ErrEmptyImage = errors.New("preprocess: empty image")

// Options controls the conditioning stages.
type Options struct {
	ClipLimit float64
	TileGridX int
	TileGridY int

	// DenoiseStrength is the filter strength h of the non-local means
	// denoiser. A negative value disables denoising.
	DenoiseStrength float32
	TemplateWindow  int
	SearchWindow    int
}

// DefaultOptions returns the stock conditioning parameters.
func DefaultOptions() Options {
	return Options{
		ClipLimit:       DefaultClipLimit,
		TileGridX:       DefaultTileGrid,
		TileGridY:       DefaultTileGrid,
		DenoiseStrength: DefaultDenoiseStrength,
		TemplateWindow:  DefaultTemplateWindow,
		SearchWindow:    DefaultSearchWindow,
	}
}

// Preprocessor turns an RGB page raster into a binary image.
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor. Zero-valued options fall back to defaults.
func New(opts Options) *Preprocessor {
	def := DefaultOptions()
	if opts.ClipLimit <= 0 {
		opts.ClipLimit = def.ClipLimit
	}
	if opts.TileGridX <= 0 {
		opts.TileGridX = def.TileGridX
	}
	if opts.TileGridY <= 0 {
		opts.TileGridY = def.TileGridY
	}
	if opts.DenoiseStrength == 0 {
		opts.DenoiseStrength = def.DenoiseStrength
	}
	if opts.TemplateWindow <= 0 {
		opts.TemplateWindow = def.TemplateWindow
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = def.SearchWindow
	}
	return &Preprocessor{opts: opts}
}

// Options returns the effective options.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Denoises reports whether the denoising stage runs.
func (p *Preprocessor) Denoises() bool {
	return p.opts.DenoiseStrength > 0
}

// Process runs all stages and returns a 0/255 image.
func (p *Preprocessor) Process(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	clahe := gocv.NewCLAHEWithParams(p.opts.ClipLimit, image.Pt(p.opts.TileGridX, p.opts.TileGridY))
	defer clahe.Close()
	contrast := gocv.NewMat()
	defer contrast.Close()
	clahe.Apply(gray, &contrast)

	denoised := contrast
	if p.Denoises() {
		nlm := gocv.NewMat()
		defer nlm.Close()
		gocv.FastNlMeansDenoisingWithParams(contrast, &nlm, p.opts.DenoiseStrength, p.opts.TemplateWindow, p.opts.SearchWindow)
		denoised = nlm
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(denoised, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	return matToGray(binary)
}

// grayMat loads img as a single-channel 8-bit matrix.
func grayMat(img image.Image) (gocv.Mat, error) {
	if g, ok := img.(*image.Gray); ok {
		return gocv.NewMatFromBytes(g.Bounds().Dy(), g.Bounds().Dx(), gocv.MatTypeCV8UC1, Grayscale(g).Pix)
	}

	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("preprocess: load image: %w", err)
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, errors.New("preprocess: empty result")
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("preprocess: export image: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	return Grayscale(img), nil
}

// Grayscale converts img to luma using the ITU-R 601 weights. The result is
// rebased so its bounds start at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return out
}
