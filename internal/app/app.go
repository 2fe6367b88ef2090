// Package app assembles the production pipeline from configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/config"
	"github.com/a3tai/mcp-bom-reader/internal/ocr"
	"github.com/a3tai/mcp-bom-reader/internal/ocr/tesseract"
	"github.com/a3tai/mcp-bom-reader/internal/pdf/raster"
	"github.com/a3tai/mcp-bom-reader/internal/preprocess"
	"github.com/a3tai/mcp-bom-reader/internal/workflow"
)

// NewService builds the workflow service with the configured rasterizer,
// the image preprocessor and the Tesseract engine.
func NewService(cfg *config.Config, logger *zap.Logger) (*workflow.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pages, err := raster.New(raster.Config{
		Kind:         cfg.Rasterizer,
		DPI:          cfg.DPI,
		PdftoppmPath: cfg.PdftoppmPath,
	}, logger.Named("raster"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rasterizer: %w", err)
	}

	engine := tesseract.New(tesseract.Config{
		Languages:      cfg.OCRLanguages(),
		DPI:            cfg.DPI,
		TessdataPrefix: cfg.TessdataPrefix,
	})

	svc, err := workflow.NewService(workflow.Options{
		ServerName:   cfg.ServerName,
		Version:      cfg.Version,
		BOMDirectory: cfg.BOMDirectory,
		TemplatePath: cfg.TemplatePath,
		MaxFileSize:  cfg.MaxFileSize,
		Pages:        pages,
		Conditioner:  preprocess.New(preprocess.DefaultOptions()),
		Reader:       ocr.NewRecognizer(engine, logger.Named("ocr")),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create BOM service: %w", err)
	}

	logger.Debug("pipeline assembled",
		zap.String("rasterizer", cfg.Rasterizer),
		zap.Int("dpi", cfg.DPI),
		zap.String("engine", engine.Name()),
		zap.Strings("languages", cfg.OCRLanguages()),
	)
	return svc, nil
}
