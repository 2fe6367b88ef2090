// Package workflow wires the extraction pipeline, the review gate and the
// DD1750 generator behind request/result calls used by the MCP tools and
// the CLI.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/extract"
	"github.com/a3tai/mcp-bom-reader/internal/form"
	"github.com/a3tai/mcp-bom-reader/internal/pdf"
	"github.com/a3tai/mcp-bom-reader/internal/pdf/security"
)

const (
	// DefaultDocumentLimit caps the directory listing in ServerInfo.
	DefaultDocumentLimit = 100
	// listTimeout bounds the directory scan in ServerInfo.
	listTimeout = 5 * time.Second

	outputFilePerm = 0o644
	outputDirPerm  = 0o750
)

// Options configures a Service. Pages, Conditioner and Reader are required.
type Options struct {
	ServerName   string
	Version      string
	BOMDirectory string
	TemplatePath string
	MaxFileSize  int64

	Pages       extract.PageSource
	Conditioner extract.Conditioner
	Reader      extract.TextReader
	Compositor  form.Compositor // pdfcpu when nil

	Logger *zap.Logger
}

// Service handles BOM operations by orchestrating the pipeline components.
type Service struct {
	opts       Options
	paths      *security.PathValidator
	validator  *pdf.Validator
	classifier *pdf.FormatClassifier
	extractor  *extract.Extractor
	generator  *form.Generator
	logger     *zap.Logger
	newRunID   func() string
}

// NewService creates a new BOM service with all components.
func NewService(opts Options) (*Service, error) {
	if opts.Pages == nil || opts.Conditioner == nil || opts.Reader == nil {
		return nil, fmt.Errorf("page source, conditioner and reader are required")
	}
	paths, err := security.NewPathValidator(opts.BOMDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		opts:       opts,
		paths:      paths,
		validator:  pdf.NewValidator(opts.MaxFileSize),
		classifier: pdf.NewFormatClassifier(logger.Named("classifier")),
		extractor:  extract.NewExtractor(opts.Pages, opts.Conditioner, opts.Reader, logger.Named("extract")),
		generator:  form.NewGenerator(opts.Compositor, logger.Named("form")),
		logger:     logger,
		newRunID:   uuid.NewString,
	}, nil
}

// Extract runs OCR extraction on a BOM document and returns the review
// envelope. Every returned item is pending review.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	if req.StartPage < 0 {
		return nil, bom.NewInputError("extract", fmt.Sprintf("start page must be >= 0, got %d", req.StartPage), nil)
	}
	path, err := s.resolve("extract", req.Path)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDocument(path); err != nil {
		return nil, err
	}

	runID := s.newRunID()
	log := s.logger.With(zap.String("run_id", runID), zap.String("path", path))

	format := s.classifier.ClassifyFile(path)
	log.Info("extraction started", zap.String("format", string(format)), zap.Int("start_page", req.StartPage))

	items, err := s.extractor.Extract(ctx, path, req.StartPage)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		log.Warn("no items found")
	}

	return &ExtractResult{
		RunID:       runID,
		Path:        path,
		Format:      format,
		TotalItems:  len(items),
		Items:       items,
		Report:      bom.Report(items),
		NeedsReview: items.AllPending(),
	}, nil
}

// Report renders the plain-text review report for items.
func (s *Service) Report(items bom.Items) string {
	return bom.Report(items)
}

// Generate renders reviewed items onto the DD1750 template and writes the
// result. Pending items fail with *bom.GateError before any file is touched.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := bom.RequireVerified(req.Items); err != nil {
		return nil, err
	}

	templatePath, err := s.templatePath(req.TemplatePath)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateTemplate(templatePath); err != nil {
		return nil, err
	}
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, bom.NewInputError("generate", "cannot read template", err)
	}

	runID := s.newRunID()
	outPath, err := s.outputPath("generate", req.OutputPath, "DD1750_"+shortID(runID)+".pdf")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(req.Items, template)
	if err != nil {
		return nil, err
	}
	size, err := writeOutput(outPath, result.PDF)
	if err != nil {
		return nil, err
	}

	s.logger.Info("DD1750 written",
		zap.String("run_id", runID),
		zap.String("output", outPath),
		zap.Int("items", result.ItemCount),
		zap.Int("pages", result.PageCount),
		zap.Bool("fallback", result.Fallback),
	)
	return &GenerateResult{
		RunID:      runID,
		OutputPath: outPath,
		ItemCount:  result.ItemCount,
		PageCount:  result.PageCount,
		Size:       size,
		Fallback:   result.Fallback,
	}, nil
}

// ExportWorksheet writes items to an XLSX review worksheet. Pending items are
// allowed; the worksheet is a review aid.
func (s *Service) ExportWorksheet(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	runID := s.newRunID()
	outPath, err := s.outputPath("export", req.OutputPath, "bom_review_"+shortID(runID)+".xlsx")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := bom.ExportWorksheet(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to build worksheet: %w", err)
	}
	size, err := writeOutput(outPath, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info("review worksheet written", zap.String("run_id", runID), zap.String("output", outPath), zap.Int("items", len(req.Items)))
	return &ExportResult{RunID: runID, OutputPath: outPath, ItemCount: len(req.Items), Size: size}, nil
}

// Classify reports whether a document carries extractable text.
func (s *Service) Classify(req ClassifyRequest) (*ClassifyResult, error) {
	path, err := s.resolve("classify", req.Path)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDocument(path); err != nil {
		return nil, err
	}
	return &ClassifyResult{Path: path, Format: s.classifier.ClassifyFile(path)}, nil
}

// ServerInfo returns the configuration summary and the BOM documents found
// in the configured directory. A slow or failing scan yields an empty
// listing rather than an error.
func (s *Service) ServerInfo(ctx context.Context) *ServerInfoResult {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	docs, truncated, err := ListDocuments(ctx, s.paths.Root(), DefaultDocumentLimit)
	if err != nil {
		s.logger.Warn("directory scan failed", zap.String("dir", s.paths.Root()), zap.Error(err))
		docs, truncated = []DocumentInfo{}, false
	}

	return &ServerInfoResult{
		ServerName:   s.opts.ServerName,
		Version:      s.opts.Version,
		BOMDirectory: s.paths.Root(),
		TemplatePath: s.opts.TemplatePath,
		MaxFileSize:  s.opts.MaxFileSize,
		Documents:    docs,
		Truncated:    truncated,
	}
}

func (s *Service) resolve(op, path string) (string, error) {
	resolved, err := s.paths.Resolve(path)
	if err != nil {
		return "", bom.NewInputError(op, "security validation failed", err)
	}
	return resolved, nil
}

// templatePath picks the request template (sandboxed) or the configured
// one. An empty result is reported by the template validator.
func (s *Service) templatePath(requested string) (string, error) {
	if requested == "" {
		return s.opts.TemplatePath, nil
	}
	return s.resolve("generate", requested)
}

func (s *Service) outputPath(op, requested, fallback string) (string, error) {
	if requested == "" {
		requested = fallback
	}
	path, err := s.resolve(op, requested)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", bom.NewInputError(op, "output path is a directory", fmt.Errorf("%s", path))
	}
	return path, nil
}

func writeOutput(path string, data []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), outputDirPerm); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, outputFilePerm); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return int64(len(data)), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
