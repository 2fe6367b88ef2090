package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/app"
	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/config"
	"github.com/a3tai/mcp-bom-reader/internal/logger"
	"github.com/a3tai/mcp-bom-reader/internal/pdf/raster"
	"github.com/a3tai/mcp-bom-reader/internal/workflow"
)

// newService is replaced in tests to avoid the Tesseract engine.
var newService = app.NewService

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("command required")
	}

	switch args[0] {
	case "extract":
		return runExtract(ctx, args[1:], stdout, stderr)
	case "generate":
		return runGenerate(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "BOM Review - OCR a packing list and produce a DD1750")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  bom_review extract [OPTIONS] <bom.pdf>")
	fmt.Fprintln(w, "  bom_review generate [OPTIONS] <items.json>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WORKFLOW:")
	fmt.Fprintln(w, "  1. extract writes <bom>_items.json with every item marked needs_review")
	fmt.Fprintln(w, "  2. correct the file and set needs_review to false on each item")
	fmt.Fprintln(w, "  3. generate fills the DD1750 template once nothing is pending")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  bom_review extract --xlsx review.xlsx scans/kit.pdf")
	fmt.Fprintln(w, "  bom_review generate --template forms/dd1750.pdf --out kit_1750.pdf scans/kit_items.json")
}

// commonFlags registers the options shared by both commands.
func commonFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.BOMDirectory, "dir", "", "Working directory (defaults to the input file's directory)")
	fs.StringVar(&cfg.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}

// prepare validates cfg, defaulting the working directory to the input's
// and returning input relative to it.
func prepare(cfg *config.Config, input string) (string, *zap.Logger, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", nil, fmt.Errorf("invalid path %s: %w", input, err)
	}
	if cfg.BOMDirectory == "" {
		cfg.BOMDirectory = filepath.Dir(abs)
	}
	if cfg.TemplatePath != "" {
		if cfg.TemplatePath, err = filepath.Abs(cfg.TemplatePath); err != nil {
			return "", nil, fmt.Errorf("invalid template path: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return "", nil, err
	}
	return abs, log, nil
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.DefaultConfig()
	var (
		itemsOut  string
		xlsxOut   string
		startPage int
	)

	fs := newFlagSet("extract", stderr)
	commonFlags(fs, cfg)
	fs.StringVarP(&itemsOut, "out", "o", "", "Items JSON output (default <bom>_items.json)")
	fs.StringVar(&xlsxOut, "xlsx", "", "Also write a review worksheet to this path")
	fs.IntVar(&startPage, "start-page", 0, "0-based page to start at")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "Rasterization DPI")
	fs.StringVar(&cfg.OCRLanguage, "ocr-lang", cfg.OCRLanguage, "Tesseract language(s), '+' separated")
	fs.StringVar(&cfg.Rasterizer, "rasterizer", cfg.Rasterizer, raster.KindUsage)
	fs.StringVar(&cfg.PdftoppmPath, "pdftoppm", "", "pdftoppm binary when --rasterizer=pdftoppm")
	fs.StringVar(&cfg.TessdataPrefix, "tessdata", "", "Tesseract data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("extract needs exactly one BOM PDF")
	}

	input, log, err := prepare(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	result, err := svc.Extract(ctx, workflow.ExtractRequest{Path: input, StartPage: startPage})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s (%s)\n", result.Path, result.Format)
	renderItems(stdout, result.Items)
	fmt.Fprintln(stdout, result.Report)

	if itemsOut == "" {
		itemsOut = strings.TrimSuffix(input, filepath.Ext(input)) + "_items.json"
	}
	data, err := bom.EncodeItems(result.Items)
	if err != nil {
		return err
	}
	if err := os.WriteFile(itemsOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write items: %w", err)
	}
	fmt.Fprintf(stdout, "Items written to %s\n", itemsOut)

	if xlsxOut != "" {
		exported, err := svc.ExportWorksheet(ctx, workflow.ExportRequest{
			Items:      result.Items,
			OutputPath: xlsxOut,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Worksheet written to %s\n", exported.OutputPath)
	}
	return nil
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.DefaultConfig()
	var out string

	fs := newFlagSet("generate", stderr)
	commonFlags(fs, cfg)
	fs.StringVarP(&out, "out", "o", "", "DD1750 output path (default DD1750_<run>.pdf)")
	fs.StringVar(&cfg.TemplatePath, "template", os.Getenv("BOM_READER_TEMPLATE"), "Blank DD1750 template")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("generate needs exactly one items JSON file")
	}
	if cfg.TemplatePath == "" {
		return errors.New("--template is required")
	}

	input, log, err := prepare(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read items: %w", err)
	}
	items, err := bom.DecodeItems(data)
	if err != nil {
		return err
	}

	// Refuse early so a pending list never needs the OCR engine.
	if err := bom.RequireVerified(items); err != nil {
		renderItems(stderr, pendingOnly(items))
		return err
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	result, err := svc.Generate(ctx, workflow.GenerateRequest{Items: items, OutputPath: out})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "DD1750 written to %s (%d items, %d pages)\n",
		result.OutputPath, result.ItemCount, result.PageCount)
	if result.Fallback {
		fmt.Fprintln(stdout, "WARNING: overlay failed, output is the unfilled template")
	}
	return nil
}

func pendingOnly(items bom.Items) bom.Items {
	var pending bom.Items
	for _, it := range items {
		if it.NeedsReview {
			pending = append(pending, it)
		}
	}
	return pending
}

// renderItems prints a summary table of items.
func renderItems(w io.Writer, items bom.Items) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Line", "Description", "NSN", "Qty", "Conf", "Review"})
	for _, it := range items {
		review := "ok"
		if it.NeedsReview {
			review = strings.Join(it.ReviewNotes, "; ")
		}
		tw.AppendRow(table.Row{
			it.LineNo,
			text.Trim(it.Description, 40),
			it.NSN,
			it.Qty,
			fmt.Sprintf("%.0f%%", it.OverallConfidence()),
			review,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Items", len(items)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, WidthMax: 48},
	})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
