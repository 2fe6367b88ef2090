package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-bom-reader/internal/bom"
	"github.com/a3tai/mcp-bom-reader/internal/config"
	"github.com/a3tai/mcp-bom-reader/internal/descriptions"
	"github.com/a3tai/mcp-bom-reader/internal/workflow"
)

// shutdownTimeout bounds the SSE server drain on context cancellation.
const shutdownTimeout = 5 * time.Second

// Service is the workflow surface the tools call into.
type Service interface {
	Extract(ctx context.Context, req workflow.ExtractRequest) (*workflow.ExtractResult, error)
	Report(items bom.Items) string
	Generate(ctx context.Context, req workflow.GenerateRequest) (*workflow.GenerateResult, error)
	ExportWorksheet(ctx context.Context, req workflow.ExportRequest) (*workflow.ExportResult, error)
	Classify(req workflow.ClassifyRequest) (*workflow.ClassifyResult, error)
	ServerInfo(ctx context.Context) *workflow.ServerInfoResult
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   Service
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service Service, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()

	return s, nil
}

const itemsParamDescription = "JSON array of BOM items (as returned by bom_extract), or an object with an \"items\" array"

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExtract,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtract)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the BOM PDF, absolute or relative to the BOM directory"),
		),
		mcp.WithNumber("start_page",
			mcp.Description("0-based index of the first page to process (default 0)"),
		),
	), s.handleExtract)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolReviewReport,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolReviewReport)),
		mcp.WithString("items", mcp.Required(), mcp.Description(itemsParamDescription)),
	), s.handleReviewReport)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolGenerate,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolGenerate)),
		mcp.WithString("items", mcp.Required(), mcp.Description(itemsParamDescription)),
		mcp.WithString("template_path",
			mcp.Description("Blank DD1750 template (uses the configured template if empty)"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the filled form (default DD1750_<run>.pdf in the BOM directory)"),
		),
	), s.handleGenerate)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolClassify,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolClassify)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the BOM PDF, absolute or relative to the BOM directory"),
		),
	), s.handleClassify)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExportWorksheet,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExportWorksheet)),
		mcp.WithString("items", mcp.Required(), mcp.Description(itemsParamDescription)),
		mcp.WithString("output_path",
			mcp.Description("Where to write the workbook (default bom_review_<run>.xlsx in the BOM directory)"),
		),
	), s.handleExportWorksheet)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolServerInfo)),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	startPage, err := optionalInt(request.GetArguments(), "start_page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Extract(ctx, workflow.ExtractRequest{Path: path, StartPage: startPage})
	if err != nil {
		return s.toolError(descriptions.ToolExtract, err), nil
	}

	text, err := formatExtractResult(result)
	if err != nil {
		return s.toolError(descriptions.ToolExtract, err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleReviewReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := requireItems(request)
	if err != nil {
		return s.toolError(descriptions.ToolReviewReport, err), nil
	}
	return mcp.NewToolResultText(s.service.Report(items)), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := requireItems(request)
	if err != nil {
		return s.toolError(descriptions.ToolGenerate, err), nil
	}
	args := request.GetArguments()

	result, err := s.service.Generate(ctx, workflow.GenerateRequest{
		Items:        items,
		TemplatePath: optionalString(args, "template_path"),
		OutputPath:   optionalString(args, "output_path"),
	})
	if err != nil {
		return s.toolError(descriptions.ToolGenerate, err), nil
	}

	return mcp.NewToolResultText(formatGenerateResult(result)), nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Classify(workflow.ClassifyRequest{Path: path})
	if err != nil {
		return s.toolError(descriptions.ToolClassify, err), nil
	}

	text := fmt.Sprintf("Format of %s: %s\n", result.Path, result.Format)
	text += "Extraction runs OCR regardless of format.\n"
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleExportWorksheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := requireItems(request)
	if err != nil {
		return s.toolError(descriptions.ToolExportWorksheet, err), nil
	}

	result, err := s.service.ExportWorksheet(ctx, workflow.ExportRequest{
		Items:      items,
		OutputPath: optionalString(request.GetArguments(), "output_path"),
	})
	if err != nil {
		return s.toolError(descriptions.ToolExportWorksheet, err), nil
	}

	text := fmt.Sprintf("Review worksheet written: %s\n", result.OutputPath)
	text += fmt.Sprintf("Items: %d\n", result.ItemCount)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatServerInfoResult(s.service.ServerInfo(ctx))), nil
}

// toolError logs err and turns it into a tool result the client can act on.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	kind := bom.KindOf(err)
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Stringer("kind", kind), zap.Error(err))
	return mcp.NewToolResultError(userMessage(err))
}

func userMessage(err error) string {
	var gate *bom.GateError
	if errors.As(err, &gate) {
		return gate.Error()
	}
	var e *bom.Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

func requireItems(request mcp.CallToolRequest) (bom.Items, error) {
	raw, ok := request.GetArguments()["items"]
	if !ok || raw == nil {
		return nil, bom.NewInputError("decode_items", "required argument \"items\" not found", nil)
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		// Clients may send the array as structured JSON instead of a string.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, bom.NewInputError("decode_items", "invalid item payload", err)
		}
		data = b
	}
	return bom.DecodeItems(data)
}

func optionalString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func optionalInt(args map[string]any, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// Formatting methods
func formatExtractResult(result *workflow.ExtractResult) (string, error) {
	itemsJSON, err := bom.EncodeItems(result.Items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}

	text := fmt.Sprintf("Extraction run %s\n", result.RunID)
	text += fmt.Sprintf("File: %s\n", result.Path)
	text += fmt.Sprintf("Format: %s\n", result.Format)
	text += fmt.Sprintf("Total items: %d\n", result.TotalItems)
	text += fmt.Sprintf("Needs review: %t\n", result.NeedsReview)

	if result.TotalItems == 0 {
		text += "\n⚠️  No items found. Check scan quality or the start page.\n"
	}

	text += "\n" + result.Report + "\n"
	text += "\nItems (correct them, set needs_review=false, then call bom_generate):\n"
	text += string(itemsJSON)
	return text, nil
}

func formatGenerateResult(result *workflow.GenerateResult) string {
	text := fmt.Sprintf("DD1750 written: %s\n", result.OutputPath)
	text += fmt.Sprintf("Items: %d\n", result.ItemCount)
	text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	if result.Fallback {
		text += "\n⚠️  WARNING: rendering failed; the blank template page was written instead.\n"
	}
	return text
}

func formatServerInfoResult(result *workflow.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 BOM Directory: %s\n", result.BOMDirectory)
	if result.TemplatePath != "" {
		text += fmt.Sprintf("📄 DD1750 Template: %s\n", result.TemplatePath)
	} else {
		text += "📄 DD1750 Template: not configured (pass template_path to bom_generate)\n"
	}
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", result.MaxFileSize/(1024*1024))

	if len(result.Documents) > 0 {
		text += fmt.Sprintf("📂 BOM Documents (%d found):\n", len(result.Documents))
		for i, doc := range result.Documents {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.Documents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, doc.Name, doc.Size)
		}
		if result.Truncated {
			text += "   (listing truncated)\n"
		}
		text += "\n"
	} else {
		text += "📂 BOM Documents: No PDF files found in the BOM directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		text += fmt.Sprintf("• %s: %s\n", name, descriptions.Summary(name))
	}

	text += "\n" + descriptions.UsageGuidance
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or stdin closes
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting MCP server in stdio mode", zap.String("dir", s.config.BOMDirectory))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE on the configured address
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in SSE mode", zap.String("addr", addr), zap.String("dir", s.config.BOMDirectory))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return nil
	}
}
