// Package mcp exposes the extraction engine over the Model Context
// Protocol so agent tooling can drive it against a drawing directory.
package mcp

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hvactools/vav-extract/internal/config"
	"github.com/hvactools/vav-extract/internal/extract"
	"github.com/hvactools/vav-extract/internal/llm"
	"github.com/hvactools/vav-extract/internal/pdf"
	"github.com/hvactools/vav-extract/internal/report"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	pipeline  *extract.Pipeline
	validator *pdf.Validator
	search    *pdf.Search
	generator *report.Generator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server wired to one extraction pipeline.
// The model-backed fallback classifier is attached only when an API key
// is configured.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := extract.Options{
		WindowRadius:   cfg.WindowRadius,
		MinCFM:         cfg.MinCFM,
		MaxCFM:         cfg.MaxCFM,
		MinFieldCount:  cfg.MinFieldCount,
		PageWorkers:    cfg.PageWorkers,
		EstimateInlets: cfg.EstimateInlets,
	}
	if cfg.BoxIDPattern != "" {
		compiled, err := regexp.Compile(cfg.BoxIDPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid box id pattern: %w", err)
		}
		opts.BoxIDPattern = compiled
	}
	if cfg.InletSizePattern != "" {
		compiled, err := regexp.Compile(cfg.InletSizePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid inlet size pattern: %w", err)
		}
		opts.InletSizePattern = compiled
	}
	if cfg.FallbackEnabled() {
		opts.Fallback = llm.NewClassifier(cfg.AnthropicAPIKey, cfg.FallbackModel, cfg.LLMTimeout, cfg.LLMConcurrency)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		pipeline:  extract.NewPipeline(opts),
		validator: pdf.NewValidator(cfg.MaxFileSize),
		search:    pdf.NewSearch(cfg.MaxFileSize),
		generator: report.NewGenerator(cfg.ServerName),
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractTool := mcp.NewTool(
		"vav_extract_records",
		mcp.WithDescription("Extract VAV box records (tag, CFM, inlet size) from an HVAC drawing PDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF drawing"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtractRecords)

	reportTool := mcp.NewTool(
		"vav_generate_report",
		mcp.WithDescription("Extract VAV records from a drawing PDF and write an XLSX report"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF drawing"),
		),
		mcp.WithString("output",
			mcp.Description("Output XLSX path (defaults to the PDF path with an _report.xlsx suffix)"),
		),
		mcp.WithString("template",
			mcp.Description("Optional air-balance template workbook to populate instead of generating a new one"),
		),
	)
	s.mcpServer.AddTool(reportTool, s.handleGenerateReport)

	validateTool := mcp.NewTool(
		"pdf_validate_file",
		mcp.WithDescription("Validate if a file is a readable PDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateFile)

	searchTool := mcp.NewTool(
		"vav_search_directory",
		mcp.WithDescription("Search for PDF drawings in a directory with optional fuzzy filename matching"),
		mcp.WithString("directory",
			mcp.Description("Directory path to search (uses the configured drawing directory if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query for fuzzy matching"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchDirectory)
}

// Handler functions
func (s *Server) handleExtractRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pipeline.RunFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExtractResult(path, result)), nil
}

func (s *Server) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	output := defaultReportPath(path)
	if out, ok := args["output"].(string); ok && out != "" {
		output = out
	}
	template := ""
	if tpl, ok := args["template"].(string); ok {
		template = tpl
	}

	result, err := s.pipeline.RunFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if template != "" {
		populated, err := report.PopulateTemplate(template, output, result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		responseText = fmt.Sprintf("Populated %d of %d record(s) into template copy: %s\n",
			populated, len(result.Records), output)
	} else {
		if err := s.generator.WriteFile(output, result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		responseText = fmt.Sprintf("Wrote report with %d record(s): %s\n", len(result.Records), output)
	}

	if len(result.Diagnostics) > 0 {
		responseText += fmt.Sprintf("Diagnostics: %d (see the Diagnostics sheet or vav_extract_records output)\n",
			len(result.Diagnostics))
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.validator.ValidateFile(pdf.ValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file %s is valid and readable", result.Path)
	} else {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	args := request.GetArguments()

	directory := s.config.DrawingDirectory // default
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	query := ""
	if q, ok := args["query"].(string); ok {
		query = q
	}

	result, err := s.search.SearchDirectory(pdf.SearchDirectoryRequest{
		Directory: directory,
		Query:     query,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.TotalCount == 0 {
		responseText = fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
	} else {
		responseText = formatSearchResult(result)
	}

	return mcp.NewToolResultText(responseText), nil
}

// Formatting helpers
func formatExtractResult(path string, result *extract.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extracted %d VAV record(s) from %s\n", len(result.Records), path)
	fmt.Fprintf(&b, "Pages processed: %d\n", result.PagesProcessed)
	fmt.Fprintf(&b, "Field coverage: %.0f%% of records have all three fields\n\n", result.FieldCoverage*100)

	for i, rec := range result.Records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.BoxID)
		if rec.CFM != nil {
			fmt.Fprintf(&b, "   CFM: %d\n", *rec.CFM)
		} else {
			b.WriteString("   CFM: unresolved\n")
		}
		if rec.InletSize != "" {
			fmt.Fprintf(&b, "   Inlet Size: %s", rec.InletSize)
			if rec.InletEstimated {
				b.WriteString(" (estimated from CFM)")
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "   Page: %d", rec.Page)
		if len(rec.Pages) > 1 {
			fmt.Fprintf(&b, " (seen on pages %v)", rec.Pages)
		}
		fmt.Fprintf(&b, "\n   Confidence: %.2f\n", rec.Confidence)
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(&b, "\nDiagnostics (%d):\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Fprintf(&b, "- [%s]", d.Code)
			if d.Page > 0 {
				fmt.Fprintf(&b, " page %d", d.Page)
			}
			if d.BoxID != "" {
				fmt.Fprintf(&b, " %s", d.BoxID)
			}
			fmt.Fprintf(&b, ": %s\n", d.Message)
		}
	}

	return b.String()
}

func formatSearchResult(result *pdf.SearchDirectoryResult) string {
	text := fmt.Sprintf("Found %d PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf("Search query: %s\n", result.SearchQuery)
	}
	text += "\nFiles:\n"

	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s\n", i+1, file.Name)
		text += fmt.Sprintf("   Path: %s\n", file.Path)
		text += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		text += fmt.Sprintf("   Modified: %s\n", file.ModifiedTime)
		if i < len(result.Files)-1 {
			text += "\n"
		}
	}

	return text
}

func defaultReportPath(pdfPath string) string {
	base := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))
	return base + "_report.xlsx"
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting VAV extraction MCP server in stdio mode")
		log.Printf("Drawing directory: %s", s.config.DrawingDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server over streamable HTTP
func (s *Server) runServerMode(_ context.Context) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	log.Printf("Starting VAV extraction MCP server on %s", s.config.Address())
	if err := httpServer.Start(s.config.Address()); err != nil {
		return fmt.Errorf("failed to serve http: %w", err)
	}
	return nil
}
