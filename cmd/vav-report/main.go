// vav-report runs a single extraction over one drawing PDF and writes
// the report, without starting a server. It is the batch counterpart to
// the vav-extract MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hvactools/vav-extract/internal/config"
	"github.com/hvactools/vav-extract/internal/extract"
	"github.com/hvactools/vav-extract/internal/llm"
	"github.com/hvactools/vav-extract/internal/report"
)

func main() {
	var (
		output      string
		template    string
		project     string
		asJSON      bool
		useFallback bool
	)

	flags := pflag.NewFlagSet("vav-report", pflag.ExitOnError)
	flags.StringVarP(&output, "output", "o", "", "Output XLSX path (defaults to <input>_report.xlsx)")
	flags.StringVarP(&template, "template", "t", "", "Air-balance template workbook to populate instead of generating a new one")
	flags.StringVar(&project, "project", "", "Project name for the summary sheet title")
	flags.BoolVar(&asJSON, "json", false, "Print records and diagnostics as JSON instead of writing a workbook")
	flags.BoolVar(&useFallback, "llm-fallback", false, "Resolve ambiguous callouts with the Anthropic API (requires "+config.EnvAnthropicAPIKey+")")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vav-report [flags] <drawing.pdf>\n\n")
		fmt.Fprintf(os.Stderr, "Extracts VAV box records from an HVAC drawing and writes an XLSX report.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n%s", flags.FlagUsages())
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}
	input := flags.Arg(0)
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_report.xlsx"
	}

	cfg := config.DefaultConfig()
	opts := extract.Options{
		WindowRadius:   cfg.WindowRadius,
		MinCFM:         cfg.MinCFM,
		MaxCFM:         cfg.MaxCFM,
		MinFieldCount:  cfg.MinFieldCount,
		PageWorkers:    cfg.PageWorkers,
		EstimateInlets: cfg.EstimateInlets,
	}
	if useFallback {
		apiKey := os.Getenv(config.EnvAnthropicAPIKey)
		if apiKey == "" {
			log.Fatalf("--llm-fallback requires %s", config.EnvAnthropicAPIKey)
		}
		opts.Fallback = llm.NewClassifier(apiKey, cfg.FallbackModel, cfg.LLMTimeout, cfg.LLMConcurrency)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := extract.NewPipeline(opts)
	result, err := pipeline.RunFile(ctx, input)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		return
	}

	if template != "" {
		populated, err := report.PopulateTemplate(template, output, result)
		if err != nil {
			log.Fatalf("Failed to populate template: %v", err)
		}
		fmt.Printf("Populated %d of %d record(s) into %s\n", populated, len(result.Records), output)
	} else {
		if err := report.NewGenerator(project).WriteFile(output, result); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("Wrote %d record(s) to %s\n", len(result.Records), output)
	}

	fmt.Printf("Pages processed: %d, field coverage: %.0f%%\n", result.PagesProcessed, result.FieldCoverage*100)
	for _, d := range result.Diagnostics {
		fmt.Fprintf(os.Stderr, "diagnostic [%s] page=%d %s %s\n", d.Code, d.Page, d.BoxID, d.Message)
	}
}
