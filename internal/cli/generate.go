package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/emitter/tsemitter"
	"github.com/mark3labs/eyriegen/internal/engine"
	"github.com/mark3labs/eyriegen/internal/logging"
	"github.com/mark3labs/eyriegen/internal/parser"
	"github.com/mark3labs/eyriegen/internal/sink"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript sources from an OpenAPI/Swagger document",
		Long: "Generate models, services, controllers and lib/main.ts from an OpenAPI/Swagger document. " +
			"Existing service files are reconciled so hand-written method bodies survive; " +
			"everything else is regenerated.",
		Example: strings.TrimSpace(`  eyriegen generate --input openapi.yaml --out ./app
  eyriegen --config eyriegen.yaml generate --dry-run
  EYRIEGEN_INPUT=https://example.com/openapi.json eyriegen generate`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the Swagger/OpenAPI document")
	flags.StringP("out", "o", "", "Project root the lib/ tree is written under (default \".\")")
	flags.Bool("dry-run", false, "Print the planned writes without touching the filesystem")
	flags.Bool("force", false, "Overwrite service files instead of reconciling them")
	flags.Bool("skip-validation", false, "Load the document without OpenAPI validation")
	flags.Int("concurrency", 0, "Maximum files emitted in parallel (0 means unbounded)")

	return cmd
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger, err := logging.NewLogger(logging.Config{
		Component: "generate",
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
	})
	if err != nil {
		return newUsageError(err.Error())
	}
	defer func() { _ = logger.Sync() }()

	doc, err := spec.Load(ctx, cfg.Input, spec.WithSkipValidation(cfg.SkipValidation))
	if err != nil {
		return describeLoadError(err)
	}
	logger.Debug("loaded document", zap.String("location", doc.Location))

	catalog := store.NewCatalog()
	if err := parser.ParseAll(ctx, doc, catalog, parser.WithLogger(logger)); err != nil {
		return describeParseError(err, doc.Location)
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	var (
		target sink.Sink = sink.NewFilesystem(cfg.Out)
		plan   *sink.Plan
	)
	if cfg.DryRun {
		plan = sink.NewPlan(target)
		target = plan
	}

	em, err := tsemitter.New(tsemitter.Options{Sink: target, Force: cfg.Force, Logger: logger})
	if err != nil {
		return err
	}
	report, err := engine.New(em,
		engine.WithLogger(logger),
		engine.WithConcurrency(cfg.Concurrency),
	).Process(ctx, catalog)
	if err != nil {
		return wrapOutputError(err, absOut)
	}

	if cfg.DryRun {
		printPlan(os.Stdout, absOut, plan.Writes())
		return nil
	}
	printReport(os.Stdout, absOut, report)
	return nil
}

func describeLoadError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

func describeParseError(err error, location string) error {
	var pe *parser.Error
	if !errors.As(err, &pe) {
		return err
	}
	msg := fmt.Sprintf("parse (%s): %s", pe.Code, pe.Error())
	if location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, location)
	}
	if pe.Pointer != "" {
		msg = fmt.Sprintf("%s\nPointer: #%s", msg, pe.Pointer)
	}
	return newUsageError(msg)
}

func printPlan(w io.Writer, outDir string, writes []sink.PlannedWrite) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(writes))
	for _, pw := range writes {
		verb := "create"
		if pw.Existed {
			verb = "update"
		}
		fmt.Fprintf(w, "- %s %s (%d bytes)\n", verb, pw.Path, pw.Bytes)
	}
}

func printReport(w io.Writer, outDir string, report engine.Report) {
	fmt.Fprintf(w, "Generated %d files in %s (%d created, %d overwritten, %d merged, %d unchanged):\n",
		len(report.Results), outDir,
		report.Count(engine.Created), report.Count(engine.Overwritten),
		report.Count(engine.Merged), report.Count(engine.Unchanged))
	for _, res := range report.Results {
		fmt.Fprintf(w, "- %-11s %s\n", res.Outcome, res.Path)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	lower := strings.ToLower(err.Error())
	for _, hint := range []string{"permission", "read-only", "create directories", "rename", "reconcile"} {
		if strings.Contains(lower, hint) {
			return newUsageError(fmt.Sprintf("output error for %s: %v\nHint: choose a different --out, or use --force to replace service files.", outDir, err))
		}
	}
	return err
}
