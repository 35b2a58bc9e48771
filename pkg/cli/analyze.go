package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/dependencies"
	"github.com/platinummonkey/blastradius/pkg/export"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/observability"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

const (
	dependenciesCommand = "dependencies"
	usageCommand        = "usage"
)

// Output formats besides the export projections
const (
	formatJSON = "json"
	formatTree = "tree"
)

func outputFormats() []string {
	formats := []string{formatJSON, formatTree}
	for _, f := range export.Formats() {
		formats = append(formats, string(f))
	}
	return formats
}

// analysisFlags holds the parsed flags of an analysis command
type analysisFlags struct {
	driver        string
	dsn           string
	id            string
	name          string
	kind          string
	format        string
	reports       bool
	metadataTypes bool
	depth         int
	baseURL       string
	apiVersion    string
	concurrency   int
	logLevel      string
}

func newAnalysisCommand(name string, out, errOut io.Writer, open SourceOpener) *Command {
	description := "List what a component depends on"
	if name == usageCommand {
		description = "List where a component is used"
	}

	cmd := &Command{
		Name:        name,
		Description: description,
		Flags:       flag.NewFlagSet(name, flag.ContinueOnError),
		out:         out,
	}
	cmd.Flags.SetOutput(errOut)

	var f analysisFlags
	cmd.Flags.StringVar(&f.driver, "driver", envOr("BLASTRADIUS_SQL_DRIVER", "sqlite3"), "Snapshot database driver (postgres, sqlite3)")
	cmd.Flags.StringVar(&f.dsn, "dsn", os.Getenv("BLASTRADIUS_SQL_DSN"), "Snapshot database DSN")
	cmd.Flags.StringVar(&f.id, "id", "", "Component id (or API name for fields)")
	cmd.Flags.StringVar(&f.name, "name", "", "Component name (defaults to the id for StandardField)")
	cmd.Flags.StringVar(&f.kind, "type", "", "Component type, e.g. ApexClass or StandardField")
	cmd.Flags.StringVar(&f.format, "format", formatTree, "Output format ("+strings.Join(outputFormats(), ", ")+")")
	cmd.Flags.BoolVar(&f.reports, "reports", false, "Classify report usage (filter, grouping, view only)")
	cmd.Flags.BoolVar(&f.metadataTypes, "metadata-types", false, "Search custom metadata records for field references")
	cmd.Flags.IntVar(&f.depth, "depth", 0, "Maximum walk depth (0 = unlimited)")
	cmd.Flags.StringVar(&f.baseURL, "base-url", os.Getenv("BLASTRADIUS_BASE_URL"), "Instance URL used to build component links")
	cmd.Flags.StringVar(&f.apiVersion, "api-version", export.DefaultAPIVersion, "API version written into package.xml")
	cmd.Flags.IntVar(&f.concurrency, "concurrency", references.DefaultConcurrency, "Concurrent enrichment calls")
	cmd.Flags.StringVar(&f.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return runAnalysis(context.Background(), name, f, out, errOut, open)
	}

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// entryPoint builds the analyzed component from the flags
func (f analysisFlags) entryPoint() (metadata.EntryPoint, error) {
	if f.id == "" || f.kind == "" {
		return metadata.EntryPoint{}, fmt.Errorf("--id and --type are required")
	}
	if f.depth < 0 {
		return metadata.EntryPoint{}, fmt.Errorf("--depth must not be negative")
	}
	entry := metadata.EntryPoint{
		ID:   f.id,
		Name: f.name,
		Type: metadata.Kind(f.kind),
		Options: metadata.Options{
			EnhanceReportData:    f.reports,
			FieldInMetadataTypes: f.metadataTypes,
			MaxDepth:             f.depth,
		},
	}.WithDefaultName()
	return entry, entry.Validate()
}

func validFormat(format string) bool {
	for _, f := range outputFormats() {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func runAnalysis(ctx context.Context, direction string, f analysisFlags, out, errOut io.Writer, open SourceOpener) error {
	entry, err := f.entryPoint()
	if err != nil {
		return err
	}
	if !validFormat(f.format) {
		return fmt.Errorf("unknown format %q (must be one of %s)", f.format, strings.Join(outputFormats(), ", "))
	}

	logger, err := observability.NewLogger(f.logLevel, observability.FormatText, errOut)
	if err != nil {
		return err
	}

	source, err := open(ctx, sfapi.Config{
		Type:   sfapi.SourceSQL,
		Driver: f.driver,
		DSN:    f.dsn,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer source.Close()

	analyzer, err := dependencies.NewAnalyzer(dependencies.Config{
		Services:    source.Services,
		Logger:      logger,
		BaseURL:     f.baseURL,
		Concurrency: f.concurrency,
	})
	if err != nil {
		return err
	}

	var result *dependencies.Result
	if direction == usageCommand {
		result, err = analyzer.Usage(ctx, entry)
	} else {
		result, err = analyzer.Dependencies(ctx, entry)
	}
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		logger.WithField("stage", w.Stage).Warn(w.Message)
	}

	return render(out, f.format, result, export.Options{APIVersion: f.apiVersion})
}

// render writes result in the requested format
func render(out io.Writer, format string, result *dependencies.Result, opts export.Options) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case formatTree:
		if err := result.Tree.Fprint(out); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "\n%d components", result.Stats.Total())
		if err != nil {
			return err
		}
		for _, kind := range result.Stats.Kinds() {
			if _, err := fmt.Fprintf(out, ", %s: %d", kind, result.Stats[kind]); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintln(out)
		return err
	default:
		exportFormat, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		return export.Write(out, exportFormat, result.Edges, opts)
	}
}
