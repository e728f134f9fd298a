package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/boundfit/internal/config"
	"github.com/unbound-force/boundfit/internal/pipeline"
	"github.com/unbound-force/boundfit/internal/report"
	"github.com/unbound-force/boundfit/internal/sampling"
	"github.com/unbound-force/boundfit/internal/scaffold"
	"github.com/unbound-force/boundfit/internal/scrape"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "boundfit",
		Short: "boundfit: infer statistically sound bounds for test assertions",
		Long: `boundfit finds numeric bound assertions in Go tests, samples the
asserted value over repeated runs, fits an extreme-value model to the
observations and proposes a patch that replaces the hard-coded literal
with the fitted bound.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newFitCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newInitCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// selection holds the flags shared by fit and scan that pick which
// assertions are processed.
type selection struct {
	patterns      []string
	test          string
	file          string
	line          int
	packageFilter string
}

func (s selection) filter() scrape.Filter {
	return scrape.Filter{
		Package: s.packageFilter,
		Test:    s.test,
		File:    s.file,
		Line:    s.line,
	}
}

func addSelectionFlags(cmd *cobra.Command, sel *selection) {
	cmd.Flags().StringVar(&sel.test, "test", "", "only assertions in this test function")
	cmd.Flags().StringVar(&sel.file, "file", "", "only assertions in this test file (base name or path suffix)")
	cmd.Flags().IntVar(&sel.line, "line", 0, "only the assertion on this line")
	cmd.Flags().StringVar(&sel.packageFilter, "package-filter", "", "only assertions in this package name")
}

// discover scans moduleDir for assertions and applies the selection.
func discover(moduleDir string, sel selection, cfg *config.Config) ([]taxonomy.AssertionSpec, error) {
	patterns := sel.patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	logger.Info("scanning for assertions", "patterns", patterns)
	specs, err := scrape.Scan(moduleDir, patterns, scrape.Options{
		Include: cfg.Scan.Include,
		Exclude: cfg.Scan.Exclude,
	})
	if err != nil {
		return nil, err
	}
	return sel.filter().Apply(specs), nil
}

// loadConfig resolves the configuration file. An empty path falls
// back to .boundfit.yaml in moduleDir when it exists.
func loadConfig(path, moduleDir string) (*config.Config, error) {
	if path == "" {
		candidate := filepath.Join(moduleDir, config.DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	return config.Load(path)
}

// fitParams holds the parsed flags for the fit command.
type fitParams struct {
	selection
	configPath  string
	logsDir     string
	format      string
	interactive bool
	moduleDir   string
	overrides   func(*config.Config)
	executor    sampling.Executor
	stdout      io.Writer
}

func validFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return nil
}

// runFit is the extracted, testable body of the fit command.
func runFit(ctx context.Context, p fitParams) error {
	if err := validFormat(p.format); err != nil {
		return err
	}

	cfg, err := loadConfig(p.configPath, p.moduleDir)
	if err != nil {
		return err
	}
	if p.overrides != nil {
		p.overrides(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	specs, err := discover(p.moduleDir, p.selection, cfg)
	if err != nil {
		return err
	}

	logsDir := p.logsDir
	if logsDir == "" {
		logsDir = filepath.Join(p.moduleDir, ".boundfit", "logs")
	}
	runner := &pipeline.Runner{
		Config:   *cfg,
		Executor: p.executor,
		Logger:   logger,
		LogsDir:  logsDir,
		Name:     filepath.Base(p.moduleDir),
		Version:  version,
	}

	stats, err := runner.Run(ctx, specs)
	if errors.Is(err, pipeline.ErrNoAssertions) {
		return fmt.Errorf("%w matched the selection in %s", err, p.moduleDir)
	}
	if stats == nil {
		return err
	}

	if p.interactive {
		if ierr := runInteractiveFit(stats); ierr != nil {
			return ierr
		}
		return err
	}

	var werr error
	switch p.format {
	case "json":
		werr = report.WriteJSON(p.stdout, stats, version)
	default:
		werr = report.WriteText(p.stdout, stats)
	}
	return errors.Join(err, werr)
}

func newFitCmd() *cobra.Command {
	var (
		sel         selection
		configPath  string
		logsDir     string
		format      string
		interactive bool
		threads     int
		boxcox      bool
		timeout     time.Duration
		toolchain   string
		tags        []string
		deps        []string
	)

	cmd := &cobra.Command{
		Use:   "fit [packages...]",
		Short: "Infer bounds for assertions and write patches",
		Long: `Instrument each selected bound assertion, run its test repeatedly
until the fitted bound converges, classify the hard-coded literal
against the fitted bound and write a patched copy plus a unified
diff into the run directory. Source files are always restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			sel.patterns = args
			flags := cmd.Flags()
			return runFit(cmd.Context(), fitParams{
				selection:   sel,
				configPath:  configPath,
				logsDir:     logsDir,
				format:      format,
				interactive: interactive,
				moduleDir:   moduleDir,
				overrides: func(cfg *config.Config) {
					if flags.Changed("threads") {
						cfg.Sampling.ThreadCount = threads
					}
					if flags.Changed("boxcox") {
						cfg.Sampling.UseBoxCox = boxcox
					}
					if flags.Changed("timeout") {
						cfg.Execution.Timeout = timeout
					}
					if flags.Changed("toolchain") {
						cfg.Execution.Toolchain = toolchain
					}
					if flags.Changed("tags") {
						cfg.Execution.Tags = tags
					}
					if flags.Changed("deps") {
						cfg.Execution.Imports = deps
					}
				},
				stdout: cmd.OutOrStdout(),
			})
		},
	}

	addSelectionFlags(cmd, &sel)
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: .boundfit.yaml when present)")
	cmd.Flags().StringVar(&logsDir, "logs", "",
		"directory for run logs and patches (default: .boundfit/logs)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")
	cmd.Flags().IntVar(&threads, "threads", 1, "concurrent test invocations")
	cmd.Flags().BoolVar(&boxcox, "boxcox", false, "apply a Box-Cox transform before fitting")
	cmd.Flags().DurationVar(&timeout, "timeout", 500*time.Second, "timeout for a single test invocation")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "GOTOOLCHAIN used to build and run tests")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "build tags for the test build")
	cmd.Flags().StringSliceVar(&deps, "deps", nil, "imports required by the injected logging statement")

	return cmd
}

// scanParams holds the parsed flags for the scan command.
type scanParams struct {
	selection
	configPath string
	format     string
	moduleDir  string
	stdout     io.Writer
}

// runScan is the extracted, testable body of the scan command.
func runScan(p scanParams) error {
	if err := validFormat(p.format); err != nil {
		return err
	}
	cfg, err := loadConfig(p.configPath, p.moduleDir)
	if err != nil {
		return err
	}
	specs, err := discover(p.moduleDir, p.selection, cfg)
	if err != nil {
		return err
	}
	logger.Info("scan complete", "assertions", len(specs))

	switch p.format {
	case "json":
		return report.WriteSpecsJSON(p.stdout, specs, version)
	default:
		return report.WriteSpecsText(p.stdout, specs)
	}
}

func newScanCmd() *cobra.Command {
	var (
		sel        selection
		configPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "scan [packages...]",
		Short: "List bound assertions without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			sel.patterns = args
			return runScan(scanParams{
				selection:  sel,
				configPath: configPath,
				format:     format,
				moduleDir:  moduleDir,
				stdout:     cmd.OutOrStdout(),
			})
		},
	}

	addSelectionFlags(cmd, &sel)
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: .boundfit.yaml when present)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var scan bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for boundfit output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of boundfit fit --format=json output, or of
boundfit scan --format=json with --scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := report.Schema
			if scan {
				schema = report.SpecsSchema
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), schema)
			return err
		},
	}
	cmd.Flags().BoolVar(&scan, "scan", false, "print the scan output schema")
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .boundfit.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := scaffold.Run(scaffold.Options{
				Force:   force,
				Version: version,
				Stdout:  cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
