package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/analyzer"
	"github.com/leapstack-labs/leapdiff/internal/manifest"
	"github.com/leapstack-labs/leapdiff/internal/report"
	"github.com/leapstack-labs/leapdiff/internal/state"
	"github.com/leapstack-labs/leapdiff/internal/stats"
)

// CompareOptions holds options for the compare command.
type CompareOptions struct {
	Revision   string
	Transitive bool
	NoStats    bool
	NoImpact   bool
	CSV        bool
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	opts := &CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare <model>",
		Short: "Compare two versions of a model",
		Long: `Run the full comparison for a model: schema diff, data statistics, and
downstream impact, merged into one report.

By default the "old" and "new" targets from the configuration are compared.
With --revision, the old side is instead the model's definition at that git
revision, parsed statically. Without the flag and without an "old" target,
the configured old_revision (default "main") is used.`,
		Example: `  # Compare the old and new target environments
  leapdiff compare orders

  # Compare the working copy against the definition on main
  leapdiff compare orders --revision main

  # Full downstream closure, JSON output
  leapdiff compare orders --transitive -o json

  # Write the three report tables as CSV files
  leapdiff compare orders --csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Revision, "revision", "", "Git revision supplying the old definition (e.g. main)")
	cmd.Flags().BoolVar(&opts.Transitive, "transitive", false, "Propagate impact through the full downstream closure")
	cmd.Flags().BoolVar(&opts.NoStats, "no-stats", false, "Skip data statistics")
	cmd.Flags().BoolVar(&opts.NoImpact, "no-impact", false, "Skip downstream impact analysis")
	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "Write report tables as CSV files")

	return cmd
}

func runCompare(cmd *cobra.Command, model string, opts *CompareOptions) error {
	cfg := getConfig()
	logger := getLogger(cmd)
	ctx := cmd.Context()

	a, err := buildAnalyzer(cmd, model, opts)
	if err != nil {
		return err
	}
	defer a.cleanup()

	// Record the run; history failures never block the comparison.
	store, err := state.Open(cfg.StatePath, logger)
	if err != nil {
		logger.Warn("run history unavailable", slog.Any("error", err))
		store = nil
	}
	var run *state.Run
	if store != nil {
		defer func() { _ = store.Close() }()
		if run, err = store.CreateRun(model, a.Analyzer.OldRef, a.Analyzer.NewRef); err != nil {
			logger.Warn("could not record run", slog.Any("error", err))
			run = nil
		}
	}

	result := a.Analyzer.Run(ctx)

	if store != nil && run != nil {
		counts := state.RunCounts{
			SchemaChanges: len(result.Schema),
			StatDeltas:    len(result.Stats),
			Impacts:       len(result.Impacts),
			Diagnostics:   len(result.Diagnostics),
		}
		if err := store.CompleteRun(run.ID, state.RunStatusCompleted, counts, ""); err != nil {
			logger.Warn("could not complete run record", slog.Any("error", err))
		}
	}

	return writeReport(cmd, result, opts)
}

// writeReport renders the report in the configured format, plus CSV files
// when requested.
func writeReport(cmd *cobra.Command, r *report.Report, opts *CompareOptions) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()

	switch cfg.OutputFormat {
	case "json":
		if err := report.RenderJSON(out, r); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
	default:
		report.RenderText(out, r)
	}

	if opts.CSV {
		prefix := fmt.Sprintf("%s_comparison_%s", r.Metadata.Model, time.Now().Format("20060102_150405"))
		paths, err := report.WriteCSV(cfg.OutDir, prefix, r)
		if err != nil {
			return fmt.Errorf("failed to write CSV report: %w", err)
		}
		for _, path := range paths {
			fmt.Fprintf(out, "Wrote %s\n", path)
		}
	}
	return nil
}

// comparison bundles a configured analyzer with the resources it borrows.
type comparison struct {
	Analyzer *analyzer.Analyzer
	cleanup  func()
}

// buildAnalyzer wires the analyzer for one invocation: adapters, schema
// sources, the stats spec, and the impact propagator. Configuration errors
// returned here are fatal; everything after this point degrades into report
// diagnostics.
func buildAnalyzer(cmd *cobra.Command, model string, opts *CompareOptions) (*comparison, error) {
	cfg := getConfig()
	logger := getLogger(cmd)
	ctx := cmd.Context()

	revision := resolveOldRevision(cfg, opts.Revision)

	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*comparison, error) {
		cleanup()
		return nil, err
	}

	newAdapter, closeNew, err := connectTarget(ctx, cfg, "new")
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeNew)

	// The old adapter is only required for catalog-vs-catalog comparison.
	// In revision mode it is still used for stats when configured.
	var oldAdapter = newAdapter
	oldAvailable := true
	if _, err := cfg.Target("old"); err == nil {
		var closeOld func()
		oldAdapter, closeOld, err = connectTarget(ctx, cfg, "old")
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, closeOld)
	} else if revision == "" {
		return fail(err)
	} else {
		oldAvailable = false
	}

	declared := loadDeclaredSchemas(cfg, logger)

	oldSource, newSource, err := buildSchemaSources(ctx, cfg, model, revision, oldAdapter, newAdapter, declared)
	if err != nil {
		return fail(err)
	}

	oldRef := "old"
	if revision != "" {
		oldRef = revision
	}

	a := &analyzer.Analyzer{
		Model:      model,
		OldRef:     oldRef,
		NewRef:     "new",
		Policy:     cfg.Policy(),
		Old:        oldSource,
		New:        newSource,
		Transitive: opts.Transitive,
		Logger:     logger,
	}

	if !opts.NoStats && oldAvailable {
		oldTarget, _ := cfg.Target("old")
		newTarget, _ := cfg.Target("new")
		a.Stats = &analyzer.StatsSpec{
			Comparator: stats.NewComparator(logger),
			OldSide:    stats.Side{Querier: oldAdapter, Relation: relationFor(oldTarget, model)},
			NewSide:    stats.Side{Querier: newAdapter, Relation: relationFor(newTarget, model)},
		}
	} else if !opts.NoStats {
		logger.Debug("no old target configured, skipping statistics")
	}

	if !opts.NoImpact {
		m, err := manifest.Load(cfg.ManifestPath)
		if err != nil {
			logger.Warn("manifest unavailable, skipping impact analysis", slog.Any("error", err))
		} else {
			a.Impact = buildPropagator(cfg, m, declared, logger)
		}
	}

	return &comparison{Analyzer: a, cleanup: cleanup}, nil
}
