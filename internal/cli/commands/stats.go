package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/analyzer"
	"github.com/leapstack-labs/leapdiff/internal/report"
	"github.com/leapstack-labs/leapdiff/internal/stats"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <model>",
		Short: "Compare data statistics of a model between the two targets",
		Long: `Measure row count and per-column statistics (non-null count, distinct
count, and min/max/avg for numeric columns) in both target environments with
one aggregate query per side, and report the deltas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args[0])
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command, model string) error {
	cfg := getConfig()
	logger := getLogger(cmd)
	ctx := cmd.Context()

	oldAdapter, closeOld, err := connectTarget(ctx, cfg, "old")
	if err != nil {
		return err
	}
	defer closeOld()

	newAdapter, closeNew, err := connectTarget(ctx, cfg, "new")
	if err != nil {
		return err
	}
	defer closeNew()

	declared := loadDeclaredSchemas(cfg, logger)
	oldSource, newSource, err := buildSchemaSources(ctx, cfg, model, "", oldAdapter, newAdapter, declared)
	if err != nil {
		return err
	}

	oldTarget, _ := cfg.Target("old")
	newTarget, _ := cfg.Target("new")

	a := &analyzer.Analyzer{
		Model:  model,
		OldRef: "old",
		NewRef: "new",
		Policy: cfg.Policy(),
		Old:    oldSource,
		New:    newSource,
		Stats: &analyzer.StatsSpec{
			Comparator: stats.NewComparator(logger),
			OldSide:    stats.Side{Querier: oldAdapter, Relation: relationFor(oldTarget, model)},
			NewSide:    stats.Side{Querier: newAdapter, Relation: relationFor(newTarget, model)},
		},
		Logger: logger,
	}
	result := a.Run(ctx)

	if cfg.OutputFormat == "json" {
		return report.RenderJSON(cmd.OutOrStdout(), result)
	}
	renderSection(cmd.OutOrStdout(), "Statistics", report.StatsHeader, result.StatsRows(), result.Diagnostics)
	return nil
}
