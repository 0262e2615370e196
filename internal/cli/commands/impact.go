package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/analyzer"
	"github.com/leapstack-labs/leapdiff/internal/manifest"
	"github.com/leapstack-labs/leapdiff/internal/report"
)

// ImpactOptions holds options for the impact command.
type ImpactOptions struct {
	Revision   string
	Transitive bool
}

// NewImpactCommand creates the impact command.
func NewImpactCommand() *cobra.Command {
	opts := &ImpactOptions{}

	cmd := &cobra.Command{
		Use:   "impact <model>",
		Short: "Show downstream columns affected by a model's schema changes",
		Long: `Diff the model's schema between the two versions, then walk the
dependency graph to find downstream columns that reference the changed
columns.`,
		Example: `  # Impact of the working copy vs the definition on main
  leapdiff impact orders --revision main

  # Direct consumers only vs the full downstream closure
  leapdiff impact orders
  leapdiff impact orders --transitive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Revision, "revision", "", "Git revision supplying the old definition")
	cmd.Flags().BoolVar(&opts.Transitive, "transitive", false, "Propagate impact through the full downstream closure")
	return cmd
}

func runImpact(cmd *cobra.Command, model string, opts *ImpactOptions) error {
	cfg := getConfig()
	logger := getLogger(cmd)
	ctx := cmd.Context()

	newAdapter, closeNew, err := connectTarget(ctx, cfg, "new")
	if err != nil {
		return err
	}
	defer closeNew()

	revision := resolveOldRevision(cfg, opts.Revision)

	oldAdapter := newAdapter
	if revision == "" {
		var closeOld func()
		oldAdapter, closeOld, err = connectTarget(ctx, cfg, "old")
		if err != nil {
			return err
		}
		defer closeOld()
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return fmt.Errorf("impact analysis requires a manifest: %w", err)
	}

	declared := loadDeclaredSchemas(cfg, logger)
	oldSource, newSource, err := buildSchemaSources(ctx, cfg, model, revision, oldAdapter, newAdapter, declared)
	if err != nil {
		return err
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
		Impact:     buildPropagator(cfg, m, declared, logger),
		Transitive: opts.Transitive,
		Logger:     logger,
	}
	result := a.Run(ctx)

	if cfg.OutputFormat == "json" {
		return report.RenderJSON(cmd.OutOrStdout(), result)
	}
	renderSection(cmd.OutOrStdout(), "Downstream impact", report.ImpactHeader, result.ImpactRows(), result.Diagnostics)
	return nil
}
