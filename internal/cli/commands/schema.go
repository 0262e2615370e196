package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/analyzer"
	"github.com/leapstack-labs/leapdiff/internal/report"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	Revision string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema <model>",
		Short: "Diff a model's schema between two versions",
		Example: `  # Diff the old and new target catalogs
  leapdiff schema orders

  # Diff the working copy against the definition on main
  leapdiff schema orders --revision main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Revision, "revision", "", "Git revision supplying the old definition")
	return cmd
}

func runSchema(cmd *cobra.Command, model string, opts *SchemaOptions) error {
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
		Model:  model,
		OldRef: oldRef,
		NewRef: "new",
		Policy: cfg.Policy(),
		Old:    oldSource,
		New:    newSource,
		Logger: logger,
	}
	result := a.Run(ctx)

	if cfg.OutputFormat == "json" {
		return report.RenderJSON(cmd.OutOrStdout(), result)
	}
	renderSection(cmd.OutOrStdout(), "Schema changes", report.SchemaHeader, result.SchemaRows(), result.Diagnostics)
	return nil
}
