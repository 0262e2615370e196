package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
	"github.com/leapstack-labs/leapdiff/internal/analyzer"
	cliconfig "github.com/leapstack-labs/leapdiff/internal/cli/config"
	intconfig "github.com/leapstack-labs/leapdiff/internal/config"
	"github.com/leapstack-labs/leapdiff/internal/impact"
	"github.com/leapstack-labs/leapdiff/internal/manifest"
	"github.com/leapstack-labs/leapdiff/internal/report"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

func getConfig() *cliconfig.Config {
	return cliconfig.GetCurrent()
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	return cliconfig.GetLogger(cmd.Context())
}

// connectTarget creates and connects the adapter for a named comparison
// target. The returned close function is safe to defer.
func connectTarget(ctx context.Context, cfg *cliconfig.Config, name string) (adapter.Adapter, func(), error) {
	target, err := cfg.Target(name)
	if err != nil {
		return nil, nil, err
	}

	a, err := adapter.New(strings.ToLower(target.Type))
	if err != nil {
		return nil, nil, err
	}
	if err := a.Connect(ctx, target.ToAdapterConfig()); err != nil {
		return nil, nil, fmt.Errorf("failed to connect %q target: %w", name, err)
	}
	return a, func() { _ = a.Close() }, nil
}

// resolveOldRevision decides how the old side is sourced. An explicit
// --revision flag always wins; otherwise a configured "old" target keeps
// catalog-vs-catalog comparison, and the configured old_revision is the
// fallback when neither is present.
func resolveOldRevision(cfg *cliconfig.Config, flagRevision string) string {
	if flagRevision != "" {
		return flagRevision
	}
	if _, err := cfg.Target("old"); err == nil {
		return ""
	}
	return cfg.OldRevision
}

// relationFor derives the relation name of a model in a target environment.
func relationFor(target *intconfig.TargetConfig, model string) string {
	if target.Schema != "" {
		return target.Schema + "." + model
	}
	return model
}

// findModelPath locates <model>.sql under the models directory.
func findModelPath(modelsDir, model string) (string, error) {
	var found string
	err := filepath.WalkDir(modelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}
		if strings.TrimSuffix(d.Name(), ".sql") == model {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search models directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("model %s not found under %s", model, modelsDir)
	}
	return found, nil
}

// loadDeclaredSchemas reads the optional schema.yml declared inventories.
// Absence is not an error.
func loadDeclaredSchemas(cfg *cliconfig.Config, logger *slog.Logger) map[string]*schema.Inventory {
	if cfg.SchemaFile == "" {
		return nil
	}
	inventories, err := manifest.LoadSchemaYAML(cfg.SchemaFile)
	if err != nil {
		logger.Warn("could not load schema file", slog.String("path", cfg.SchemaFile), slog.Any("error", err))
		return nil
	}
	return inventories
}

// buildPropagator wires the impact propagator from the project manifest.
// Declared schema.yml inventories take priority over manifest extraction for
// downstream models.
func buildPropagator(cfg *cliconfig.Config, m *manifest.Manifest, declared map[string]*schema.Inventory, logger *slog.Logger) *impact.Propagator {
	policy := cfg.Policy()
	extractOpts := schema.ExtractOptions{
		Policy:  policy,
		Sources: manifest.SourceTypes(declared, policy),
	}

	provider := func(model string) (*schema.Inventory, error) {
		if inv, ok := declared[model]; ok {
			return inv, nil
		}
		return m.Inventory(model, extractOpts)
	}

	return impact.NewPropagator(m.Graph(), provider, impact.MatcherFor(cfg.Matcher, policy), logger)
}

// buildSchemaSources resolves the old and new inventory sources for a model.
// When revision is non-empty the old side is the model's defining SQL at that
// git revision; otherwise it is the old target's catalog.
func buildSchemaSources(ctx context.Context, cfg *cliconfig.Config, model, revision string, oldAdapter, newAdapter adapter.Adapter, declared map[string]*schema.Inventory) (analyzer.InventorySource, analyzer.InventorySource, error) {
	policy := cfg.Policy()

	newTarget, err := cfg.Target("new")
	if err != nil {
		return nil, nil, err
	}
	newSource := &analyzer.CatalogSource{
		Adapter:  newAdapter,
		Relation: relationFor(newTarget, model),
		Model:    model,
	}

	if revision != "" {
		path, err := findModelPath(cfg.ModelsDir, model)
		if err != nil {
			return nil, nil, &intconfig.ConfigurationError{Message: err.Error()}
		}
		text, err := historicalDefinition(ctx, cfg, revision, path)
		if err != nil {
			return nil, nil, &intconfig.ConfigurationError{
				Message: fmt.Sprintf("cannot resolve old comparison target: %v", err),
			}
		}
		oldSource := &analyzer.TextSource{
			Model: model,
			SQL:   text,
			Options: schema.ExtractOptions{
				Policy:  policy,
				Sources: manifest.SourceTypes(declared, policy),
			},
			Ref: revision,
		}
		return oldSource, newSource, nil
	}

	oldTarget, err := cfg.Target("old")
	if err != nil {
		return nil, nil, err
	}
	oldSource := &analyzer.CatalogSource{
		Adapter:  oldAdapter,
		Relation: relationFor(oldTarget, model),
		Model:    model,
	}
	return oldSource, newSource, nil
}

// renderSection prints one report table with its diagnostics.
func renderSection(w io.Writer, title string, header []string, rows [][]string, diags []report.Diagnostic) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(rows))
	if len(rows) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		headerRow := make(table.Row, len(header))
		for i, h := range header {
			headerRow[i] = h
		}
		t.AppendHeader(headerRow)
		for _, row := range rows {
			tr := make(table.Row, len(row))
			for i, cell := range row {
				tr[i] = cell
			}
			t.AppendRow(tr)
		}
		t.Render()
	}
	fmt.Fprintln(w)

	if len(diags) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		for _, d := range diags {
			fmt.Fprintf(w, "  [%s] %s: %s\n", d.Severity, d.Component, d.Message)
		}
	}
}
