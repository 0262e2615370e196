// Package analyzer orchestrates one comparison run: inventory extraction,
// schema diffing, statistical comparison, and downstream impact propagation,
// merged into a single report.
//
// Component failures degrade their section of the report into diagnostics
// rather than aborting the run; only configuration errors are fatal, and
// those are rejected before an Analyzer is ever constructed.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
	"github.com/leapstack-labs/leapdiff/internal/diff"
	"github.com/leapstack-labs/leapdiff/internal/impact"
	"github.com/leapstack-labs/leapdiff/internal/report"
	"github.com/leapstack-labs/leapdiff/internal/schema"
	"github.com/leapstack-labs/leapdiff/internal/stats"
)

// Analyzer runs one comparison to completion. All fields are fixed at
// construction; Run produces a fresh immutable report per invocation.
type Analyzer struct {
	Model  string
	OldRef string
	NewRef string

	Policy schema.NamePolicy

	Old InventorySource
	New InventorySource

	// Stats is optional: nil skips the data path (schema-only comparison).
	Stats *StatsSpec

	// Impact is optional: nil skips downstream propagation.
	Impact *impact.Propagator

	// Transitive walks the full downstream closure instead of one hop.
	Transitive bool

	Logger *slog.Logger
}

// StatsSpec configures the data path of the comparison.
type StatsSpec struct {
	Comparator *stats.Comparator
	OldSide    stats.Side
	NewSide    stats.Side
}

// Run executes the comparison and assembles the report.
func (a *Analyzer) Run(ctx context.Context) *report.Report {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var diags []report.Diagnostic

	oldInv := a.loadInventory(ctx, a.Old, logger, &diags)
	newInv := a.loadInventory(ctx, a.New, logger, &diags)

	records := diff.Diff(oldInv, newInv, a.Policy)
	changes := diff.Changes(records)
	logger.Info("schema diff complete",
		slog.String("model", a.Model),
		slog.Int("columns", len(records)),
		slog.Int("changes", len(changes)))

	statsResult := a.runStats(ctx, oldInv, newInv, logger, &diags)
	impacts := a.runImpact(changes, &diags)

	meta := report.Metadata{
		Model:       a.Model,
		OldRef:      a.OldRef,
		NewRef:      a.NewRef,
		GeneratedAt: time.Now().UTC(),
	}
	return report.Assemble(meta, records, statsResult, impacts, diags)
}

// loadInventory fetches one side's inventory, degrading recoverable failures
// into diagnostics with an empty inventory.
func (a *Analyzer) loadInventory(ctx context.Context, src InventorySource, logger *slog.Logger, diags *[]report.Diagnostic) *schema.Inventory {
	inv, err := src.Inventory(ctx)
	if err == nil {
		return inv
	}

	var parseErr *schema.ParseError
	var notFound *adapter.NotFoundError
	switch {
	case errors.As(err, &parseErr):
		logger.Warn("inventory extraction failed to parse", slog.String("source", src.Describe()), slog.Any("error", err))
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityWarning,
			Component: "extractor",
			Message:   fmt.Sprintf("%s: %v", src.Describe(), err),
		})
	case errors.As(err, &notFound):
		logger.Warn("relation not found", slog.String("source", src.Describe()), slog.Any("error", err))
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityWarning,
			Component: "extractor",
			Message:   fmt.Sprintf("%s: %v", src.Describe(), err),
		})
	default:
		logger.Error("inventory extraction failed", slog.String("source", src.Describe()), slog.Any("error", err))
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityError,
			Component: "extractor",
			Message:   fmt.Sprintf("%s: %v", src.Describe(), err),
		})
	}

	if inv == nil {
		inv = &schema.Inventory{Model: a.Model}
	}
	return inv
}

// runStats executes the data path over the common columns of both sides.
func (a *Analyzer) runStats(ctx context.Context, oldInv, newInv *schema.Inventory, logger *slog.Logger, diags *[]report.Diagnostic) *stats.Result {
	if a.Stats == nil {
		return nil
	}
	if len(oldInv.Columns) == 0 && len(newInv.Columns) == 0 {
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityWarning,
			Component: "stats",
			Message:   "no columns available on either side, skipping statistics",
		})
		return nil
	}

	specs := columnSpecs(oldInv, newInv, a.Policy)
	oldSide := a.Stats.OldSide
	newSide := a.Stats.NewSide
	oldSide.Names = physicalNames(oldInv, a.Policy)
	newSide.Names = physicalNames(newInv, a.Policy)

	result, err := a.Stats.Comparator.Compare(ctx, a.Model, oldSide, newSide, specs)
	if err != nil {
		logger.Error("statistical comparison failed", slog.Any("error", err))
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityError,
			Component: "stats",
			Message:   err.Error(),
		})
		return nil
	}

	for _, skipped := range result.Skipped {
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityWarning,
			Component: "stats",
			Message:   fmt.Sprintf("column %s skipped: %s", skipped.Column, skipped.Reason),
		})
	}
	return result
}

// runImpact propagates the change set downstream.
func (a *Analyzer) runImpact(changes []diff.ChangeRecord, diags *[]report.Diagnostic) []impact.Record {
	if a.Impact == nil {
		return nil
	}

	var records []impact.Record
	var skipped []impact.SkippedConsumer
	if a.Transitive {
		records, skipped = a.Impact.PropagateTransitive(a.Model, changes)
	} else {
		records, skipped = a.Impact.Propagate(a.Model, changes)
	}

	for _, skip := range skipped {
		*diags = append(*diags, report.Diagnostic{
			Severity:  report.SeverityWarning,
			Component: "impact",
			Message:   fmt.Sprintf("downstream model %s skipped: %v", skip.Model, skip.Err),
		})
	}
	return records
}

// columnSpecs builds the stats column list from the name intersection of the
// two inventories, keyed by canonical (normalized) name. A column counts as
// numeric if either side declares a numeric type, so a type change away from
// numeric still gets its aggregates measured.
func columnSpecs(oldInv, newInv *schema.Inventory, policy schema.NamePolicy) []stats.ColumnSpec {
	oldIdx := oldInv.Index(policy)
	newIdx := newInv.Index(policy)

	common := diff.CommonColumns(oldInv, newInv, policy)
	specs := make([]stats.ColumnSpec, 0, len(common))
	for _, key := range common {
		oldCol := oldIdx[key]
		newCol := newIdx[key]
		specs = append(specs, stats.ColumnSpec{
			Name:    key,
			Numeric: schema.IsNumericType(oldCol.Type) || schema.IsNumericType(newCol.Type),
		})
	}
	return specs
}

// physicalNames maps canonical column names to the physical identifiers of
// one side's inventory. Sides can disagree on casing under case-insensitive
// matching, so each aggregate query quotes its own side's spelling.
func physicalNames(inv *schema.Inventory, policy schema.NamePolicy) map[string]string {
	idx := inv.Index(policy)
	names := make(map[string]string, len(idx))
	for key, col := range idx {
		names[key] = col.Name
	}
	return names
}
