// Package impact propagates schema changes of one model through the
// dependency graph to the downstream columns that reference them.
package impact

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapdiff/internal/dag"
	"github.com/leapstack-labs/leapdiff/internal/diff"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// maxConcurrentLookups bounds parallel downstream inventory fetches.
const maxConcurrentLookups = 8

// Record links one schema change to one downstream column that references
// the changed column.
type Record struct {
	SourceModel    string
	SourceColumn   string
	Change         diff.ChangeType
	ImpactedModel  string
	ImpactedColumn string
}

// SkippedConsumer records a downstream model whose inventory could not be
// obtained. Skips degrade the impact section, they never abort propagation.
type SkippedConsumer struct {
	Model string
	Err   error
}

// InventoryProvider resolves a model name to its column inventory.
type InventoryProvider func(model string) (*schema.Inventory, error)

// Propagator finds downstream columns affected by a model's schema changes.
type Propagator struct {
	Graph       *dag.Graph
	Inventories InventoryProvider
	Matcher     ColumnReferenceMatcher
	Logger      *slog.Logger
}

// NewPropagator creates a propagator. A nil logger discards log output.
func NewPropagator(graph *dag.Graph, inventories InventoryProvider, matcher ColumnReferenceMatcher, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Propagator{Graph: graph, Inventories: inventories, Matcher: matcher, Logger: logger}
}

// Propagate tests the direct consumers of model against its non-UNCHANGED
// change records, one hop only.
func (p *Propagator) Propagate(model string, changes []diff.ChangeRecord) ([]Record, []SkippedConsumer) {
	return p.propagateTo(p.Graph.Consumers(model), model, changes)
}

// PropagateTransitive walks the full downstream closure of model. The graph
// traversal is cycle-safe (visited set inside TransitiveConsumers) and the
// result is a set union, so traversal order does not affect the output.
func (p *Propagator) PropagateTransitive(model string, changes []diff.ChangeRecord) ([]Record, []SkippedConsumer) {
	return p.propagateTo(p.Graph.TransitiveConsumers(model), model, changes)
}

// propagateTo fetches each consumer's inventory and matches every changed
// column against every consumer column. Lookups run concurrently; the merge
// is a plain union so ordering is restored by a final sort.
func (p *Propagator) propagateTo(consumers []string, model string, changes []diff.ChangeRecord) ([]Record, []SkippedConsumer) {
	changed := diff.Changes(changes)
	if len(changed) == 0 || len(consumers) == 0 {
		return []Record{}, nil
	}

	var (
		mu      sync.Mutex
		records []Record
		skipped []SkippedConsumer
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentLookups)
	for _, consumer := range consumers {
		g.Go(func() error {
			inv, err := p.Inventories(consumer)
			if err != nil {
				p.Logger.Warn("skipping downstream model", slog.String("model", consumer), slog.Any("error", err))
				mu.Lock()
				skipped = append(skipped, SkippedConsumer{Model: consumer, Err: err})
				mu.Unlock()
				return nil
			}

			matched := p.matchConsumer(model, consumer, inv, changed)
			if len(matched) > 0 {
				mu.Lock()
				records = append(records, matched...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; skips are collected instead

	sortRecords(records)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Model < skipped[j].Model })
	if records == nil {
		records = []Record{}
	}
	return records, skipped
}

// matchConsumer emits one Record per (change, referencing column) pair in a
// single consumer's inventory.
func (p *Propagator) matchConsumer(model, consumer string, inv *schema.Inventory, changed []diff.ChangeRecord) []Record {
	var out []Record
	for _, change := range changed {
		for _, col := range inv.Columns {
			if p.Matcher.Matches(change.Column, col.Name) {
				out = append(out, Record{
					SourceModel:    model,
					SourceColumn:   change.Column,
					Change:         change.Change,
					ImpactedModel:  consumer,
					ImpactedColumn: col.Name,
				})
			}
		}
	}
	return out
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ImpactedModel != b.ImpactedModel {
			return a.ImpactedModel < b.ImpactedModel
		}
		if a.SourceColumn != b.SourceColumn {
			return a.SourceColumn < b.SourceColumn
		}
		return a.ImpactedColumn < b.ImpactedColumn
	})
}
