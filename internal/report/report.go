// Package report assembles the schema diff, statistical deltas, and impact
// records of one comparison run into a single deterministic result.
package report

import (
	"sort"
	"time"

	"github.com/leapstack-labs/leapdiff/internal/diff"
	"github.com/leapstack-labs/leapdiff/internal/impact"
	"github.com/leapstack-labs/leapdiff/internal/stats"
)

// Severity of a diagnostic entry.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic records a recoverable failure that degraded one section of the
// report instead of aborting the run.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Component string   `json:"component"`
	Message   string   `json:"message"`
}

// Metadata identifies what was compared and when.
type Metadata struct {
	Model       string    `json:"model"`
	OldRef      string    `json:"old_ref"`
	NewRef      string    `json:"new_ref"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report is the immutable aggregate of one comparison run. It is assembled
// once and owned by the caller for serialization.
type Report struct {
	Metadata    Metadata            `json:"metadata"`
	Schema      []diff.ChangeRecord `json:"schema"`
	Stats       []stats.Delta       `json:"stats"`
	Impacts     []impact.Record     `json:"impacts"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
}

// Assemble merges the component results into a Report. It is a pure merge:
// nothing is recomputed or filtered, only ordered. Given the same inputs the
// serialized output is identical, so fixtures stay diffable.
func Assemble(meta Metadata, schema []diff.ChangeRecord, statsResult *stats.Result, impacts []impact.Record, diags []Diagnostic) *Report {
	r := &Report{
		Metadata:    meta,
		Schema:      append([]diff.ChangeRecord(nil), schema...),
		Impacts:     append([]impact.Record(nil), impacts...),
		Diagnostics: append([]Diagnostic(nil), diags...),
	}

	if statsResult != nil {
		r.Stats = append(r.Stats, statsResult.Dataset)
		r.Stats = append(r.Stats, statsResult.Columns...)
	}

	sort.SliceStable(r.Schema, func(i, j int) bool {
		if r.Schema[i].Model != r.Schema[j].Model {
			return r.Schema[i].Model < r.Schema[j].Model
		}
		return r.Schema[i].Column < r.Schema[j].Column
	})
	sort.SliceStable(r.Impacts, func(i, j int) bool {
		a, b := r.Impacts[i], r.Impacts[j]
		if a.ImpactedModel != b.ImpactedModel {
			return a.ImpactedModel < b.ImpactedModel
		}
		if a.SourceColumn != b.SourceColumn {
			return a.SourceColumn < b.SourceColumn
		}
		return a.ImpactedColumn < b.ImpactedColumn
	})
	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		if r.Diagnostics[i].Component != r.Diagnostics[j].Component {
			return r.Diagnostics[i].Component < r.Diagnostics[j].Component
		}
		return r.Diagnostics[i].Message < r.Diagnostics[j].Message
	})
	// Stats keep their comparator order: dataset row first, then columns
	// sorted by (column, metric).

	return r
}

// HasChanges reports whether any section carries an actual difference.
func (r *Report) HasChanges() bool {
	for _, rec := range r.Schema {
		if rec.Changed() {
			return true
		}
	}
	for _, d := range r.Stats {
		if d.Difference != 0 {
			return true
		}
	}
	return len(r.Impacts) > 0
}

// Table headers for the three flat row tables.
var (
	SchemaHeader = []string{"model", "column", "change_type", "old_type", "new_type"}
	StatsHeader  = []string{"scope", "metric", "old_value", "new_value", "difference", "percent_change"}
	ImpactHeader = []string{"source_model", "source_column", "change_type", "impacted_model", "impacted_column"}
)

// SchemaRows returns the schema table as flat rows, excluding the header.
func (r *Report) SchemaRows() [][]string {
	rows := make([][]string, 0, len(r.Schema))
	for _, rec := range r.Schema {
		rows = append(rows, []string{rec.Model, rec.Column, string(rec.Change), rec.OldType, rec.NewType})
	}
	return rows
}

// StatsRows returns the stats table as flat rows, excluding the header.
func (r *Report) StatsRows() [][]string {
	rows := make([][]string, 0, len(r.Stats))
	for _, d := range r.Stats {
		rows = append(rows, []string{
			d.Scope,
			d.Metric,
			formatValue(d.OldValue),
			formatValue(d.NewValue),
			formatValue(d.Difference),
			formatPercent(d.PercentChange),
		})
	}
	return rows
}

// ImpactRows returns the impact table as flat rows, excluding the header.
func (r *Report) ImpactRows() [][]string {
	rows := make([][]string, 0, len(r.Impacts))
	for _, rec := range r.Impacts {
		rows = append(rows, []string{
			rec.SourceModel, rec.SourceColumn, string(rec.Change), rec.ImpactedModel, rec.ImpactedColumn,
		})
	}
	return rows
}
