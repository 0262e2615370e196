// Package stats computes row-count and per-column statistics for two
// versions of a dataset and derives deltas between them.
//
// Each side is measured with exactly one aggregate query returning all
// metrics in one pass, so the numbers form a consistent snapshot and the
// cost does not scale with the number of columns.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
)

// Metric names emitted by the comparator.
const (
	MetricRowCount = "row_count"
	MetricNonNull  = "non_null_count"
	MetricDistinct = "distinct_count"
	MetricMin      = "min"
	MetricMax      = "max"
	MetricAvg      = "avg"
)

// ZeroBaselinePercent is the documented sentinel reported as percent change
// when the baseline value is zero. Division is never attempted against a
// zero baseline.
const ZeroBaselinePercent = 0.0

// aliasSep separates metric name from column name in result aliases.
const aliasSep = "__"

// Delta is the comparison of one metric between the two sides.
type Delta struct {
	// Scope is the model name for dataset-level metrics, or
	// "model.column" for per-column metrics.
	Scope         string
	Column        string
	Metric        string
	OldValue      float64
	NewValue      float64
	Difference    float64
	PercentChange float64
}

// SkippedColumn records a column listed as common that was missing from one
// side's executed aggregate (schema drift during execution). Its deltas are
// omitted with a warning instead of aborting the comparison.
type SkippedColumn struct {
	Column string
	Reason string
}

// Result holds all deltas of one comparison.
type Result struct {
	Dataset Delta
	Columns []Delta
	Skipped []SkippedColumn
}

// ColumnSpec names a column eligible for statistics. Numeric columns
// additionally get min/max/avg. Name is the canonical (normalized) name used
// in aliases and deltas; each side maps it back to its own physical
// identifier.
type ColumnSpec struct {
	Name    string
	Numeric bool
}

// Querier is the adapter surface the comparator needs.
type Querier interface {
	Query(ctx context.Context, sql string) (*adapter.Rows, error)
	QuoteIdent(name string) string
}

// Side is one version of the dataset: where to run the query and which
// relation to measure.
type Side struct {
	Querier  Querier
	Relation string

	// Names maps canonical column names to this side's physical identifiers.
	// Physical casing can differ between sides under case-insensitive
	// matching; a missing entry falls back to the canonical name.
	Names map[string]string
}

// columnName resolves a canonical column name to the side's physical
// identifier.
func (s Side) columnName(name string) string {
	if phys, ok := s.Names[name]; ok {
		return phys
	}
	return name
}

// ExecutionError wraps a failed aggregate query. The caller omits that
// dataset's stats section rather than aborting the whole analysis.
type ExecutionError struct {
	Relation string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("aggregate query failed for %s: %v", e.Relation, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Comparator measures and compares two dataset versions.
type Comparator struct {
	logger *slog.Logger
}

// NewComparator creates a comparator. A nil logger discards log output.
func NewComparator(logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Comparator{logger: logger}
}

// Compare measures both sides and derives deltas for the dataset row count
// and for every common column's metrics.
func (c *Comparator) Compare(ctx context.Context, model string, old, new Side, columns []ColumnSpec) (*Result, error) {
	oldSamples, err := c.measure(ctx, old, columns)
	if err != nil {
		return nil, err
	}
	newSamples, err := c.measure(ctx, new, columns)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Dataset: makeDelta(model, "", MetricRowCount, oldSamples[MetricRowCount], newSamples[MetricRowCount]),
	}

	for _, col := range columns {
		metrics := []string{MetricNonNull, MetricDistinct}
		if col.Numeric {
			metrics = append(metrics, MetricMin, MetricMax, MetricAvg)
		}

		missing := false
		for _, metric := range metrics {
			key := metric + aliasSep + col.Name
			oldVal, inOld := oldSamples[key]
			newVal, inNew := newSamples[key]
			if !inOld || !inNew {
				c.logger.Warn("column missing from aggregate result, skipping",
					slog.String("model", model), slog.String("column", col.Name))
				result.Skipped = append(result.Skipped, SkippedColumn{
					Column: col.Name,
					Reason: "column missing from executed aggregate",
				})
				missing = true
				break
			}
			result.Columns = append(result.Columns, makeDelta(model, col.Name, metric, oldVal, newVal))
		}
		if missing {
			// Drop any partial deltas already appended for this column.
			result.Columns = trimColumn(result.Columns, model, col.Name)
		}
	}

	sortDeltas(result.Columns)
	return result, nil
}

// measure runs the single aggregate query for one side and returns its
// scalar results keyed by alias.
func (c *Comparator) measure(ctx context.Context, side Side, columns []ColumnSpec) (map[string]float64, error) {
	query := BuildAggregateQuery(side, columns)
	c.logger.Debug("running aggregate query", slog.String("relation", side.Relation))

	rows, err := side.Querier.Query(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Relation: side.Relation, Err: err}
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Relation: side.Relation, Err: err}
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &ExecutionError{Relation: side.Relation, Err: err}
		}
		return nil, &ExecutionError{Relation: side.Relation, Err: fmt.Errorf("aggregate query returned no rows")}
	}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, &ExecutionError{Relation: side.Relation, Err: err}
	}

	samples := make(map[string]float64, len(names))
	for i, name := range names {
		samples[name] = toFloat(values[i])
	}
	return samples, nil
}

// BuildAggregateQuery renders the one-pass aggregate statement for one side.
// Measured identifiers are the side's physical column names; every metric is
// aliased as metric__column using the canonical name, so results from both
// sides can be matched back without positional coupling.
func BuildAggregateQuery(side Side, columns []ColumnSpec) string {
	q := side.Querier
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) AS ")
	b.WriteString(q.QuoteIdent(MetricRowCount))

	for _, col := range columns {
		ident := q.QuoteIdent(side.columnName(col.Name))
		fmt.Fprintf(&b, ", COUNT(%s) AS %s", ident, q.QuoteIdent(MetricNonNull+aliasSep+col.Name))
		fmt.Fprintf(&b, ", COUNT(DISTINCT %s) AS %s", ident, q.QuoteIdent(MetricDistinct+aliasSep+col.Name))
		if col.Numeric {
			fmt.Fprintf(&b, ", MIN(%s) AS %s", ident, q.QuoteIdent(MetricMin+aliasSep+col.Name))
			fmt.Fprintf(&b, ", MAX(%s) AS %s", ident, q.QuoteIdent(MetricMax+aliasSep+col.Name))
			fmt.Fprintf(&b, ", AVG(%s) AS %s", ident, q.QuoteIdent(MetricAvg+aliasSep+col.Name))
		}
	}

	b.WriteString(" FROM ")
	b.WriteString(side.Relation)
	return b.String()
}

// makeDelta derives a Delta from two samples sharing a scope and metric.
func makeDelta(model, column, metric string, oldVal, newVal float64) Delta {
	scope := model
	if column != "" {
		scope = model + "." + column
	}

	diff := newVal - oldVal
	percent := ZeroBaselinePercent
	if oldVal != 0 {
		percent = diff / oldVal * 100
	}

	return Delta{
		Scope:         scope,
		Column:        column,
		Metric:        metric,
		OldValue:      oldVal,
		NewValue:      newVal,
		Difference:    diff,
		PercentChange: percent,
	}
}

// trimColumn removes deltas already emitted for a column that turned out to
// be missing on one side.
func trimColumn(deltas []Delta, model, column string) []Delta {
	scope := model + "." + column
	out := deltas[:0]
	for _, d := range deltas {
		if d.Scope != scope {
			out = append(out, d)
		}
	}
	return out
}

func sortDeltas(deltas []Delta) {
	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].Column != deltas[j].Column {
			return deltas[i].Column < deltas[j].Column
		}
		return deltas[i].Metric < deltas[j].Metric
	})
}

// toFloat converts a scanned scalar to float64. NULL aggregates (min/max/avg
// over zero rows) count as zero.
func toFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case int:
		return float64(val)
	case uint64:
		return float64(val)
	case float64:
		return val
	case float32:
		return float64(val)
	case []byte:
		f, _ := strconv.ParseFloat(string(val), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
