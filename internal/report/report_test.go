package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdiff/internal/diff"
	"github.com/leapstack-labs/leapdiff/internal/impact"
	"github.com/leapstack-labs/leapdiff/internal/stats"
)

func sampleReport() *Report {
	meta := Metadata{
		Model:       "orders",
		OldRef:      "main",
		NewRef:      "workspace",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	schema := []diff.ChangeRecord{
		{Model: "orders", Column: "date", Change: diff.Added, NewType: "timestamp"},
		{Model: "orders", Column: "amount", Change: diff.TypeChanged, OldType: "numeric", NewType: "varchar"},
		{Model: "orders", Column: "id", Change: diff.Unchanged, OldType: "int", NewType: "int"},
	}
	statsResult := &stats.Result{
		Dataset: stats.Delta{Scope: "orders", Metric: stats.MetricRowCount, OldValue: 100, NewValue: 120, Difference: 20, PercentChange: 20},
		Columns: []stats.Delta{
			{Scope: "orders.amount", Column: "amount", Metric: stats.MetricDistinct, OldValue: 5, NewValue: 5},
		},
	}
	impacts := []impact.Record{
		{SourceModel: "orders", SourceColumn: "amount", Change: diff.TypeChanged, ImpactedModel: "revenue", ImpactedColumn: "total_amount"},
		{SourceModel: "orders", SourceColumn: "amount", Change: diff.TypeChanged, ImpactedModel: "finance", ImpactedColumn: "amount"},
	}
	diags := []Diagnostic{
		{Severity: SeverityWarning, Component: "stats", Message: "column skipped"},
		{Severity: SeverityWarning, Component: "impact", Message: "consumer unresolvable"},
	}
	return Assemble(meta, schema, statsResult, impacts, diags)
}

func TestAssemble_Ordering(t *testing.T) {
	r := sampleReport()

	require.Len(t, r.Schema, 3)
	assert.Equal(t, "amount", r.Schema[0].Column)
	assert.Equal(t, "date", r.Schema[1].Column)
	assert.Equal(t, "id", r.Schema[2].Column)

	require.Len(t, r.Stats, 2)
	assert.Equal(t, stats.MetricRowCount, r.Stats[0].Metric, "dataset delta comes first")

	require.Len(t, r.Impacts, 2)
	assert.Equal(t, "finance", r.Impacts[0].ImpactedModel)
	assert.Equal(t, "revenue", r.Impacts[1].ImpactedModel)

	require.Len(t, r.Diagnostics, 2)
	assert.Equal(t, "impact", r.Diagnostics[0].Component)
	assert.Equal(t, "stats", r.Diagnostics[1].Component)
}

func TestAssemble_Deterministic(t *testing.T) {
	var first, second bytes.Buffer
	require.NoError(t, RenderJSON(&first, sampleReport()))
	require.NoError(t, RenderJSON(&second, sampleReport()))

	assert.Equal(t, first.String(), second.String())
}

func TestAssemble_NilStats(t *testing.T) {
	r := Assemble(Metadata{Model: "orders"}, nil, nil, nil, nil)

	assert.Empty(t, r.Stats)
	assert.Empty(t, r.Schema)
	assert.Empty(t, r.Impacts)
	assert.False(t, r.HasChanges())
}

func TestHasChanges(t *testing.T) {
	assert.True(t, sampleReport().HasChanges())

	unchanged := Assemble(Metadata{Model: "orders"}, []diff.ChangeRecord{
		{Model: "orders", Column: "id", Change: diff.Unchanged, OldType: "int", NewType: "int"},
	}, &stats.Result{
		Dataset: stats.Delta{Scope: "orders", Metric: stats.MetricRowCount, OldValue: 10, NewValue: 10},
	}, nil, nil)
	assert.False(t, unchanged.HasChanges())

	statsOnly := Assemble(Metadata{Model: "orders"}, nil, &stats.Result{
		Dataset: stats.Delta{Scope: "orders", Metric: stats.MetricRowCount, OldValue: 10, NewValue: 12, Difference: 2, PercentChange: 20},
	}, nil, nil)
	assert.True(t, statsOnly.HasChanges())
}

func TestRows(t *testing.T) {
	r := sampleReport()

	schemaRows := r.SchemaRows()
	require.Len(t, schemaRows, 3)
	assert.Equal(t, []string{"orders", "amount", "TYPE_CHANGED", "numeric", "varchar"}, schemaRows[0])

	statsRows := r.StatsRows()
	require.Len(t, statsRows, 2)
	assert.Equal(t, []string{"orders", "row_count", "100", "120", "20", "20.00"}, statsRows[0])

	impactRows := r.ImpactRows()
	require.Len(t, impactRows, 2)
	assert.Equal(t, []string{"orders", "amount", "TYPE_CHANGED", "finance", "amount"}, impactRows[0])
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	RenderText(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "Comparison: orders (main -> workspace)")
	assert.Contains(t, out, "Schema changes (3)")
	assert.Contains(t, out, "Statistics (2)")
	assert.Contains(t, out, "Downstream impact (2)")
	assert.Contains(t, out, "TYPE_CHANGED")
	assert.Contains(t, out, "Diagnostics:")
	assert.Contains(t, out, "[warning] stats: column skipped")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, sampleReport()))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "orders", decoded.Metadata.Model)
	assert.Len(t, decoded.Schema, 3)
	assert.Len(t, decoded.Stats, 2)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteCSV(dir, "orders_run", sampleReport())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	assert.Equal(t, filepath.Join(dir, "orders_run_schema.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "orders_run_stats.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "orders_run_impact.csv"), paths[2])

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three schema rows")
	assert.Equal(t, SchemaHeader, records[0])
	assert.Equal(t, []string{"orders", "amount", "TYPE_CHANGED", "numeric", "varchar"}, records[1])
}
