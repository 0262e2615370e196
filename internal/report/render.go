package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderText writes the report as human-readable tables.
func RenderText(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Comparison: %s (%s -> %s)\n", r.Metadata.Model, r.Metadata.OldRef, r.Metadata.NewRef)
	fmt.Fprintf(w, "Generated:  %s\n\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))

	renderTable(w, "Schema changes", SchemaHeader, r.SchemaRows())
	renderTable(w, "Statistics", StatsHeader, r.StatsRows())
	renderTable(w, "Downstream impact", ImpactHeader, r.ImpactRows())

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  [%s] %s: %s\n", d.Severity, d.Component, d.Message)
		}
		fmt.Fprintln(w)
	}
}

func renderTable(w io.Writer, title string, header []string, rows [][]string) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(rows))
	if len(rows) == 0 {
		fmt.Fprintln(w)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatLower

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
	fmt.Fprintln(w)
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes the three report tables as separate CSV files in dir,
// named <prefix>_schema.csv, <prefix>_stats.csv and <prefix>_impact.csv.
// It returns the written paths.
func WriteCSV(dir, prefix string, r *Report) ([]string, error) {
	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"schema", SchemaHeader, r.SchemaRows()},
		{"stats", StatsHeader, r.StatsRows()},
		{"impact", ImpactHeader, r.ImpactRows()},
	}

	paths := make([]string, 0, len(tables))
	for _, tbl := range tables {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, tbl.name))
		if err := writeCSVFile(path, tbl.header, tbl.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

// formatValue renders a metric value without trailing zero noise.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
