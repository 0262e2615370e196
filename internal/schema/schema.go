// Package schema defines column inventories for model versions and the
// extraction logic that produces them, either from a live relation's catalog
// metadata or statically from a model's defining SQL.
package schema

import (
	"strings"
)

// TypeUnknown is the declared type used when no type can be inferred for a
// projected expression.
const TypeUnknown = "unknown"

// TypeNumeric is the inferred type for aggregate expressions.
const TypeNumeric = "numeric"

// Column describes one output column of a model version.
// Columns are immutable values; a fresh inventory is built per extraction.
type Column struct {
	// Name is the comparison key across versions.
	Name string
	// Type is the declared or inferred data type, TypeUnknown if neither.
	Type string
	// Expression is the source expression that produced the column, when
	// extracted from SQL. Empty for catalog-reported columns.
	Expression string
}

// Inventory is the ordered column list of one model version.
type Inventory struct {
	Model   string
	Columns []Column
}

// Index builds a normalized-name lookup over the inventory using the given
// policy. Later duplicates (after normalization) are dropped; the first
// occurrence wins, matching catalog ordering.
func (inv *Inventory) Index(policy NamePolicy) map[string]Column {
	idx := make(map[string]Column, len(inv.Columns))
	for _, col := range inv.Columns {
		key := policy.Normalize(col.Name)
		if _, exists := idx[key]; !exists {
			idx[key] = col
		}
	}
	return idx
}

// Names returns the column names in inventory order.
func (inv *Inventory) Names() []string {
	names := make([]string, len(inv.Columns))
	for i, col := range inv.Columns {
		names[i] = col.Name
	}
	return names
}

// NamePolicy fixes how column names are compared across the whole analysis.
// The differ, the statistical comparator, and the impact propagator all share
// one policy instance so that matching is never mixed between call sites.
type NamePolicy struct {
	// CaseSensitive compares names byte-for-byte when true. The default is
	// case-insensitive matching, which is what SQL engines report for
	// unquoted identifiers.
	CaseSensitive bool
}

// Normalize returns the comparison key for a column name.
func (p NamePolicy) Normalize(name string) string {
	name = strings.TrimSpace(name)
	if p.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// Equal reports whether two names match under the policy.
func (p NamePolicy) Equal(a, b string) bool {
	return p.Normalize(a) == p.Normalize(b)
}

// Contains reports whether name contains sub under the policy's
// normalization. Used by the substring reference matcher.
func (p NamePolicy) Contains(name, sub string) bool {
	return strings.Contains(p.Normalize(name), p.Normalize(sub))
}

// NumericTypes lists type names treated as numeric for statistics purposes.
// Matching is prefix-based so parameterized types (decimal(18,2)) qualify.
var numericTypes = []string{
	"int", "bigint", "smallint", "tinyint", "integer", "hugeint",
	"decimal", "numeric", "double", "float", "real",
}

// IsNumericType reports whether a declared type should get min/max/avg
// statistics in addition to counts.
func IsNumericType(typ string) bool {
	t := strings.ToLower(strings.TrimSpace(typ))
	for _, n := range numericTypes {
		if strings.HasPrefix(t, n) {
			return true
		}
	}
	return false
}
