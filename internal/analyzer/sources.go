package analyzer

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// InventorySource produces the column inventory of one side of the
// comparison.
type InventorySource interface {
	// Describe identifies the source in diagnostics ("catalog main.orders",
	// "revision main").
	Describe() string

	// Inventory extracts the columns. A *schema.ParseError return means the
	// definition could not be interpreted; the analyzer downgrades it to a
	// warning and continues with an empty inventory.
	Inventory(ctx context.Context) (*schema.Inventory, error)
}

// CatalogSource reads authoritative column metadata from a live relation.
type CatalogSource struct {
	Adapter  adapter.Adapter
	Relation string
	Model    string
}

func (s *CatalogSource) Describe() string {
	return fmt.Sprintf("catalog %s", s.Relation)
}

func (s *CatalogSource) Inventory(ctx context.Context) (*schema.Inventory, error) {
	cols, err := s.Adapter.GetColumns(ctx, s.Relation)
	if err != nil {
		return nil, err
	}

	inv := &schema.Inventory{Model: s.Model}
	for _, col := range cols {
		inv.Columns = append(inv.Columns, schema.Column{Name: col.Name, Type: col.Type})
	}
	return inv, nil
}

// TextSource statically extracts columns from defining SQL text, used when
// the old side exists only as an unbuilt revision.
type TextSource struct {
	Model   string
	SQL     string
	Options schema.ExtractOptions
	Ref     string
}

func (s *TextSource) Describe() string {
	if s.Ref != "" {
		return fmt.Sprintf("revision %s", s.Ref)
	}
	return fmt.Sprintf("definition of %s", s.Model)
}

func (s *TextSource) Inventory(_ context.Context) (*schema.Inventory, error) {
	return schema.Extract(s.Model, s.SQL, s.Options)
}
