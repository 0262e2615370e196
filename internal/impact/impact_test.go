package impact

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdiff/internal/dag"
	"github.com/leapstack-labs/leapdiff/internal/diff"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

func testGraph(t *testing.T, edges map[string][]string) *dag.Graph {
	t.Helper()
	g := dag.NewGraph()
	for parent, children := range edges {
		g.AddNode(parent)
		for _, child := range children {
			g.AddNode(child)
		}
	}
	for parent, children := range edges {
		for _, child := range children {
			require.NoError(t, g.AddEdge(parent, child))
		}
	}
	return g
}

func fixedInventories(invs map[string]*schema.Inventory) InventoryProvider {
	return func(model string) (*schema.Inventory, error) {
		inv, ok := invs[model]
		if !ok {
			return nil, fmt.Errorf("no inventory for %s", model)
		}
		return inv, nil
	}
}

func typeChanged(model, column string) diff.ChangeRecord {
	return diff.ChangeRecord{Model: model, Column: column, Change: diff.TypeChanged, OldType: "numeric", NewType: "varchar"}
}

func TestPropagate_EmptyGraph(t *testing.T) {
	g := dag.NewGraph()
	g.AddNode("a")

	p := NewPropagator(g, fixedInventories(nil), SubstringMatcher{}, nil)
	records, skipped := p.Propagate("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	assert.Empty(t, records)
	assert.Empty(t, skipped)
}

func TestPropagate_MatchingConsumer(t *testing.T) {
	g := testGraph(t, map[string][]string{"a": {"b", "c"}})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "amount"}, {Name: "other"}}},
		"c": {Model: "c", Columns: []schema.Column{{Name: "unrelated"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), SubstringMatcher{}, nil)
	records, skipped := p.Propagate("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	require.Len(t, records, 1)
	assert.Empty(t, skipped)
	assert.Equal(t, Record{
		SourceModel:    "a",
		SourceColumn:   "amount",
		Change:         diff.TypeChanged,
		ImpactedModel:  "b",
		ImpactedColumn: "amount",
	}, records[0])
}

func TestPropagate_SubstringMatch(t *testing.T) {
	g := testGraph(t, map[string][]string{"a": {"b"}})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "total_amount_usd"}, {Name: "count"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), SubstringMatcher{}, nil)
	records, _ := p.Propagate("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	require.Len(t, records, 1)
	assert.Equal(t, "total_amount_usd", records[0].ImpactedColumn)
}

func TestPropagate_ExactMatcherIgnoresDerivedColumns(t *testing.T) {
	g := testGraph(t, map[string][]string{"a": {"b"}})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "total_amount_usd"}, {Name: "AMOUNT"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), ExactMatcher{}, nil)
	records, _ := p.Propagate("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	require.Len(t, records, 1)
	assert.Equal(t, "AMOUNT", records[0].ImpactedColumn)
}

func TestPropagate_UnchangedRecordsIgnored(t *testing.T) {
	g := testGraph(t, map[string][]string{"a": {"b"}})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "amount"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), SubstringMatcher{}, nil)
	records, _ := p.Propagate("a", []diff.ChangeRecord{
		{Model: "a", Column: "amount", Change: diff.Unchanged},
	})

	assert.Empty(t, records)
}

func TestPropagate_SkipsUnresolvableConsumer(t *testing.T) {
	g := testGraph(t, map[string][]string{"a": {"b", "broken"}})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "amount"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), SubstringMatcher{}, nil)
	records, skipped := p.Propagate("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	require.Len(t, records, 1, "resolvable consumers must still be reported")
	require.Len(t, skipped, 1)
	assert.Equal(t, "broken", skipped[0].Model)
	assert.Error(t, skipped[0].Err)
}

func TestPropagateTransitive_WalksClosureAndSurvivesCycles(t *testing.T) {
	g := testGraph(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"b"}, // cycle
	})
	invs := map[string]*schema.Inventory{
		"b": {Model: "b", Columns: []schema.Column{{Name: "amount"}}},
		"c": {Model: "c", Columns: []schema.Column{{Name: "amount_total"}}},
	}

	p := NewPropagator(g, fixedInventories(invs), SubstringMatcher{}, nil)
	records, skipped := p.PropagateTransitive("a", []diff.ChangeRecord{typeChanged("a", "amount")})

	assert.Empty(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ImpactedModel)
	assert.Equal(t, "c", records[1].ImpactedModel)
}

func TestMatcherFor(t *testing.T) {
	policy := schema.NamePolicy{}

	assert.IsType(t, SubstringMatcher{}, MatcherFor("substring", policy))
	assert.IsType(t, SubstringMatcher{}, MatcherFor("", policy))
	assert.IsType(t, ExactMatcher{}, MatcherFor("exact", policy))
}
