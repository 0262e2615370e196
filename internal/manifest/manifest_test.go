package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdiff/internal/schema"
)

const testManifest = `{
  "nodes": {
    "model.shop.orders": {
      "name": "orders",
      "resource_type": "model",
      "path": "models/orders.sql",
      "raw_sql": "SELECT id, SUM(amount) AS amount FROM raw_orders GROUP BY id",
      "depends_on": {"nodes": ["source.shop.raw_orders"]}
    },
    "model.shop.revenue": {
      "name": "revenue",
      "resource_type": "model",
      "path": "models/revenue.sql",
      "raw_sql": "SELECT id, amount FROM orders",
      "depends_on": {"nodes": ["model.shop.orders"]},
      "columns": {
        "id": {"data_type": "int"},
        "amount": {"data_type": "numeric"}
      }
    },
    "test.shop.not_null_orders_id": {
      "name": "not_null_orders_id",
      "resource_type": "test",
      "depends_on": {"nodes": ["model.shop.orders"]}
    }
  }
}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	assert.Len(t, m.Nodes, 3)
	assert.Equal(t, []string{"orders", "revenue"}, m.ModelNames(), "non-model resources are excluded from names")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeManifest(t, "{not json"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	id, ok := m.Resolve("orders")
	require.True(t, ok)
	assert.Equal(t, "model.shop.orders", id)

	id, ok = m.Resolve("model.shop.orders")
	require.True(t, ok)
	assert.Equal(t, "model.shop.orders", id)

	_, ok = m.Resolve("nonexistent")
	assert.False(t, ok)
}

func TestGraph(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	g := m.Graph()

	// orders -> revenue and orders -> not_null_orders_id; the pruned source
	// appears as a bare node feeding orders.
	assert.ElementsMatch(t, []string{"revenue", "not_null_orders_id"}, g.Consumers("orders"))
	assert.Equal(t, []string{"raw_orders"}, g.Dependencies("orders"))
	assert.Empty(t, g.Consumers("revenue"))
}

func TestInventory_DeclaredColumns(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	inv, err := m.Inventory("revenue", schema.ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, "revenue", inv.Model)
	require.Len(t, inv.Columns, 2)
	assert.Equal(t, schema.Column{Name: "amount", Type: "numeric"}, inv.Columns[0])
	assert.Equal(t, schema.Column{Name: "id", Type: "int"}, inv.Columns[1])
}

func TestInventory_ExtractedFromRawSQL(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	inv, err := m.Inventory("orders", schema.ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, "orders", inv.Model)
	require.Len(t, inv.Columns, 2)
	assert.Equal(t, "id", inv.Columns[0].Name)
	assert.Equal(t, "amount", inv.Columns[1].Name)
	assert.Equal(t, schema.TypeNumeric, inv.Columns[1].Type, "aggregate output is numeric")
}

func TestInventory_UnknownModel(t *testing.T) {
	m, err := Load(writeManifest(t, testManifest))
	require.NoError(t, err)

	_, err = m.Inventory("ghost", schema.ExtractOptions{})
	assert.Error(t, err)
}

func TestLoadSchemaYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yml")
	content := `
models:
  - name: orders
    columns:
      - name: id
        data_type: int
      - name: amount
        data_type: numeric
      - name: note
  - name: revenue
    columns:
      - name: total
        data_type: numeric
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	invs, err := LoadSchemaYAML(path)
	require.NoError(t, err)
	require.Len(t, invs, 2)

	orders := invs["orders"]
	require.NotNil(t, orders)
	require.Len(t, orders.Columns, 3)
	assert.Equal(t, "int", orders.Columns[0].Type)
	assert.Equal(t, schema.TypeUnknown, orders.Columns[2].Type, "undeclared data_type falls back to unknown")
}

func TestLoadSchemaYAML_Errors(t *testing.T) {
	_, err := LoadSchemaYAML(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - not valid"), 0o644))
	_, err = LoadSchemaYAML(path)
	assert.Error(t, err)
}

func TestSourceTypes(t *testing.T) {
	invs := map[string]*schema.Inventory{
		"orders": {Model: "orders", Columns: []schema.Column{
			{Name: "ID", Type: "int"},
			{Name: "amount", Type: "numeric"},
		}},
		"customers": {Model: "customers", Columns: []schema.Column{
			{Name: "name", Type: "varchar"},
		}},
	}

	types := SourceTypes(invs, schema.NamePolicy{})
	assert.Equal(t, "int", types["id"], "names are normalized")
	assert.Equal(t, "numeric", types["amount"])
	assert.Equal(t, "varchar", types["name"])
}
