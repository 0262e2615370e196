// Package manifest reads project metadata (a compiled manifest.json plus
// optional schema YAML files) and exposes the model dependency graph and
// per-model column inventories consumed by impact analysis.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapdiff/internal/dag"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// Node is one entry in the manifest's node map.
type Node struct {
	Name         string                `json:"name"`
	ResourceType string                `json:"resource_type"`
	Path         string                `json:"path"`
	RawSQL       string                `json:"raw_sql"`
	DependsOn    DependsOn             `json:"depends_on"`
	Columns      map[string]ColumnMeta `json:"columns"`
}

// DependsOn lists the upstream node IDs a model reads from.
type DependsOn struct {
	Nodes []string `json:"nodes"`
}

// ColumnMeta carries the declared metadata of one column.
type ColumnMeta struct {
	DataType    string `json:"data_type"`
	Description string `json:"description"`
}

// Manifest is the parsed project metadata.
type Manifest struct {
	Nodes map[string]Node `json:"nodes"`

	byName map[string]string // short model name -> node ID
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m.byName = make(map[string]string, len(m.Nodes))
	for id, node := range m.Nodes {
		if node.ResourceType != "" && node.ResourceType != "model" {
			continue
		}
		name := node.Name
		if name == "" {
			name = shortName(id)
		}
		m.byName[name] = id
	}
	return &m, nil
}

// Resolve maps a model name (short or full node ID) to its node ID.
func (m *Manifest) Resolve(model string) (string, bool) {
	if _, ok := m.Nodes[model]; ok {
		return model, true
	}
	id, ok := m.byName[model]
	return id, ok
}

// ModelNames returns the short names of all models, sorted.
func (m *Manifest) ModelNames() []string {
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Graph builds the model dependency graph. Edges point from a model to its
// consumers; references to nodes absent from the manifest (sources pruned
// from it) are added as bare nodes so traversal still works.
func (m *Manifest) Graph() *dag.Graph {
	g := dag.NewGraph()

	ids := make([]string, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		g.AddNode(shortNameOf(m.Nodes[id], id))
	}
	for _, id := range ids {
		child := shortNameOf(m.Nodes[id], id)
		for _, dep := range m.Nodes[id].DependsOn.Nodes {
			parent := dep
			if node, ok := m.Nodes[dep]; ok {
				parent = shortNameOf(node, dep)
			} else {
				parent = shortName(dep)
				g.AddNode(parent)
			}
			// Self-references cannot occur in a valid manifest; an edge
			// error here means corrupt input and the edge is dropped.
			_ = g.AddEdge(parent, child)
		}
	}
	return g
}

// Inventory returns the column inventory of a model: declared columns when
// the manifest has them, otherwise a static extraction from the model's raw
// SQL. A *schema.ParseError from extraction propagates so the caller can
// degrade it to a warning.
func (m *Manifest) Inventory(model string, opts schema.ExtractOptions) (*schema.Inventory, error) {
	id, ok := m.Resolve(model)
	if !ok {
		return nil, fmt.Errorf("model not found in manifest: %s", model)
	}
	node := m.Nodes[id]
	name := shortNameOf(node, id)

	if len(node.Columns) > 0 {
		inv := &schema.Inventory{Model: name}
		colNames := make([]string, 0, len(node.Columns))
		for colName := range node.Columns {
			colNames = append(colNames, colName)
		}
		sort.Strings(colNames)
		for _, colName := range colNames {
			typ := node.Columns[colName].DataType
			if typ == "" {
				typ = schema.TypeUnknown
			}
			inv.Columns = append(inv.Columns, schema.Column{Name: colName, Type: typ})
		}
		return inv, nil
	}

	if node.RawSQL == "" {
		return nil, fmt.Errorf("model %s has no declared columns and no raw SQL", name)
	}
	return schema.Extract(name, node.RawSQL, opts)
}

func shortNameOf(node Node, id string) string {
	if node.Name != "" {
		return node.Name
	}
	return shortName(id)
}

// shortName extracts the model name from a node ID like "model.project.orders".
func shortName(id string) string {
	parts := strings.Split(id, ".")
	return parts[len(parts)-1]
}
