package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// schemaFile mirrors the models section of a schema.yml file.
type schemaFile struct {
	Models []struct {
		Name    string `yaml:"name"`
		Columns []struct {
			Name     string `yaml:"name"`
			DataType string `yaml:"data_type"`
		} `yaml:"columns"`
	} `yaml:"models"`
}

// LoadSchemaYAML reads declared column inventories from a schema.yml file.
// Columns without a declared data_type get TypeUnknown.
func LoadSchemaYAML(path string) (map[string]*schema.Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	out := make(map[string]*schema.Inventory, len(sf.Models))
	for _, model := range sf.Models {
		inv := &schema.Inventory{Model: model.Name}
		for _, col := range model.Columns {
			typ := col.DataType
			if typ == "" {
				typ = schema.TypeUnknown
			}
			inv.Columns = append(inv.Columns, schema.Column{Name: col.Name, Type: typ})
		}
		out[model.Name] = inv
	}
	return out, nil
}

// SourceTypes flattens declared inventories into the normalized name -> type
// map used for pass-through type resolution during static extraction.
func SourceTypes(inventories map[string]*schema.Inventory, policy schema.NamePolicy) map[string]string {
	types := make(map[string]string)
	for _, inv := range inventories {
		for _, col := range inv.Columns {
			key := policy.Normalize(col.Name)
			if _, exists := types[key]; !exists {
				types[key] = col.Type
			}
		}
	}
	return types
}
