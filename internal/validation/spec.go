// Package validation checks documents against per-collection specifications.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Field types a FieldSpec can require.
const (
	TypeAny     = "any"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// FieldSpec constrains one field, addressed by a dotted path.
type FieldSpec struct {
	Type      string `yaml:"type" json:"type"`
	Mandatory bool   `yaml:"mandatory" json:"mandatory"`
}

// CollectionSpec is the validation specification of one collection.
type CollectionSpec struct {
	// Strict rejects fields not declared in Fields.
	Strict bool                 `yaml:"strict" json:"strict"`
	Fields map[string]FieldSpec `yaml:"fields" json:"fields"`
	// Validators are CEL expressions over `doc` that must evaluate to true.
	Validators []string `yaml:"validators" json:"validators"`
}

// Specs maps index to collection to specification.
type Specs map[string]map[string]CollectionSpec

// Validate checks the declared field types.
func (s Specs) Validate() error {
	for index, collections := range s {
		for collection, spec := range collections {
			for name, f := range spec.Fields {
				switch f.Type {
				case "", TypeAny, TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
				default:
					return fmt.Errorf("%s/%s: field %q has unknown type %q", index, collection, name, f.Type)
				}
			}
		}
	}
	return nil
}

// LoadFile reads specifications from a YAML or JSON file.
func LoadFile(filename string) (Specs, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read validation specs: %w", err)
	}

	var specs Specs
	switch filepath.Ext(filename) {
	case ".json":
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON validation specs: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("failed to parse YAML validation specs: %w", err)
		}
	}
	if specs == nil {
		specs = Specs{}
	}
	if err := specs.Validate(); err != nil {
		return nil, err
	}
	return specs, nil
}
