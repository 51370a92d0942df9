// Package propgen reads a YAML property manifest (spec.md §9's "macro
// property stores re-architected as build-script code generation") and
// emits a Go source file defining a descriptor-list function, avoiding both
// hand-typed per-agent descriptor lists and runtime reflection.
package propgen

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level YAML document shape.
type Manifest struct {
	Properties []PropertySpec `yaml:"properties"`
}

// PropertySpec is one manifest entry.
type PropertySpec struct {
	Key      string `yaml:"key"`
	Type     string `yaml:"type"`
	Access   string `yaml:"access"`
	Validate string `yaml:"validate"`
}

// ParseManifest decodes a YAML manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("propgen: parse manifest: %w", err)
	}
	for i, p := range m.Properties {
		if p.Key == "" {
			return nil, fmt.Errorf("propgen: property %d: key is required", i)
		}
		if _, err := formatConst(p.Type); err != nil {
			return nil, fmt.Errorf("propgen: property %q: %w", p.Key, err)
		}
		if _, err := accessExpr(p.Access); err != nil {
			return nil, fmt.Errorf("propgen: property %q: %w", p.Key, err)
		}
	}
	return &m, nil
}

func formatConst(typeName string) (string, error) {
	switch typeName {
	case "int":
		return "property.FormatInt", nil
	case "float":
		return "property.FormatFloat", nil
	case "bool":
		return "property.FormatBool", nil
	case "symbol":
		return "property.FormatSymbol", nil
	case "string":
		return "property.FormatString", nil
	case "array":
		return "property.FormatArray", nil
	case "tensor":
		return "property.FormatTensor", nil
	case "tuple":
		return "property.FormatTuple", nil
	default:
		return "", fmt.Errorf("unknown type %q", typeName)
	}
}

func accessExpr(access string) (string, error) {
	switch access {
	case "read":
		return "property.Readable", nil
	case "write":
		return "property.Writable", nil
	case "read_write", "":
		return "property.Readable | property.Writable", nil
	default:
		return "", fmt.Errorf("unknown access %q", access)
	}
}
