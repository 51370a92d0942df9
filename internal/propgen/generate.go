package propgen

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"

	"github.com/dgamroth/rtcagent/internal/property"
)

// Options controls the generated file's package and function names.
type Options struct {
	Package      string
	FuncName     string
	SourceManifest string // recorded in the generated file's header comment
}

var tmpl = template.Must(template.New("descriptors").Parse(`// Code generated by rtcagent-propgen from {{.Opts.SourceManifest}}. DO NOT EDIT.

package {{.Opts.Package}}

import "github.com/dgamroth/rtcagent/internal/property"

// {{.Opts.FuncName}} returns the property descriptors declared in the manifest.
func {{.Opts.FuncName}}() []property.Descriptor {
	return []property.Descriptor{
{{- range .Properties}}
		{
			Key:    {{printf "%q" .Key}},
			Type:   {{.TypeExpr}},
			Access: {{.AccessExpr}},
			{{- if .ValidateExpr}}
			Validate: {{.ValidateExpr}},
			{{- end}}
		},
{{- end}}
	}
}
`))

type templateProperty struct {
	Key          string
	TypeExpr     string
	AccessExpr   string
	ValidateExpr string
}

// Generate renders m into formatted Go source per opts.
func Generate(m *Manifest, opts Options) ([]byte, error) {
	if opts.Package == "" {
		opts.Package = "properties"
	}
	if opts.FuncName == "" {
		opts.FuncName = "Descriptors"
	}

	props := make([]templateProperty, 0, len(m.Properties))
	for _, p := range m.Properties {
		typeExpr, err := formatConst(p.Type)
		if err != nil {
			return nil, err
		}
		accessExpr, err := accessExpr(p.Access)
		if err != nil {
			return nil, err
		}
		validateExpr := ""
		if p.Validate != "" {
			if _, ok := property.NamedValidators[p.Validate]; !ok {
				return nil, fmt.Errorf("propgen: property %q: unknown validator %q", p.Key, p.Validate)
			}
			validateExpr = fmt.Sprintf("property.NamedValidators[%q]", p.Validate)
		}
		props = append(props, templateProperty{
			Key:          p.Key,
			TypeExpr:     typeExpr,
			AccessExpr:   accessExpr,
			ValidateExpr: validateExpr,
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Opts       Options
		Properties []templateProperty
	}{Opts: opts, Properties: props}); err != nil {
		return nil, fmt.Errorf("propgen: render: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("propgen: gofmt generated source: %w", err)
	}
	return formatted, nil
}
