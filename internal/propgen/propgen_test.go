package propgen

import (
	"strings"
	"testing"
)

const sampleManifest = `
properties:
  - key: Volume
    type: float
    access: read_write
    validate: finite_positive
  - key: Position
    type: float
    access: read
`

func TestParseManifestValid(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(m.Properties))
	}
	if m.Properties[0].Key != "Volume" || m.Properties[0].Validate != "finite_positive" {
		t.Errorf("unexpected first property: %+v", m.Properties[0])
	}
}

func TestParseManifestMissingKeyErrors(t *testing.T) {
	_, err := ParseManifest([]byte(`
properties:
  - type: float
    access: read
`))
	if err == nil {
		t.Fatal("expected error for property missing key")
	}
}

func TestParseManifestUnknownTypeErrors(t *testing.T) {
	_, err := ParseManifest([]byte(`
properties:
  - key: X
    type: nonsense
    access: read
`))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseManifestUnknownAccessErrors(t *testing.T) {
	_, err := ParseManifest([]byte(`
properties:
  - key: X
    type: int
    access: nonsense
`))
	if err == nil {
		t.Fatal("expected error for unknown access")
	}
}

func TestGenerateProducesValidGoSource(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	src, err := Generate(m, Options{Package: "properties", FuncName: "Descriptors", SourceManifest: "test.yaml"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := string(src)

	if !strings.Contains(out, "package properties") {
		t.Error("expected package declaration in generated source")
	}
	if !strings.Contains(out, "func Descriptors() []property.Descriptor") {
		t.Error("expected descriptor function signature in generated source")
	}
	if !strings.Contains(out, `Key:    "Volume"`) && !strings.Contains(out, `Key: "Volume"`) {
		t.Error("expected Volume key in generated source")
	}
	if !strings.Contains(out, "property.NamedValidators[\"finite_positive\"]") {
		t.Error("expected validator reference in generated source")
	}
	if !strings.Contains(out, "DO NOT EDIT") {
		t.Error("expected generated-code header comment")
	}
}

func TestGenerateUnknownValidatorErrors(t *testing.T) {
	m, err := ParseManifest([]byte(`
properties:
  - key: X
    type: float
    access: read
    validate: not_a_real_validator
`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if _, err := Generate(m, Options{}); err == nil {
		t.Fatal("expected error for unknown validator name")
	}
}
