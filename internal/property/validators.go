package property

import (
	"fmt"
	"math"
)

// Named validators available to the property manifest (spec.md §9's
// code-generated property store; the manifest's `validate:` field names one
// of these by key). Kept as a small fixed registry rather than arbitrary
// expression evaluation, matching the "fixed set of value formats known at
// compile time" design direction.
var NamedValidators = map[string]Validator{
	"finite_positive": FinitePositive,
	"finite":          Finite,
	"non_empty":       NonEmpty,
}

// FinitePositive rejects non-finite or non-positive float values.
func FinitePositive(v Value) error {
	if v.Format != FormatFloat {
		return fmt.Errorf("finite_positive: value is not a float")
	}
	if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) || v.Float <= 0 {
		return fmt.Errorf("finite_positive: %v is not a finite positive number", v.Float)
	}
	return nil
}

// Finite rejects NaN/Inf float values.
func Finite(v Value) error {
	if v.Format != FormatFloat {
		return fmt.Errorf("finite: value is not a float")
	}
	if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return fmt.Errorf("finite: %v is not finite", v.Float)
	}
	return nil
}

// NonEmpty rejects a zero-length string or symbol value.
func NonEmpty(v Value) error {
	switch v.Format {
	case FormatString:
		if len(v.Str) == 0 {
			return fmt.Errorf("non_empty: string is empty")
		}
	case FormatSymbol:
		if v.Symbol == "" {
			return fmt.Errorf("non_empty: symbol is empty")
		}
	default:
		return fmt.Errorf("non_empty: value is not a string or symbol")
	}
	return nil
}
