// Package property implements the agent's typed property store (spec.md
// §3) and the publication-config registry that ties properties to output
// streams (spec.md §3, §4.3). Value formats are a fixed Go enum rather than
// a dynamically typed union, per the Design Notes in spec.md §9
// ("dynamically typed property values... re-architect as a compile-time...
// enum of supported value formats").
package property

// Format discriminates the shape of a Value. It doubles as the wire format
// tag described in spec.md §6.
type Format uint8

const (
	FormatNothing Format = iota
	FormatInt
	FormatFloat
	FormatBool
	FormatSymbol
	FormatString
	FormatArray
	FormatTensor
	FormatTuple
)

func (f Format) String() string {
	switch f {
	case FormatNothing:
		return "Nothing"
	case FormatInt:
		return "Int"
	case FormatFloat:
		return "Float"
	case FormatBool:
		return "Bool"
	case FormatSymbol:
		return "Symbol"
	case FormatString:
		return "String"
	case FormatArray:
		return "Array"
	case FormatTensor:
		return "Tensor"
	case FormatTuple:
		return "Tuple"
	default:
		return "Unknown"
	}
}

// ElementFormat discriminates the primitive element type of an Array or
// Tensor value.
type ElementFormat uint8

const (
	ElemInt64 ElementFormat = iota
	ElemFloat64
	ElemBool
)

// MajorOrder discriminates row-major vs column-major layout for Tensor
// values (spec.md §6).
type MajorOrder uint8

const (
	RowMajor MajorOrder = iota
	ColumnMajor
)

// ArrayValue carries the data for a FormatArray or FormatTensor Value.
// Tensor values additionally populate Dims, Origin and Major; Array values
// leave Dims as a single-element slice (1-D) or are validated by the caller
// to be 1-D. All slices are borrowed from the caller — no copy is made, so
// that publishing an array value stays allocation-free (spec.md §4.6,
// "published by reference through vectored writes").
type ArrayValue struct {
	Elem   ElementFormat
	Ints   []int64
	Floats []float64
	Bools  []bool
	Dims   []int32
	Origin []int32 // optional; nil means "no origin offset"
	Major  MajorOrder
}

// Len returns the number of elements regardless of Elem.
func (a ArrayValue) Len() int {
	switch a.Elem {
	case ElemInt64:
		return len(a.Ints)
	case ElemFloat64:
		return len(a.Floats)
	case ElemBool:
		return len(a.Bools)
	default:
		return 0
	}
}

// Value is the tagged union of every payload shape a property or message may
// carry (spec.md §4.6's payload-type list: integer, float, boolean, symbol,
// string, absent, tuple, array). Only the field(s) selected by Format are
// meaningful. Value is a plain struct (no pointers to itself), so passing it
// by value never allocates.
type Value struct {
	Format Format
	Int    int64
	Float  float64
	Bool   bool
	Symbol string
	Str    []byte // borrowed bytes, per spec.md §4.6
	Array  ArrayValue
	Tuple  []Value // borrowed slice of sub-values
}

// Nothing is the canonical absent value.
var Nothing = Value{Format: FormatNothing}

// IntValue constructs an Int value.
func IntValue(v int64) Value { return Value{Format: FormatInt, Int: v} }

// FloatValue constructs a Float value.
func FloatValue(v float64) Value { return Value{Format: FormatFloat, Float: v} }

// BoolValue constructs a Bool value.
func BoolValue(v bool) Value { return Value{Format: FormatBool, Bool: v} }

// SymbolValue constructs a Symbol value.
func SymbolValue(v string) Value { return Value{Format: FormatSymbol, Symbol: v} }

// StringValue constructs a String value over borrowed bytes.
func StringValue(v []byte) Value { return Value{Format: FormatString, Str: v} }

// ArrayValueOf constructs an Array value (1-D) over a borrowed ArrayValue.
func ArrayValueOf(a ArrayValue) Value { return Value{Format: FormatArray, Array: a} }

// TensorValueOf constructs a Tensor value (N-D) over a borrowed ArrayValue.
func TensorValueOf(a ArrayValue) Value { return Value{Format: FormatTensor, Array: a} }

// TupleValue constructs a Tuple value over a borrowed slice of sub-values.
func TupleValue(vs []Value) Value { return Value{Format: FormatTuple, Tuple: vs} }
