package wire

import (
	"fmt"
	"math"

	"github.com/dgamroth/rtcagent/internal/property"
)

// encodeValue appends the format-tagged encoding of v to dst.
func encodeValue(dst []byte, v property.Value) ([]byte, error) {
	dst = append(dst, byte(v.Format))
	switch v.Format {
	case property.FormatNothing:
		return dst, nil
	case property.FormatInt:
		return appendInt64(dst, v.Int), nil
	case property.FormatFloat:
		return appendInt64(dst, int64(math.Float64bits(v.Float))), nil
	case property.FormatBool:
		if v.Bool {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case property.FormatSymbol:
		return appendBytes(dst, []byte(v.Symbol)), nil
	case property.FormatString:
		return appendBytes(dst, v.Str), nil
	case property.FormatArray, property.FormatTensor:
		return encodeArray(dst, v.Format, v.Array)
	case property.FormatTuple:
		dst = appendUint32(dst, uint32(len(v.Tuple)))
		var err error
		for _, sub := range v.Tuple {
			dst, err = encodeValue(dst, sub)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("wire: unknown value format %d", v.Format)
	}
}

// decodeValue parses a format-tagged Value from the front of src.
func decodeValue(src []byte) (property.Value, int, error) {
	if len(src) < 1 {
		return property.Value{}, 0, errShort("value format tag", 1, len(src))
	}
	format := property.Format(src[0])
	off := 1

	switch format {
	case property.FormatNothing:
		return property.Nothing, off, nil
	case property.FormatInt:
		iv, n, err := readInt64(src[off:])
		if err != nil {
			return property.Value{}, 0, err
		}
		return property.IntValue(iv), off + n, nil
	case property.FormatFloat:
		bits, n, err := readInt64(src[off:])
		if err != nil {
			return property.Value{}, 0, err
		}
		return property.FloatValue(math.Float64frombits(uint64(bits))), off + n, nil
	case property.FormatBool:
		if len(src[off:]) < 1 {
			return property.Value{}, 0, errShort("bool", 1, len(src[off:]))
		}
		return property.BoolValue(src[off] != 0), off + 1, nil
	case property.FormatSymbol:
		b, n, err := readBytes(src[off:])
		if err != nil {
			return property.Value{}, 0, err
		}
		return property.SymbolValue(string(b)), off + n, nil
	case property.FormatString:
		b, n, err := readBytes(src[off:])
		if err != nil {
			return property.Value{}, 0, err
		}
		return property.StringValue(b), off + n, nil
	case property.FormatArray, property.FormatTensor:
		arr, n, err := decodeArray(src[off:], format)
		if err != nil {
			return property.Value{}, 0, err
		}
		if format == property.FormatArray {
			return property.ArrayValueOf(arr), off + n, nil
		}
		return property.TensorValueOf(arr), off + n, nil
	case property.FormatTuple:
		count, n, err := readUint32(src[off:])
		if err != nil {
			return property.Value{}, 0, err
		}
		off += n
		sub := make([]property.Value, 0, count)
		for i := uint32(0); i < count; i++ {
			v, m, err := decodeValue(src[off:])
			if err != nil {
				return property.Value{}, 0, err
			}
			sub = append(sub, v)
			off += m
		}
		return property.TupleValue(sub), off, nil
	default:
		return property.Value{}, 0, fmt.Errorf("wire: unknown value format tag %d", format)
	}
}

// encodeArray appends an Array or Tensor payload: element-format byte,
// major-order byte, dims, optional origin, then the element data. Array
// values (FormatArray) encode only the element-format byte and the element
// data; major order, dims and origin are written for Tensor values only,
// per spec.md §6 ("Tensor messages additionally carry major_order, dims,
// origin").
func encodeArray(dst []byte, format property.Format, a property.ArrayValue) ([]byte, error) {
	dst = append(dst, byte(a.Elem))
	if format == property.FormatTensor {
		dst = append(dst, byte(a.Major))
		dst = appendUint32(dst, uint32(len(a.Dims)))
		for _, d := range a.Dims {
			dst = appendUint32(dst, uint32(int32(d)))
		}
		if a.Origin == nil {
			dst = append(dst, 0) // no origin
		} else {
			dst = append(dst, 1)
			dst = appendUint32(dst, uint32(len(a.Origin)))
			for _, o := range a.Origin {
				dst = appendUint32(dst, uint32(int32(o)))
			}
		}
	}
	switch a.Elem {
	case property.ElemInt64:
		dst = appendUint32(dst, uint32(len(a.Ints)))
		for _, v := range a.Ints {
			dst = appendInt64(dst, v)
		}
	case property.ElemFloat64:
		dst = appendUint32(dst, uint32(len(a.Floats)))
		for _, v := range a.Floats {
			dst = appendInt64(dst, int64(math.Float64bits(v)))
		}
	case property.ElemBool:
		dst = appendUint32(dst, uint32(len(a.Bools)))
		for _, v := range a.Bools {
			if v {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
	default:
		return nil, fmt.Errorf("wire: unknown array element format %d", a.Elem)
	}
	return dst, nil
}

func decodeArray(src []byte, format property.Format) (property.ArrayValue, int, error) {
	var a property.ArrayValue
	off := 0
	if len(src[off:]) < 1 {
		return a, 0, errShort("array elem format", 1, len(src[off:]))
	}
	a.Elem = property.ElementFormat(src[off])
	off++

	if format == property.FormatTensor {
		if len(src[off:]) < 1 {
			return a, 0, errShort("tensor major order", 1, len(src[off:]))
		}
		a.Major = property.MajorOrder(src[off])
		off++

		dimCount, n, err := readUint32(src[off:])
		if err != nil {
			return a, 0, err
		}
		off += n
		dims := make([]int32, 0, dimCount)
		for i := uint32(0); i < dimCount; i++ {
			d, n, err := readUint32(src[off:])
			if err != nil {
				return a, 0, err
			}
			dims = append(dims, int32(d))
			off += n
		}
		a.Dims = dims

		if len(src[off:]) < 1 {
			return a, 0, errShort("tensor origin flag", 1, len(src[off:]))
		}
		hasOrigin := src[off] != 0
		off++
		if hasOrigin {
			originCount, n, err := readUint32(src[off:])
			if err != nil {
				return a, 0, err
			}
			off += n
			origin := make([]int32, 0, originCount)
			for i := uint32(0); i < originCount; i++ {
				o, n, err := readUint32(src[off:])
				if err != nil {
					return a, 0, err
				}
				origin = append(origin, int32(o))
				off += n
			}
			a.Origin = origin
		}
	}

	switch a.Elem {
	case property.ElemInt64:
		count, n, err := readUint32(src[off:])
		if err != nil {
			return a, 0, err
		}
		off += n
		vals := make([]int64, 0, count)
		for i := uint32(0); i < count; i++ {
			v, n, err := readInt64(src[off:])
			if err != nil {
				return a, 0, err
			}
			vals = append(vals, v)
			off += n
		}
		a.Ints = vals
	case property.ElemFloat64:
		count, n, err := readUint32(src[off:])
		if err != nil {
			return a, 0, err
		}
		off += n
		vals := make([]float64, 0, count)
		for i := uint32(0); i < count; i++ {
			bits, n, err := readInt64(src[off:])
			if err != nil {
				return a, 0, err
			}
			vals = append(vals, math.Float64frombits(uint64(bits)))
			off += n
		}
		a.Floats = vals
	case property.ElemBool:
		count, n, err := readUint32(src[off:])
		if err != nil {
			return a, 0, err
		}
		off += n
		vals := make([]bool, 0, count)
		for i := uint32(0); i < count; i++ {
			if len(src[off:]) < 1 {
				return a, 0, errShort("bool elem", 1, len(src[off:]))
			}
			vals = append(vals, src[off] != 0)
			off++
		}
		a.Bools = vals
	default:
		return a, 0, fmt.Errorf("wire: unknown array element format %d", a.Elem)
	}

	if format == property.FormatArray {
		a.Dims = []int32{int32(a.Len())}
	}

	return a, off, nil
}
