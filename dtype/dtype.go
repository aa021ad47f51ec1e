// Package dtype describes the fixed-width scalar types a Zarr array can
// hold: their wire names, byte sizes, signedness, default fill values and
// the translation from numpy-style v2 dtype strings.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// DataType identifies one of the Zarr v3 core data types.
type DataType uint8

const (
	Invalid DataType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// naFloat is the sentinel used as the default fill for both float types.
const naFloat = 9.9692099683868690e+36

type info struct {
	name   string
	size   int
	signed bool
	fill   any
}

var infos = map[DataType]info{
	Bool:    {"bool", 1, false, false},
	Int8:    {"int8", 1, true, int8(-127)},
	Int16:   {"int16", 2, true, int16(-32767)},
	Int32:   {"int32", 4, true, int32(-2147483647)},
	Int64:   {"int64", 8, true, int64(math.MaxInt64)},
	Uint8:   {"uint8", 1, false, uint8(math.MaxUint8)},
	Uint16:  {"uint16", 2, false, uint16(math.MaxUint16)},
	Uint32:  {"uint32", 4, false, uint32(math.MaxUint32)},
	Uint64:  {"uint64", 8, false, uint64(math.MaxUint64)},
	Float32: {"float32", 4, true, float32(naFloat)},
	Float64: {"float64", 8, true, float64(naFloat)},
}

var byName = func() map[string]DataType {
	m := make(map[string]DataType, len(infos))
	for dt, in := range infos {
		m[in.name] = dt
	}
	return m
}()

// Parse resolves a Zarr v3 data type name.
func Parse(name string) (DataType, error) {
	if dt, ok := byName[name]; ok {
		return dt, nil
	}
	return Invalid, fmt.Errorf("unsupported data type: %q", name)
}

func (d DataType) String() string {
	if in, ok := infos[d]; ok {
		return in.name
	}
	return "invalid"
}

// Size returns the element width in bytes.
func (d DataType) Size() int { return infos[d].size }

// Signed reports whether the type carries a sign bit. Floats count as signed.
func (d DataType) Signed() bool { return infos[d].signed }

// DefaultFill returns the fill value used when array metadata does not
// declare one. The returned value has the type's native Go representation.
func (d DataType) DefaultFill() any { return infos[d].fill }

func (d DataType) valid() bool {
	_, ok := infos[d]
	return ok
}

// Scalar coerces v into the native Go representation of d. JSON numbers
// arrive as float64; integer fills may also arrive as the exact Go type
// (from DefaultFill) or as int. Returns an error when v is not a bool for
// Bool, or not numeric for the other types. Numeric values are converted
// without a range check, except that Int64 and Uint64 clamp to their limits.
func (d DataType) Scalar(v any) (any, error) {
	if !d.valid() {
		return nil, fmt.Errorf("invalid data type")
	}
	if d == Bool {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("fill value %v is not a bool", v)
		}
		return b, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("fill value %v is not numeric", v)
	}
	switch d {
	case Int8:
		return int8(f), nil
	case Int16:
		return int16(f), nil
	case Int32:
		return int32(f), nil
	case Int64:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
		// float64 cannot represent every int64; clamp instead of relying on
		// an out-of-range conversion.
		if f >= math.MaxInt64 {
			return int64(math.MaxInt64), nil
		}
		if f <= math.MinInt64 {
			return int64(math.MinInt64), nil
		}
		return int64(f), nil
	case Uint8:
		return uint8(f), nil
	case Uint16:
		return uint16(f), nil
	case Uint32:
		return uint32(f), nil
	case Uint64:
		if u, ok := toUint64(v); ok {
			return u, nil
		}
		if f >= math.MaxUint64 {
			return uint64(math.MaxUint64), nil
		}
		if f <= 0 {
			return uint64(0), nil
		}
		return uint64(f), nil
	case Float32:
		return float32(f), nil
	case Float64:
		return f, nil
	}
	return nil, fmt.Errorf("invalid data type")
}

// ScalarJSON renders a native scalar into its JSON metadata form. NaN and
// infinities are encoded as the strings the Zarr spec assigns them.
func ScalarJSON(v any) any {
	switch x := v.(type) {
	case float32:
		return ScalarJSON(float64(x))
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
		return x
	default:
		return v
	}
}

// ParseScalarJSON is the inverse of ScalarJSON: it accepts the JSON
// representation of a fill value (including the special float strings) and
// coerces it into d's native scalar.
func ParseScalarJSON(d DataType, v any) (any, error) {
	if s, ok := v.(string); ok && (d == Float32 || d == Float64) {
		var f float64
		switch s {
		case "NaN":
			f = math.NaN()
		case "Infinity":
			f = math.Inf(1)
		case "-Infinity":
			f = math.Inf(-1)
		default:
			var err error
			f, err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float fill value %q", s)
			}
		}
		return d.Scalar(f)
	}
	return d.Scalar(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		if x >= 0 {
			return uint64(x), true
		}
	case int64:
		if x >= 0 {
			return uint64(x), true
		}
	}
	return 0, false
}

// ParseV2 takes a numpy-style dtype string like "<f4", "|b1" or ">i8" and
// returns the v3 data type together with the byte order the chunks were
// written in. Single-byte types use the "|" marker and report little-endian.
func ParseV2(s string) (DataType, binary.ByteOrder, error) {
	if len(s) < 3 {
		return Invalid, nil, fmt.Errorf("invalid dtype: %q", s)
	}

	var order binary.ByteOrder
	switch s[0] {
	case '<', '|':
		order = binary.LittleEndian
	case '>':
		order = binary.BigEndian
	default:
		return Invalid, nil, fmt.Errorf("invalid byte order in dtype: %q", s)
	}

	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return Invalid, nil, fmt.Errorf("invalid size in dtype: %q", s)
	}

	var name string
	switch s[1] {
	case 'b':
		name = "bool"
		if size != 1 {
			return Invalid, nil, fmt.Errorf("invalid bool size in dtype: %q", s)
		}
	case 'i':
		name = fmt.Sprintf("int%d", size*8)
	case 'u':
		name = fmt.Sprintf("uint%d", size*8)
	case 'f':
		name = fmt.Sprintf("float%d", size*8)
	default:
		return Invalid, nil, fmt.Errorf("unsupported dtype kind %q in %q", s[1], s)
	}

	dt, err := Parse(name)
	if err != nil {
		return Invalid, nil, fmt.Errorf("unsupported dtype %q", s)
	}
	return dt, order, nil
}
