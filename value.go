package evstream

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Value is the decoded value of one field. Its Type always equals the
// TypeTag of the descriptor it was decoded against.
//
// Numeric values live in bits (integers sign- or zero-extended, floats as
// IEEE-754 bits), strings and byte arrays in data, nested klasses in nested.
type Value struct {
	typ    TypeTag
	bits   uint64
	data   []byte
	nested *Event
}

func Uint8(v uint8) Value     { return Value{typ: TypeUint8, bits: uint64(v)} }
func Uint16(v uint16) Value   { return Value{typ: TypeUint16, bits: uint64(v)} }
func Uint32(v uint32) Value   { return Value{typ: TypeUint32, bits: uint64(v)} }
func Uint64(v uint64) Value   { return Value{typ: TypeUint64, bits: v} }
func Int8(v int8) Value       { return Value{typ: TypeInt8, bits: uint64(int64(v))} }
func Int16(v int16) Value     { return Value{typ: TypeInt16, bits: uint64(int64(v))} }
func Int32(v int32) Value     { return Value{typ: TypeInt32, bits: uint64(int64(v))} }
func Int64(v int64) Value     { return Value{typ: TypeInt64, bits: uint64(v)} }
func Float32(v float32) Value { return Value{typ: TypeFloat32, bits: uint64(math.Float32bits(v))} }
func Float64(v float64) Value { return Value{typ: TypeFloat64, bits: math.Float64bits(v)} }
func String(v string) Value   { return Value{typ: TypeString, data: []byte(v)} }
func Bytes(v []byte) Value    { return Value{typ: TypeBytes, data: v} }
func Array(v []byte) Value    { return Value{typ: TypeArray, data: v} }

// Nested wraps a decoded nested klass.
func Nested(e Event) Value { return Value{typ: TypeKlass, nested: &e} }

// Type returns the tag of the value.
func (v Value) Type() TypeTag { return v.typ }

// Uint returns unsigned integer values.
func (v Value) Uint() (uint64, bool) {
	switch v.typ {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return v.bits, true
	}
	return 0, false
}

// Int returns signed integer values.
func (v Value) Int() (int64, bool) {
	switch v.typ {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return int64(v.bits), true
	}
	return 0, false
}

// Float returns floating point values.
func (v Value) Float() (float64, bool) {
	switch v.typ {
	case TypeFloat32:
		return float64(math.Float32frombits(uint32(v.bits))), true
	case TypeFloat64:
		return math.Float64frombits(v.bits), true
	}
	return 0, false
}

// Str returns the value of a string field.
func (v Value) Str() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return string(v.data), true
}

// Raw returns the bytes of a string, byte string or array field.
func (v Value) Raw() ([]byte, bool) {
	switch v.typ {
	case TypeString, TypeBytes, TypeArray:
		return v.data, true
	}
	return nil, false
}

// Event returns the nested event of a klass field.
func (v Value) Event() (*Event, bool) {
	if v.typ != TypeKlass {
		return nil, false
	}
	return v.nested, true
}

// Equal compares two values by type and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString, TypeBytes, TypeArray:
		return bytes.Equal(v.data, o.data)
	case TypeKlass:
		if v.nested == nil || o.nested == nil {
			return v.nested == o.nested
		}
		return v.nested.Equal(o.nested)
	}
	return v.bits == o.bits
}

func (v Value) String() string {
	switch v.typ {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return strconv.FormatUint(v.bits, 10)
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return strconv.FormatInt(int64(v.bits), 10)
	case TypeFloat32, TypeFloat64:
		f, _ := v.Float()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(string(v.data))
	case TypeBytes, TypeArray:
		return fmt.Sprintf("%x", v.data)
	case TypeKlass:
		if v.nested == nil {
			return "<nil>"
		}
		return v.nested.Describe()
	}
	return "<invalid>"
}

// As converts any numeric value to T. Conversion follows Go's rules, so
// narrowing may truncate; callers that care should request the exact type.
func As[T constraints.Integer | constraints.Float](v Value) (T, bool) {
	if u, ok := v.Uint(); ok {
		return T(u), true
	}
	if i, ok := v.Int(); ok {
		return T(i), true
	}
	if f, ok := v.Float(); ok {
		return T(f), true
	}
	return 0, false
}
