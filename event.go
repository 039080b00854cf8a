package evstream

import (
	"fmt"
	"strings"
)

// Field is one decoded (name, value) pair.
type Field struct {
	Name  string
	Value Value
}

// Event is one decoded data frame. It holds no reference to the registry
// and is unaffected by later redefinitions of its klass.
type Event struct {
	KlassID uint32
	Klass   string  // klass name at decode time
	Version int     // klass version at decode time
	Fields  []Field // in declared order
	Length  uint32  // declared body length; zero for nested events
	Offset  int64   // stream offset of the frame; zero for nested events
}

// Get returns the value of the named field.
func (e *Event) Get(name string) (Value, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (e *Event) typed(name string, want TypeTag) (Value, error) {
	v, ok := e.Get(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	if v.typ != want {
		return Value{}, fmt.Errorf("%w: %q is %v, not %v", ErrFieldType, name, v.typ, want)
	}
	return v, nil
}

func (e *Event) Uint8(name string) (uint8, error) {
	v, err := e.typed(name, TypeUint8)
	return uint8(v.bits), err
}

func (e *Event) Uint16(name string) (uint16, error) {
	v, err := e.typed(name, TypeUint16)
	return uint16(v.bits), err
}

func (e *Event) Uint32(name string) (uint32, error) {
	v, err := e.typed(name, TypeUint32)
	return uint32(v.bits), err
}

func (e *Event) Uint64(name string) (uint64, error) {
	v, err := e.typed(name, TypeUint64)
	return v.bits, err
}

func (e *Event) Int8(name string) (int8, error) {
	v, err := e.typed(name, TypeInt8)
	return int8(v.bits), err
}

func (e *Event) Int16(name string) (int16, error) {
	v, err := e.typed(name, TypeInt16)
	return int16(v.bits), err
}

func (e *Event) Int32(name string) (int32, error) {
	v, err := e.typed(name, TypeInt32)
	return int32(v.bits), err
}

func (e *Event) Int64(name string) (int64, error) {
	v, err := e.typed(name, TypeInt64)
	return int64(v.bits), err
}

func (e *Event) Float32(name string) (float32, error) {
	v, err := e.typed(name, TypeFloat32)
	f, _ := v.Float()
	return float32(f), err
}

func (e *Event) Float64(name string) (float64, error) {
	v, err := e.typed(name, TypeFloat64)
	f, _ := v.Float()
	return f, err
}

// String returns the value of a string field.
func (e *Event) String(name string) (string, error) {
	v, err := e.typed(name, TypeString)
	return string(v.data), err
}

// Bytes returns the value of a byte string or fixed array field.
func (e *Event) Bytes(name string) ([]byte, error) {
	v, ok := e.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	if v.typ != TypeBytes && v.typ != TypeArray {
		return nil, fmt.Errorf("%w: %q is %v, not bytes", ErrFieldType, name, v.typ)
	}
	return v.data, nil
}

// Nested returns the event held by a nested klass field.
func (e *Event) Nested(name string) (*Event, error) {
	v, err := e.typed(name, TypeKlass)
	if err != nil {
		return nil, err
	}
	return v.nested, nil
}

// Equal compares klass id and fields. Framing metadata is ignored.
func (e *Event) Equal(o *Event) bool {
	if e.KlassID != o.KlassID || len(e.Fields) != len(o.Fields) {
		return false
	}
	for i := range e.Fields {
		if e.Fields[i].Name != o.Fields[i].Name || !e.Fields[i].Value.Equal(o.Fields[i].Value) {
			return false
		}
	}
	return true
}

// Describe renders the event as `Name#id{field=value, ...}`.
func (e *Event) Describe() string {
	var sb strings.Builder
	name := e.Klass
	if name == "" {
		name = "klass"
	}
	fmt.Fprintf(&sb, "%s#%d{", name, e.KlassID)
	for i, f := range e.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(f.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
