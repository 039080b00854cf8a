package evstream

import (
	"fmt"
	"strings"
)

// TypeTag is the closed set of field types a klass may declare.
// The numeric value is the byte used on the wire.
type TypeTag uint8

const (
	TypeInvalid TypeTag = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString // length-prefixed UTF-8
	TypeBytes  // length-prefixed byte string
	TypeArray  // fixed-size byte array, size declared by the field width
	TypeKlass  // nested klass: klass id then that klass's fields
	typeCount
)

var typeNames = [typeCount]string{
	TypeInvalid: "invalid",
	TypeUint8:   "u8",
	TypeUint16:  "u16",
	TypeUint32:  "u32",
	TypeUint64:  "u64",
	TypeInt8:    "i8",
	TypeInt16:   "i16",
	TypeInt32:   "i32",
	TypeInt64:   "i64",
	TypeFloat32: "f32",
	TypeFloat64: "f64",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeArray:   "array",
	TypeKlass:   "klass",
}

// Valid returns true for tags inside the known enumeration.
func (t TypeTag) Valid() bool {
	return t > TypeInvalid && t < typeCount
}

// Size returns the encoded width of fixed-width numeric tags, 0 otherwise.
func (t TypeTag) Size() int {
	switch t {
	case TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	case TypeUint64, TypeInt64, TypeFloat64:
		return 8
	}
	return 0
}

// Numeric returns true for integer and floating point tags.
func (t TypeTag) Numeric() bool { return t.Size() > 0 }

func (t TypeTag) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("TypeTag(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TypeTag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("evstream: cannot marshal %v", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the short
// names ("u32") and a few C spellings ("uint32_t", "const char*").
func (t *TypeTag) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for tag := TypeUint8; tag < typeCount; tag++ {
		if typeNames[tag] == name {
			*t = tag
			return nil
		}
	}
	if tag, ok := typeAliases[name]; ok {
		*t = tag
		return nil
	}
	return fmt.Errorf("evstream: unknown type %q", string(text))
}

var typeAliases = map[string]TypeTag{
	"uint8_t":     TypeUint8,
	"uint16_t":    TypeUint16,
	"uint32_t":    TypeUint32,
	"uint64_t":    TypeUint64,
	"int8_t":      TypeInt8,
	"int16_t":     TypeInt16,
	"int32_t":     TypeInt32,
	"int64_t":     TypeInt64,
	"float":       TypeFloat32,
	"double":      TypeFloat64,
	"str":         TypeString,
	"const char*": TypeString,
	"struct":      TypeKlass,
}

// FieldDescriptor describes one field of a klass.
type FieldDescriptor struct {
	Name  string  `yaml:"name" json:"name" msgpack:"name"`
	Type  TypeTag `yaml:"type" json:"type" msgpack:"type"`
	Width uint32  `yaml:"width,omitempty" json:"width,omitempty" msgpack:"width"` // byte length for TypeArray, otherwise 0 or the natural size
}

// validate checks the width rules for the field's tag.
func (f FieldDescriptor) validate() error {
	if !f.Type.Valid() {
		return malformed("field %q: unknown type tag %d", f.Name, uint8(f.Type))
	}
	switch {
	case f.Type.Numeric():
		if f.Width != 0 && int(f.Width) != f.Type.Size() {
			return malformed("field %q: width %d does not match %v", f.Name, f.Width, f.Type)
		}
	case f.Type == TypeArray:
		if f.Width == 0 {
			return malformed("field %q: array without width", f.Name)
		}
	default:
		if f.Width != 0 {
			return malformed("field %q: %v takes no width, got %d", f.Name, f.Type, f.Width)
		}
	}
	return nil
}

// Klass is a named, dynamically registered schema.
type Klass struct {
	ID      uint32            `yaml:"id" json:"id" msgpack:"id"`
	Name    string            `yaml:"name" json:"name" msgpack:"name"`
	Fields  []FieldDescriptor `yaml:"fields" json:"fields" msgpack:"fields"`
	Version int               `yaml:"-" json:"version" msgpack:"version"` // bumped each time the id is redefined
}

// Field returns the descriptor with the given name.
func (k *Klass) Field(name string) (FieldDescriptor, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Equal reports whether two klasses describe the same layout, ignoring Version.
func (k *Klass) Equal(other *Klass) bool {
	if k.ID != other.ID || k.Name != other.Name || len(k.Fields) != len(other.Fields) {
		return false
	}
	for i := range k.Fields {
		if k.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// Validate checks that the klass can be registered.
func (k *Klass) Validate() error {
	if k.ID == MetadataKlassID {
		return malformed("klass %q uses reserved id %d", k.Name, MetadataKlassID)
	}
	seen := make(map[string]struct{}, len(k.Fields))
	for _, f := range k.Fields {
		if _, dup := seen[f.Name]; dup {
			return malformed("klass %q: duplicate field %q", k.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

// clone returns a deep copy so registered definitions never share field slices with callers.
func (k *Klass) clone() *Klass {
	c := *k
	c.Fields = append([]FieldDescriptor(nil), k.Fields...)
	return &c
}

func (k *Klass) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s#%d{", k.Name, k.ID)
	for i, f := range k.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteByte(':')
		sb.WriteString(f.Type.String())
		if f.Type == TypeArray {
			fmt.Fprintf(&sb, "[%d]", f.Width)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
