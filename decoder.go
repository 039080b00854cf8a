package evstream

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DecodeEvent decodes a data frame body against klass, resolving nested
// klass references through reg.
//
// A field that runs past the body is a FieldDecodeError: the frame's declared
// length under-counted its own content. Bytes left after the last field do
// not fail decoding; the event is returned together with an error wrapping
// ErrTrailingBytes.
func DecodeEvent(body []byte, klass *Klass, reg *Registry, opts *Options) (Event, error) {
	d := eventDecoder{c: opts.cursor(body), reg: reg, maxDepth: opts.MaxDepth}
	evt, err := d.decodeKlass(klass, 0)
	if err != nil {
		return Event{}, err
	}
	evt.Length = uint32(len(body))
	if n := d.c.Available(); n > 0 {
		return evt, fmt.Errorf("%w: %d of %d bytes unused by klass %d %q", ErrTrailingBytes, n, len(body), klass.ID, klass.Name)
	}
	return evt, nil
}

type eventDecoder struct {
	c        *Cursor
	reg      *Registry
	maxDepth int
}

func (d *eventDecoder) decodeKlass(k *Klass, depth int) (Event, error) {
	evt := Event{
		KlassID: k.ID,
		Klass:   k.Name,
		Version: k.Version,
		Fields:  make([]Field, 0, len(k.Fields)),
	}
	for _, f := range k.Fields {
		v, err := d.decodeField(f, depth)
		if err != nil {
			var fe *fieldError
			if errors.As(err, &fe) {
				// Keep the innermost field, qualified by its parents.
				fe.field = f.Name + "." + fe.field
				return Event{}, fe
			}
			return Event{}, &fieldError{field: f.Name, reason: reasonFor(err), err: err}
		}
		evt.Fields = append(evt.Fields, Field{Name: f.Name, Value: v})
	}
	return evt, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "frame ends inside field"
	case errors.Is(err, ErrUnregisteredKlass):
		return "nested reference to unregistered klass"
	case errors.Is(err, ErrDepthExceeded):
		return "nesting too deep"
	}
	return "invalid content"
}

func (d *eventDecoder) decodeField(f FieldDescriptor, depth int) (Value, error) {
	c := d.c
	switch f.Type {
	case TypeUint8:
		v, err := c.ReadUint8()
		return Uint8(v), err
	case TypeUint16:
		v, err := c.ReadUint16()
		return Uint16(v), err
	case TypeUint32:
		v, err := c.ReadUint32()
		return Uint32(v), err
	case TypeUint64:
		v, err := c.ReadUint64()
		return Uint64(v), err
	case TypeInt8:
		v, err := c.ReadInt8()
		return Int8(v), err
	case TypeInt16:
		v, err := c.ReadInt16()
		return Int16(v), err
	case TypeInt32:
		v, err := c.ReadInt32()
		return Int32(v), err
	case TypeInt64:
		v, err := c.ReadInt64()
		return Int64(v), err
	case TypeFloat32:
		v, err := c.ReadFloat32()
		return Float32(v), err
	case TypeFloat64:
		v, err := c.ReadFloat64()
		return Float64(v), err
	case TypeString:
		b, err := c.ReadLengthPrefixed()
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(b) {
			return Value{}, errors.New("invalid utf-8 in string")
		}
		return String(string(b)), nil
	case TypeBytes:
		b, err := c.ReadLengthPrefixed()
		if err != nil {
			return Value{}, err
		}
		return Bytes(clone(b)), nil
	case TypeArray:
		b, err := c.ReadBytes(int(f.Width))
		if err != nil {
			return Value{}, err
		}
		return Array(clone(b)), nil
	case TypeKlass:
		return d.decodeNested(depth)
	}
	return Value{}, fmt.Errorf("unknown type tag %d", uint8(f.Type))
}

func (d *eventDecoder) decodeNested(depth int) (Value, error) {
	if depth+1 >= d.maxDepth {
		return Value{}, fmt.Errorf("%w: limit %d", ErrDepthExceeded, d.maxDepth)
	}
	id, err := d.c.ReadUint32()
	if err != nil {
		return Value{}, err
	}
	k, ok := d.reg.get(id)
	if !ok {
		return Value{}, fmt.Errorf("%w: %d", ErrUnregisteredKlass, id)
	}
	evt, err := d.decodeKlass(k, depth+1)
	if err != nil {
		return Value{}, err
	}
	return Nested(evt), nil
}

// clone copies b so events never alias the assembler's buffer.
func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
