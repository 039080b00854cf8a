package evstream

import (
	"fmt"
	"unicode/utf8"
)

// DecodeMetadata parses a metadata frame body into a Klass.
//
// Layout: klass id (u32), name (length-prefixed), field count (u8), then per
// field name (length-prefixed), type tag (u8) and width (u32). The body must
// be consumed exactly; leftover or missing bytes mean the declared field
// count does not match the frame.
func DecodeMetadata(body []byte, opts *Options) (Klass, error) {
	c := opts.cursor(body)

	var k Klass
	id, err := c.ReadUint32()
	if err != nil {
		return k, malformed("missing klass id")
	}
	k.ID = id

	name, err := readName(c)
	if err != nil {
		return k, malformed("klass %d name: %v", id, err)
	}
	k.Name = name

	count, err := c.ReadUint8()
	if err != nil {
		return k, malformed("klass %d %q: missing field count", id, name)
	}

	k.Fields = make([]FieldDescriptor, 0, count)
	for i := 0; i < int(count); i++ {
		f, err := readFieldDescriptor(c)
		if err != nil {
			return k, malformed("klass %d %q field %d of %d: %v", id, name, i, count, err)
		}
		k.Fields = append(k.Fields, f)
	}

	if n := c.Available(); n > 0 {
		return k, malformed("klass %d %q: %d bytes after %d declared fields", id, name, n, count)
	}
	if err := k.Validate(); err != nil {
		return k, err
	}
	return k, nil
}

func readFieldDescriptor(c *Cursor) (FieldDescriptor, error) {
	var f FieldDescriptor
	name, err := readName(c)
	if err != nil {
		return f, fmt.Errorf("name: %w", err)
	}
	f.Name = name

	tag, err := c.ReadUint8()
	if err != nil {
		return f, fmt.Errorf("%q: missing type tag", name)
	}
	f.Type = TypeTag(tag)
	if !f.Type.Valid() {
		return f, fmt.Errorf("%q: type tag %d outside the known enumeration", name, tag)
	}

	width, err := c.ReadUint32()
	if err != nil {
		return f, fmt.Errorf("%q: missing width", name)
	}
	f.Width = width
	return f, nil
}

func readName(c *Cursor) (string, error) {
	b, err := c.ReadLengthPrefixed()
	if err != nil {
		return "", fmt.Errorf("length prefix exceeds frame: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(b), nil
}
