package evstream

import (
	"encoding/binary"
	"math"
)

// Cursor is a bounds-checked reader over an in-memory byte window.
//
// A read that would run past the window returns ErrInsufficientData and
// leaves the offset where it was, so the caller may retry after the
// window has grown.
type Cursor struct {
	B      []byte // window
	N      int    // current read position
	order  binary.ByteOrder
	prefix int
}

// NewCursor creates a little-endian Cursor with 4-byte length prefixes.
func NewCursor(b []byte) *Cursor {
	return &Cursor{B: b, order: Order, prefix: DefaultPrefixWidth}
}

// WithByteOrder sets the byte order for numeric reads and returns
// the cursor for chaining.
func (c *Cursor) WithByteOrder(order binary.ByteOrder) *Cursor {
	c.order = order
	return c
}

// WithPrefixWidth sets the width of length prefixes read by
// ReadLengthPrefixed. Accepted widths are 1, 2 and 4.
func (c *Cursor) WithPrefixWidth(width int) *Cursor {
	c.prefix = width
	return c
}

// Offset returns the number of bytes consumed.
func (c *Cursor) Offset() int { return c.N }

// Len returns the size of the window.
func (c *Cursor) Len() int { return len(c.B) }

// Available returns the number of unread bytes.
func (c *Cursor) Available() int {
	length := len(c.B) - c.N
	if length <= 0 {
		return 0
	}
	return length
}

// Remaining returns a view of the unread bytes.
func (c *Cursor) Remaining() []byte {
	if c.N >= len(c.B) {
		return nil
	}
	return c.B[c.N:]
}

// Reset rewinds the cursor to the start of the window.
func (c *Cursor) Reset() { c.N = 0 }

// take returns the next n bytes and advances, or fails without moving.
func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Available() {
		return nil, ErrInsufficientData
	}
	b := c.B[c.N : c.N+n]
	c.N += n
	return b, nil
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// ReadBytes returns the next n bytes. The slice aliases the window.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	return c.take(n)
}

// ReadLengthPrefixed reads an unsigned length prefix and then that many bytes.
// Both the prefix and the payload must fit; otherwise nothing is consumed.
func (c *Cursor) ReadLengthPrefixed() ([]byte, error) {
	start := c.N
	n, err := c.readPrefix()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Available()) {
		c.N = start
		return nil, ErrInsufficientData
	}
	return c.take(int(n))
}

func (c *Cursor) readPrefix() (uint64, error) {
	switch c.prefix {
	case 1:
		v, err := c.ReadUint8()
		return uint64(v), err
	case 2:
		v, err := c.ReadUint16()
		return uint64(v), err
	case 4:
		v, err := c.ReadUint32()
		return uint64(v), err
	}
	return 0, ErrInvalidOption
}

// --- Primitive Read Operations ---

func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return c.order.Uint64(b), nil
}

func (c *Cursor) ReadInt8() (int8, error) {
	v, err := c.ReadUint8()
	return int8(v), err
}

func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	return math.Float32frombits(v), err
}

func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	return math.Float64frombits(v), err
}
