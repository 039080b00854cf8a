package framegen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oy3o/evstream"
)

var ErrValueMismatch = errors.New("framegen: value does not match field")

// Encoder accumulates a stream of frames in memory.
// Like Writer it keeps the first error; later calls are no-ops.
type Encoder struct {
	order  binary.ByteOrder
	prefix int
	out    bytes.Buffer
	err    error
}

// Option configures an Encoder.
type Option func(*Encoder)

func WithByteOrder(order binary.ByteOrder) Option { return func(e *Encoder) { e.order = order } }
func WithPrefixWidth(n int) Option                { return func(e *Encoder) { e.prefix = n } }

// New creates an Encoder producing format version 1 frames.
func New(opts ...Option) *Encoder {
	e := &Encoder{order: evstream.Order, prefix: evstream.DefaultPrefixWidth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Encoder) Bytes() []byte { return e.out.Bytes() }
func (e *Encoder) Len() int      { return e.out.Len() }
func (e *Encoder) Err() error    { return e.err }

func (e *Encoder) setError(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

func (e *Encoder) writer(buf *bytes.Buffer) *Writer {
	w, _ := NewWriter(buf)
	return w.WithByteOrder(e.order).WithPrefixWidth(e.prefix)
}

// Metadata appends a metadata frame describing k.
func (e *Encoder) Metadata(k evstream.Klass) *Encoder {
	body, err := e.MetadataBody(k)
	if err != nil {
		e.setError(err)
		return e
	}
	return e.Frame(evstream.MetadataKlassID, body)
}

// Event appends a data frame for k holding values in field order.
func (e *Encoder) Event(k evstream.Klass, values ...evstream.Value) *Encoder {
	body, err := e.EventBody(k, values...)
	if err != nil {
		e.setError(err)
		return e
	}
	return e.Frame(k.ID, body)
}

// Frame appends a frame with a correct length prefix.
func (e *Encoder) Frame(id uint32, body []byte) *Encoder {
	return e.RawFrame(uint32(len(body)), id, body)
}

// RawFrame appends a frame whose declared length need not match body.
func (e *Encoder) RawFrame(length, id uint32, body []byte) *Encoder {
	if e.err != nil {
		return e
	}
	w := e.writer(&e.out)
	w.WriteUint32(length)
	w.WriteUint32(id)
	w.WriteBytes(body)
	_, err := w.Result()
	e.setError(err)
	return e
}

// Raw appends b verbatim.
func (e *Encoder) Raw(b []byte) *Encoder {
	if e.err == nil {
		e.out.Write(b)
	}
	return e
}

// MetadataBody encodes the body of a metadata frame for k.
func (e *Encoder) MetadataBody(k evstream.Klass) ([]byte, error) {
	if len(k.Fields) > 255 {
		return nil, fmt.Errorf("framegen: klass %q has %d fields, at most 255 fit", k.Name, len(k.Fields))
	}
	var buf bytes.Buffer
	w := e.writer(&buf)
	w.WriteUint32(k.ID)
	w.WriteString(k.Name)
	w.WriteUint8(uint8(len(k.Fields)))
	for _, f := range k.Fields {
		w.WriteString(f.Name)
		w.WriteUint8(uint8(f.Type))
		w.WriteUint32(f.Width)
	}
	if _, err := w.Result(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EventBody encodes values against the fields of k.
func (e *Encoder) EventBody(k evstream.Klass, values ...evstream.Value) ([]byte, error) {
	if len(values) != len(k.Fields) {
		return nil, fmt.Errorf("%w: klass %q has %d fields, got %d values", ErrValueMismatch, k.Name, len(k.Fields), len(values))
	}
	var buf bytes.Buffer
	w := e.writer(&buf)
	for i, f := range k.Fields {
		v := values[i]
		if v.Type() != f.Type {
			return nil, fmt.Errorf("%w: %q is %v, got %v", ErrValueMismatch, f.Name, f.Type, v.Type())
		}
		if f.Type == evstream.TypeArray {
			if raw, _ := v.Raw(); len(raw) != int(f.Width) {
				return nil, fmt.Errorf("%w: %q holds %d bytes, got %d", ErrValueMismatch, f.Name, f.Width, len(raw))
			}
		}
		writeValue(w, v)
	}
	if _, err := w.Result(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeValue encodes v by its own type. Nested events are written as their
// klass id followed by their fields.
func writeValue(w *Writer, v evstream.Value) {
	switch v.Type() {
	case evstream.TypeUint8, evstream.TypeUint16, evstream.TypeUint32, evstream.TypeUint64:
		u, _ := v.Uint()
		switch v.Type().Size() {
		case 1:
			w.WriteUint8(uint8(u))
		case 2:
			w.WriteUint16(uint16(u))
		case 4:
			w.WriteUint32(uint32(u))
		default:
			w.WriteUint64(u)
		}
	case evstream.TypeInt8, evstream.TypeInt16, evstream.TypeInt32, evstream.TypeInt64:
		i, _ := v.Int()
		switch v.Type().Size() {
		case 1:
			w.WriteInt8(int8(i))
		case 2:
			w.WriteInt16(int16(i))
		case 4:
			w.WriteInt32(int32(i))
		default:
			w.WriteInt64(i)
		}
	case evstream.TypeFloat32:
		f, _ := v.Float()
		w.WriteFloat32(float32(f))
	case evstream.TypeFloat64:
		f, _ := v.Float()
		w.WriteFloat64(f)
	case evstream.TypeString, evstream.TypeBytes:
		raw, _ := v.Raw()
		w.WriteLengthPrefixed(raw)
	case evstream.TypeArray:
		raw, _ := v.Raw()
		w.WriteBytes(raw)
	case evstream.TypeKlass:
		nested, _ := v.Event()
		w.WriteUint32(nested.KlassID)
		for _, f := range nested.Fields {
			writeValue(w, f.Value)
		}
	default:
		w.setError(fmt.Errorf("%w: invalid value", ErrValueMismatch))
	}
}
