// Package framegen encodes event streams: the inverse of the evstream decoder.
// It is used to build fixtures, benchmarks and sample streams.
package framegen

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrNilWriter      = errors.New("framegen: nil io.Writer")
	ErrPrefixOverflow = errors.New("framegen: value too long for length prefix")
	ErrPrefixWidth    = errors.New("framegen: length prefix width must be 1, 2 or 4")
)

type flusher interface {
	io.Writer
	io.ByteWriter
	Flush() error
}

type bufferAdapter struct{ *bytes.Buffer }

func (bufferAdapter) Flush() error { return nil }

// Writer writes binary primitives and tracks the first error.
// After an error, all subsequent writes become no-ops.
type Writer struct {
	w      flusher
	count  int64 // total bytes written
	err    error
	order  binary.ByteOrder
	prefix int
}

// NewWriter creates a little-endian Writer with 4-byte length prefixes.
// A *bytes.Buffer is written to directly, anything else through bufio.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	var f flusher
	switch bw := w.(type) {
	case *bytes.Buffer:
		f = bufferAdapter{bw}
	case *bufio.Writer:
		f = bw
	default:
		f = bufio.NewWriter(w)
	}
	return &Writer{w: f, order: binary.LittleEndian, prefix: 4}, nil
}

// WithByteOrder sets the byte order and returns the writer for chaining.
func (w *Writer) WithByteOrder(order binary.ByteOrder) *Writer {
	w.order = order
	return w
}

// WithPrefixWidth sets the width of length prefixes written by
// WriteLengthPrefixed and returns the writer for chaining.
func (w *Writer) WithPrefixWidth(width int) *Writer {
	w.prefix = width
	return w
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.setError(w.w.Flush())
	return w.err
}

// Result flushes and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// WriteBytes writes b verbatim.
func (w *Writer) WriteBytes(b []byte) {
	if w.err != nil || len(b) == 0 {
		return
	}
	n, err := w.w.Write(b)
	w.count += int64(n)
	w.setError(err)
}

// WriteLengthPrefixed writes len(b) in the configured prefix width, then b.
func (w *Writer) WriteLengthPrefixed(b []byte) {
	if w.err != nil {
		return
	}
	n := uint64(len(b))
	switch w.prefix {
	case 1:
		if n > math.MaxUint8 {
			w.setError(fmt.Errorf("%w: %d bytes", ErrPrefixOverflow, n))
			return
		}
		w.WriteUint8(uint8(n))
	case 2:
		if n > math.MaxUint16 {
			w.setError(fmt.Errorf("%w: %d bytes", ErrPrefixOverflow, n))
			return
		}
		w.WriteUint16(uint16(n))
	case 4:
		if n > math.MaxUint32 {
			w.setError(fmt.Errorf("%w: %d bytes", ErrPrefixOverflow, n))
			return
		}
		w.WriteUint32(uint32(n))
	default:
		w.setError(ErrPrefixWidth)
		return
	}
	w.WriteBytes(b)
}

func (w *Writer) WriteString(s string) { w.WriteLengthPrefixed([]byte(s)) }

// --- Primitive Write Operations ---

func (w *Writer) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	err := w.w.WriteByte(v)
	if err == nil {
		w.count++
	} else {
		w.err = err
	}
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	var buf [2]byte
	w.order.PutUint16(buf[:], v)
	w.WriteBytes(buf[:])
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	w.order.PutUint32(buf[:], v)
	w.WriteBytes(buf[:])
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	w.order.PutUint64(buf[:], v)
	w.WriteBytes(buf[:])
}

func (w *Writer) WriteInt8(v int8)       { w.WriteUint8(uint8(v)) }
func (w *Writer) WriteInt16(v int16)     { w.WriteUint16(uint16(v)) }
func (w *Writer) WriteInt32(v int32)     { w.WriteUint32(uint32(v)) }
func (w *Writer) WriteInt64(v int64)     { w.WriteUint64(uint64(v)) }
func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }
