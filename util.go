package evstream

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

var (
	BE = binary.BigEndian
	LE = binary.LittleEndian
	// Order is the wire byte order used by the producing library.
	Order binary.ByteOrder = LE
)

const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 4
	// KlassIDSize is the size of the klass id that follows the length prefix.
	KlassIDSize = 4
	// HeaderSize is the fixed frame header: length prefix then klass id.
	HeaderSize = LengthPrefixSize + KlassIDSize

	// MetadataKlassID is the reserved klass id marking a metadata frame.
	MetadataKlassID uint32 = 0

	// DefaultPrefixWidth is the string length prefix width of format version 1.
	DefaultPrefixWidth = 4
	// DefaultMaxFrameSize bounds the declared body length (16 MiB).
	DefaultMaxFrameSize = 16 * 1024 * 1024
	// DefaultMaxDepth bounds nested klass recursion.
	DefaultMaxDepth = 8

	// bufferAlign is the granularity the assembler grows its buffer by.
	bufferAlign = 4096
)

// roundup rounds n up to the nearest multiple of align, which must be a power of two.
func roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// byteOrderName maps a configured byte order name to its binary.ByteOrder.
func byteOrderName(name string) (binary.ByteOrder, bool) {
	switch name {
	case "", "little", "le", "little-endian":
		return LE, true
	case "big", "be", "big-endian":
		return BE, true
	}
	return nil, false
}
