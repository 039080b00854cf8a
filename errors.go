package evstream

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData indicates a read needs more bytes than the cursor window holds.
	// It is a control signal: the caller retries once more input is available.
	ErrInsufficientData = errors.New("evstream: insufficient data")

	// ErrTruncatedStream indicates end of input was reached in the middle of a frame.
	ErrTruncatedStream = errors.New("evstream: truncated stream")

	// ErrMalformedMetadata indicates a metadata frame whose declared structure is inconsistent.
	ErrMalformedMetadata = errors.New("evstream: malformed metadata")

	// ErrFieldDecode indicates a data frame whose fields could not be decoded against its klass.
	ErrFieldDecode = errors.New("evstream: field decode error")

	// ErrUnregisteredKlass indicates a data frame for a klass id never described by metadata.
	ErrUnregisteredKlass = errors.New("evstream: unregistered klass")

	// ErrOversizedFrame indicates a declared frame length above the configured ceiling.
	ErrOversizedFrame = errors.New("evstream: oversized frame")

	// ErrTrailingBytes is a diagnostic: the event decoded but the frame held extra bytes.
	ErrTrailingBytes = errors.New("evstream: trailing bytes after last field")

	// ErrKlassRedefined indicates a redefinition refused by the registry policy.
	ErrKlassRedefined = errors.New("evstream: klass redefinition rejected")

	// ErrDepthExceeded indicates nested klass references deeper than the configured limit.
	ErrDepthExceeded = errors.New("evstream: nested klass depth exceeded")

	// ErrFieldNotFound indicates an event has no field with the requested name.
	ErrFieldNotFound = errors.New("evstream: field not found")

	// ErrFieldType indicates a field exists but holds a different type than requested.
	ErrFieldType = errors.New("evstream: field has a different type")

	// ErrInvalidOption indicates a decoder option outside its accepted range.
	ErrInvalidOption = errors.New("evstream: invalid option")

	// ErrNilReader indicates NewReader was called with a nil io.Reader.
	ErrNilReader = errors.New("evstream: NewReader called with a nil io.Reader")

	// ErrUnknownStream indicates a Mux operation on a stream id that was never fed.
	ErrUnknownStream = errors.New("evstream: unknown stream")

	// ErrSnapshot indicates a snapshot that cannot be taken or restored.
	ErrSnapshot = errors.New("evstream: invalid snapshot")
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// KindTruncated indicates input ended inside a frame.
	KindTruncated FrameErrorKind = iota + 1
	// KindMalformedMetadata indicates an inconsistent metadata frame.
	KindMalformedMetadata
	// KindFieldDecode indicates a data frame whose fields do not fit its declared length.
	KindFieldDecode
	// KindUnregisteredKlass indicates a data frame for an unknown klass id.
	KindUnregisteredKlass
	// KindOversized indicates a declared length above the ceiling. Always fatal.
	KindOversized
	// KindTrailingBytes indicates leftover bytes after the last known field.
	KindTrailingBytes
	// KindKlassRedefined indicates a redefinition rejected by policy.
	KindKlassRedefined
)

var kindNames = [...]string{
	KindTruncated:         "TruncatedStream",
	KindMalformedMetadata: "MalformedMetadata",
	KindFieldDecode:       "FieldDecodeError",
	KindUnregisteredKlass: "UnregisteredKlass",
	KindOversized:         "OversizedFrame",
	KindTrailingBytes:     "TrailingBytes",
	KindKlassRedefined:    "KlassRedefined",
}

func (k FrameErrorKind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("FrameErrorKind(%d)", int(k))
}

func (k FrameErrorKind) sentinel() error {
	switch k {
	case KindTruncated:
		return ErrTruncatedStream
	case KindMalformedMetadata:
		return ErrMalformedMetadata
	case KindFieldDecode:
		return ErrFieldDecode
	case KindUnregisteredKlass:
		return ErrUnregisteredKlass
	case KindOversized:
		return ErrOversizedFrame
	case KindTrailingBytes:
		return ErrTrailingBytes
	case KindKlassRedefined:
		return ErrKlassRedefined
	}
	return nil
}

// FrameError describes a problem with one frame of the stream.
//
// Offset is the stream offset of the frame's length prefix, so the same
// corrupt frame reports the same position no matter how the input was chunked.
type FrameError struct {
	Kind    FrameErrorKind
	Offset  int64
	KlassID uint32 // from the frame header, so 0 for metadata frames
	Length  uint32 // declared body length
	Field   string // set for KindFieldDecode
	Reason  string
	Missing int // set for KindTruncated: bytes still needed to finish the frame
	Err     error
	fatal   bool
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("evstream: %s at offset %d (klass %d, length %d)", e.Kind, e.Offset, e.KlassID, e.Length)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching this error's kind.
func (e *FrameError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// IsFatal returns true if the error ends the stream.
// OversizedFrame is always fatal; other kinds only under fail-fast.
func (e *FrameError) IsFatal() bool {
	return e.fatal || e.Kind == KindOversized
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// fieldError records which field failed while decoding an event body.
type fieldError struct {
	field  string
	reason string
	err    error
}

func (e *fieldError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("field %q: %s: %v", e.field, e.reason, e.err)
	}
	return fmt.Sprintf("field %q: %s", e.field, e.reason)
}

func (e *fieldError) Unwrap() error { return e.err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMetadata, fmt.Sprintf(format, args...))
}
