package evstream

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// State is the framing state of an Assembler.
type State uint8

const (
	// StateAwaitingLengthPrefix waits for a complete frame header.
	StateAwaitingLengthPrefix State = iota
	// StateAwaitingBody has read a header and waits for the declared body.
	StateAwaitingBody
	// StateFatal rejects all further input.
	StateFatal
)

var stateNames = [...]string{
	StateAwaitingLengthPrefix: "AwaitingLengthPrefix",
	StateAwaitingBody:         "AwaitingBody",
	StateFatal:                "Fatal",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Item is one result of decoding a frame. Exactly one of Event and Klass is
// set for a successful frame; Err is set for a frame-local error. A frame
// with trailing bytes carries both its Event and a KindTrailingBytes error.
type Item struct {
	Offset int64
	Event  *Event
	Klass  *Klass // metadata notification, only with EmitMetadata
	Err    error
}

// Stats counts what an Assembler has processed.
type Stats struct {
	Bytes    int64
	Frames   uint64
	Events   uint64
	Metadata uint64
	Errors   uint64
}

// Assembler turns arbitrarily chunked input into decoded frames.
//
// The frame header stays buffered until the whole frame has arrived, so the
// pending bytes plus the state tag are all there is to resume from.
// An Assembler is not safe for concurrent use.
type Assembler struct {
	opts Options
	log  *zap.Logger
	reg  *Registry

	buf []byte // buf[off:] is unconsumed input
	off int
	pos int64 // stream offset of buf[off]

	state   State
	length  uint32 // declared body length while StateAwaitingBody
	klassID uint32
	err     error

	stats Stats
}

// NewAssembler creates an Assembler with DefaultOptions modified by opts.
func NewAssembler(opts ...Option) (*Assembler, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	reg := NewRegistry(o.Redefine)
	if err := reg.Preload(o.Klasses); err != nil {
		return nil, err
	}
	return &Assembler{opts: o, log: o.Logger, reg: reg}, nil
}

// Append buffers p without decoding anything. It fails only once the
// Assembler is fatal.
func (a *Assembler) Append(p []byte) error {
	if a.err != nil {
		return a.err
	}
	if len(p) == 0 {
		return nil
	}
	a.compact()
	a.grow(len(p))
	a.buf = append(a.buf, p...)
	a.stats.Bytes += int64(len(p))
	return nil
}

// compact drops consumed bytes once they make up half the buffer.
func (a *Assembler) compact() {
	switch {
	case a.off == 0:
	case a.off == len(a.buf):
		a.buf, a.off = a.buf[:0], 0
	case a.off >= cap(a.buf)/2:
		n := copy(a.buf, a.buf[a.off:])
		a.buf, a.off = a.buf[:n], 0
	}
}

func (a *Assembler) grow(n int) {
	need := len(a.buf) + n
	if need <= cap(a.buf) {
		return
	}
	pending := a.buf[a.off:]
	nb := make([]byte, len(pending), roundup(len(pending)+n, bufferAlign))
	copy(nb, pending)
	a.buf, a.off = nb, 0
}

// Next decodes the next complete frame. It returns ok == false when more
// input is needed, and a non-nil error only when the stream is fatal.
func (a *Assembler) Next() (Item, bool, error) {
	for {
		if a.err != nil {
			return Item{}, false, a.err
		}
		pending := a.buf[a.off:]
		switch a.state {
		case StateAwaitingLengthPrefix:
			if len(pending) < HeaderSize {
				return Item{}, false, nil
			}
			c := a.opts.cursor(pending[:HeaderSize])
			length, _ := c.ReadUint32()
			id, _ := c.ReadUint32()
			if length > a.opts.MaxFrameSize {
				a.fail(&FrameError{
					Kind:    KindOversized,
					Offset:  a.pos,
					KlassID: id,
					Length:  length,
					Reason:  fmt.Sprintf("limit %d", a.opts.MaxFrameSize),
				})
				continue
			}
			a.length, a.klassID = length, id
			a.state = StateAwaitingBody

		case StateAwaitingBody:
			total := HeaderSize + int(a.length)
			if len(pending) < total {
				return Item{}, false, nil
			}
			body := pending[HeaderSize:total]
			offset, id, length := a.pos, a.klassID, a.length
			a.off += total
			a.pos += int64(total)
			a.state = StateAwaitingLengthPrefix
			a.length, a.klassID = 0, 0

			item, ok := a.dispatch(offset, id, length, body)
			if a.err != nil {
				return Item{}, false, a.err
			}
			if ok {
				return item, true, nil
			}

		default:
			return Item{}, false, a.err
		}
	}
}

// Feed appends p and decodes every frame it completes. Items decoded
// before a fatal error are returned together with that error.
func (a *Assembler) Feed(p []byte) ([]Item, error) {
	if err := a.Append(p); err != nil {
		return nil, err
	}
	var items []Item
	for {
		item, ok, err := a.Next()
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// Finish reports whether the input seen so far ends on a frame boundary.
// Call it once Next reports that more input is needed. It returns nil on a
// clean end and a KindTruncated *FrameError if a partial frame is buffered.
// It does not change state, so a live transport may keep feeding after it.
func (a *Assembler) Finish() error {
	if a.err != nil {
		return a.err
	}
	n := a.Buffered()
	if n == 0 {
		return nil
	}
	fe := &FrameError{Kind: KindTruncated, Offset: a.pos}
	if a.state == StateAwaitingBody {
		fe.KlassID, fe.Length = a.klassID, a.length
		fe.Missing = HeaderSize + int(a.length) - n
		fe.Reason = fmt.Sprintf("%d of %d body bytes", n-HeaderSize, a.length)
	} else {
		fe.Missing = HeaderSize - n
		fe.Reason = fmt.Sprintf("%d of %d header bytes", n, HeaderSize)
	}
	return fe
}

func (a *Assembler) dispatch(offset int64, id, length uint32, body []byte) (Item, bool) {
	a.stats.Frames++
	if id == MetadataKlassID {
		return a.dispatchMetadata(offset, length, body)
	}

	k, ok := a.reg.get(id)
	if !ok {
		return a.frameError(&FrameError{
			Kind:    KindUnregisteredKlass,
			Offset:  offset,
			KlassID: id,
			Length:  length,
			Reason:  fmt.Sprintf("no metadata for klass %d", id),
		})
	}

	evt, err := DecodeEvent(body, k, a.reg, &a.opts)
	if err == nil {
		evt.Offset = offset
		a.stats.Events++
		return Item{Offset: offset, Event: &evt}, true
	}
	if errors.Is(err, ErrTrailingBytes) {
		evt.Offset = offset
		a.stats.Events++
		a.stats.Errors++
		fe := &FrameError{Kind: KindTrailingBytes, Offset: offset, KlassID: id, Length: length, Err: err}
		a.log.Warn("trailing bytes in frame", zap.Int64("offset", offset), zap.Uint32("klass_id", id), zap.Error(err))
		return Item{Offset: offset, Event: &evt, Err: fe}, true
	}

	fe := &FrameError{Kind: KindFieldDecode, Offset: offset, KlassID: id, Length: length, Err: err}
	var fieldErr *fieldError
	if errors.As(err, &fieldErr) {
		fe.Field, fe.Reason, fe.Err = fieldErr.field, fieldErr.reason, fieldErr.err
	}
	return a.frameError(fe)
}

func (a *Assembler) dispatchMetadata(offset int64, length uint32, body []byte) (Item, bool) {
	k, err := DecodeMetadata(body, &a.opts)
	if err != nil {
		fe := &FrameError{Kind: KindMalformedMetadata, Offset: offset, KlassID: MetadataKlassID, Length: length, Err: err}
		if k.ID != MetadataKlassID {
			fe.Reason = describesKlass(k.ID)
		}
		return a.frameError(fe)
	}

	prev, existed := a.reg.get(k.ID)
	def, changed, err := a.reg.register(k)
	if err != nil {
		kind := KindMalformedMetadata
		if errors.Is(err, ErrKlassRedefined) {
			kind = KindKlassRedefined
		}
		return a.frameError(&FrameError{Kind: kind, Offset: offset, KlassID: MetadataKlassID, Length: length, Reason: describesKlass(k.ID), Err: err})
	}
	a.stats.Metadata++

	switch {
	case !existed:
		a.log.Debug("klass registered", zap.Uint32("klass_id", def.ID), zap.String("klass", def.Name), zap.Int("fields", len(def.Fields)))
	case changed:
		a.log.Debug("klass redefined", zap.Uint32("klass_id", def.ID), zap.String("klass", def.Name), zap.Int("version", def.Version))
	case !prev.Equal(&k):
		a.log.Debug("klass redefinition ignored", zap.Uint32("klass_id", k.ID), zap.String("policy", a.reg.Policy().String()))
	}

	if !a.opts.EmitMetadata {
		return Item{}, false
	}
	return Item{Offset: offset, Klass: def.clone()}, true
}

func describesKlass(id uint32) string { return fmt.Sprintf("describes klass %d", id) }

// frameError records a frame-local error, promoting it to fatal under FailFast.
func (a *Assembler) frameError(fe *FrameError) (Item, bool) {
	a.stats.Errors++
	if a.opts.FailFast {
		fe.fatal = true
		a.fail(fe)
		return Item{}, false
	}
	a.log.Warn("frame skipped", zap.String("kind", fe.Kind.String()), zap.Int64("offset", fe.Offset),
		zap.Uint32("klass_id", fe.KlassID), zap.Uint32("length", fe.Length), zap.Error(fe))
	return Item{Offset: fe.Offset, Err: fe}, true
}

func (a *Assembler) fail(fe *FrameError) {
	a.err = fe
	a.state = StateFatal
	a.log.Error("stream failed", zap.String("kind", fe.Kind.String()), zap.Int64("offset", fe.Offset), zap.Error(fe))
}

// State returns the current framing state.
func (a *Assembler) State() State { return a.state }

// Err returns the sticky fatal error, if any.
func (a *Assembler) Err() error { return a.err }

// Buffered returns the number of received bytes not yet consumed by a frame.
func (a *Assembler) Buffered() int { return len(a.buf) - a.off }

// Offset returns the stream offset of the first unconsumed byte.
func (a *Assembler) Offset() int64 { return a.pos }

// Registry returns the klass registry. Callers must not register into it
// while decoding.
func (a *Assembler) Registry() *Registry { return a.reg }

// DefinitionFor returns a copy of the klass currently registered under id.
func (a *Assembler) DefinitionFor(id uint32) (Klass, bool) {
	k, ok := a.reg.get(id)
	if !ok {
		return Klass{}, false
	}
	return *k.clone(), true
}

// Stats returns the processing counters.
func (a *Assembler) Stats() Stats { return a.stats }

// Reset discards all stream state, including learned klasses. Configured
// klasses are registered again.
func (a *Assembler) Reset() {
	a.reg = NewRegistry(a.opts.Redefine)
	// Preload cannot fail here: the same klasses were accepted by NewAssembler.
	_ = a.reg.Preload(a.opts.Klasses)
	a.buf, a.off, a.pos = a.buf[:0], 0, 0
	a.state, a.length, a.klassID = StateAwaitingLengthPrefix, 0, 0
	a.err = nil
	a.stats = Stats{}
}
