package evstream

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotVersion = 1

type snapshot struct {
	Version int     `msgpack:"v"`
	Offset  int64   `msgpack:"offset"`
	State   State   `msgpack:"state"`
	Pending []byte  `msgpack:"pending"`
	Klasses []Klass `msgpack:"klasses"`
	Stats   Stats   `msgpack:"stats"`
}

// MarshalBinary captures the stream state: unconsumed bytes, stream offset,
// framing state and learned klasses. Options are not included. A fatal
// Assembler cannot be snapshotted.
func (a *Assembler) MarshalBinary() ([]byte, error) {
	if a.err != nil {
		return nil, fmt.Errorf("%w: assembler is fatal: %v", ErrSnapshot, a.err)
	}
	return msgpack.Marshal(&snapshot{
		Version: snapshotVersion,
		Offset:  a.pos,
		State:   a.state,
		Pending: a.buf[a.off:],
		Klasses: a.reg.Klasses(),
		Stats:   a.stats,
	})
}

// UnmarshalBinary restores state captured by MarshalBinary. The receiver
// must come from NewAssembler; its options stay in effect.
func (a *Assembler) UnmarshalBinary(data []byte) error {
	if a.reg == nil {
		return fmt.Errorf("%w: restore into an Assembler created by NewAssembler", ErrSnapshot)
	}
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: version %d", ErrSnapshot, s.Version)
	}
	switch s.State {
	case StateAwaitingLengthPrefix:
	case StateAwaitingBody:
		if len(s.Pending) < HeaderSize {
			return fmt.Errorf("%w: %d pending bytes cannot hold a frame header", ErrSnapshot, len(s.Pending))
		}
	default:
		return fmt.Errorf("%w: state %v", ErrSnapshot, s.State)
	}

	reg := NewRegistry(a.opts.Redefine)
	if err := reg.restore(s.Klasses); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}

	// The header of a partial frame is still pending, so framing restarts from it.
	a.reg = reg
	a.buf, a.off, a.pos = append([]byte(nil), s.Pending...), 0, s.Offset
	a.state, a.length, a.klassID = StateAwaitingLengthPrefix, 0, 0
	a.err = nil
	a.stats = s.Stats
	return nil
}
