package evstream

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Mux decodes many independent streams, each with its own Assembler and
// Registry. Streams are created by Open or on first Feed.
//
// Different streams may be used from different goroutines concurrently;
// one stream must still be driven by one goroutine at a time.
type Mux struct {
	opts    []Option
	log     *zap.Logger
	streams *xsync.Map[string, *Assembler]
}

// NewMux creates a Mux whose streams share the given options.
func NewMux(opts ...Option) (*Mux, error) {
	probe, err := NewAssembler(opts...)
	if err != nil {
		return nil, err
	}
	return &Mux{
		opts:    opts,
		log:     probe.log,
		streams: xsync.NewMap[string, *Assembler](),
	}, nil
}

func (m *Mux) stream(id string) *Assembler {
	asm, _ := m.streams.LoadOrCompute(id, func() (*Assembler, bool) {
		opts := append(m.opts[:len(m.opts):len(m.opts)], WithLogger(m.log.With(zap.String("stream", id))))
		// Options were validated by NewMux.
		asm, err := NewAssembler(opts...)
		return asm, err != nil
	})
	return asm
}

// Open creates stream id unless it already exists, so an input that ends
// before its first byte still closes cleanly.
func (m *Mux) Open(id string) error {
	if m.stream(id) == nil {
		return fmt.Errorf("%w: %q could not be created", ErrUnknownStream, id)
	}
	return nil
}

// Feed decodes p as the next chunk of stream id.
func (m *Mux) Feed(id string, p []byte) ([]Item, error) {
	asm := m.stream(id)
	if asm == nil {
		return nil, fmt.Errorf("%w: %q could not be created", ErrUnknownStream, id)
	}
	return asm.Feed(p)
}

// Finish checks whether stream id ended on a frame boundary.
func (m *Mux) Finish(id string) error {
	asm, ok := m.streams.Load(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStream, id)
	}
	return asm.Finish()
}

// Definition returns the klass currently registered under klassID in stream id.
func (m *Mux) Definition(id string, klassID uint32) (Klass, bool) {
	asm, ok := m.streams.Load(id)
	if !ok {
		return Klass{}, false
	}
	return asm.DefinitionFor(klassID)
}

// Close removes stream id and reports whether it ended on a frame boundary.
func (m *Mux) Close(id string) error {
	asm, ok := m.streams.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStream, id)
	}
	return asm.Finish()
}

// Range calls f for each stream until f returns false.
func (m *Mux) Range(f func(id string, asm *Assembler) bool) {
	m.streams.Range(f)
}

// Len returns the number of open streams.
func (m *Mux) Len() int { return m.streams.Size() }
