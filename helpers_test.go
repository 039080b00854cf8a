package evstream_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/framegen"
)

var point = evstream.Klass{ID: 1, Name: "Point", Fields: []evstream.FieldDescriptor{
	{Name: "x", Type: evstream.TypeUint32},
	{Name: "y", Type: evstream.TypeUint32},
}}

func pointEvent(x, y uint32) []evstream.Value {
	return []evstream.Value{evstream.Uint32(x), evstream.Uint32(y)}
}

// feedChunks feeds data in chunks of size bytes and then checks for a clean end.
func feedChunks(t *testing.T, data []byte, size int, opts ...evstream.Option) ([]evstream.Item, error) {
	t.Helper()
	a, err := evstream.NewAssembler(opts...)
	require.NoError(t, err)
	return feedSplits(a, data, func(rest int) int { return min(size, rest) })
}

// feedSplits feeds data in chunks whose sizes are chosen by next.
func feedSplits(a *evstream.Assembler, data []byte, next func(rest int) int) ([]evstream.Item, error) {
	var items []evstream.Item
	for len(data) > 0 {
		n := next(len(data))
		got, err := a.Feed(data[:n])
		items = append(items, got...)
		if err != nil {
			return items, err
		}
		data = data[n:]
	}
	return items, a.Finish()
}

// describe renders items so sequences from different chunkings can be compared.
func describe(items []evstream.Item, final error) []string {
	out := make([]string, 0, len(items)+1)
	for _, it := range items {
		s := fmt.Sprintf("@%d", it.Offset)
		if it.Event != nil {
			s += fmt.Sprintf(" %s v%d len=%d off=%d", it.Event.Describe(), it.Event.Version, it.Event.Length, it.Event.Offset)
		}
		if it.Klass != nil {
			s += fmt.Sprintf(" klass %s v%d", it.Klass, it.Klass.Version)
		}
		if it.Err != nil {
			s += " err: " + it.Err.Error()
		}
		out = append(out, s)
	}
	if final != nil {
		out = append(out, "final: "+final.Error())
	}
	return out
}

func events(items []evstream.Item) []*evstream.Event {
	var out []*evstream.Event
	for _, it := range items {
		if it.Event != nil {
			out = append(out, it.Event)
		}
	}
	return out
}

func frameErr(t *testing.T, err error) *evstream.FrameError {
	t.Helper()
	fe, ok := err.(*evstream.FrameError)
	require.Truef(t, ok, "want *FrameError, got %T: %v", err, err)
	return fe
}

// mixedStream exercises every frame outcome: good events of every tag,
// unregistered klasses, corrupt frames, trailing bytes, bad metadata and
// a redefinition.
func mixedStream(t *testing.T) []byte {
	t.Helper()
	enc := framegen.New()
	enc.Event(point, pointEvent(1, 2)...) // before its metadata
	framegen.Sample(enc, 6)
	enc.Metadata(point).Event(point, pointEvent(10, 20)...)
	enc.Frame(2, make([]byte, 8))                                    // unregistered
	enc.Frame(point.ID, []byte{1, 0, 0, 0})                          // y missing
	enc.Frame(point.ID, append(mustBody(t, enc, point, 3, 4), 0xEE)) // trailing byte

	meta, err := enc.MetadataBody(point)
	require.NoError(t, err)
	enc.Frame(evstream.MetadataKlassID, meta[:len(meta)-2]) // cut inside the last width

	redefined := evstream.Klass{ID: point.ID, Name: "Point", Fields: []evstream.FieldDescriptor{{Name: "x", Type: evstream.TypeUint64}}}
	enc.Metadata(redefined).Event(redefined, evstream.Uint64(1<<40))
	enc.Event(point, pointEvent(5, 6)...) // old layout, reads as x:u64
	require.NoError(t, enc.Err())
	return enc.Bytes()
}

func mustBody(t *testing.T, enc *framegen.Encoder, k evstream.Klass, x, y uint32) []byte {
	t.Helper()
	body, err := enc.EventBody(k, pointEvent(x, y)...)
	require.NoError(t, err)
	return body
}
