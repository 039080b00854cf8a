package evstream_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/framegen"
)

func TestMuxIndependentStreams(t *testing.T) {
	m, err := evstream.NewMux()
	require.NoError(t, err)

	// Same klass id, different layouts per stream.
	other := evstream.Klass{ID: point.ID, Name: "Temp", Fields: []evstream.FieldDescriptor{{Name: "celsius", Type: evstream.TypeFloat64}}}
	a := framegen.New().Metadata(point).Event(point, pointEvent(1, 2)...).Bytes()
	b := framegen.New().Metadata(other).Event(other, evstream.Float64(21.5)).Bytes()

	itemsA, err := m.Feed("a", a)
	require.NoError(t, err)
	itemsB, err := m.Feed("b", b)
	require.NoError(t, err)
	require.Len(t, itemsA, 1)
	require.Len(t, itemsB, 1)

	assert.Equal(t, "Point", itemsA[0].Event.Klass)
	c, err := itemsB[0].Event.Float64("celsius")
	require.NoError(t, err)
	assert.Equal(t, 21.5, c)

	k, ok := m.Definition("b", point.ID)
	require.True(t, ok)
	assert.Equal(t, "Temp", k.Name)
	_, ok = m.Definition("missing", point.ID)
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len())
	require.NoError(t, m.Close("a"))
	assert.Equal(t, 1, m.Len())
	assert.ErrorIs(t, m.Close("a"), evstream.ErrUnknownStream)
	assert.ErrorIs(t, m.Finish("a"), evstream.ErrUnknownStream)
}

func TestMuxConcurrentFeeds(t *testing.T) {
	m, err := evstream.NewMux()
	require.NoError(t, err)
	data := framegen.Sample(framegen.New(), 40).Bytes()

	const streams = 16
	counts := make([]int, streams)
	errs := make([]error, streams)
	var wg sync.WaitGroup
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			chunk := i + 1
			for off := 0; off < len(data); off += chunk {
				items, err := m.Feed(id, data[off:min(off+chunk, len(data))])
				if err != nil {
					errs[i] = err
					return
				}
				counts[i] += len(items)
			}
			errs[i] = m.Finish(id)
		}()
	}
	wg.Wait()

	for i := 0; i < streams; i++ {
		assert.NoError(t, errs[i], "stream %d", i)
		assert.Equal(t, 40, counts[i], "stream %d", i)
	}

	seen := 0
	m.Range(func(id string, asm *evstream.Assembler) bool {
		seen++
		assert.Equal(t, uint64(40), asm.Stats().Events, id)
		return true
	})
	assert.Equal(t, streams, seen)
}

func TestMuxTruncatedClose(t *testing.T) {
	m, err := evstream.NewMux()
	require.NoError(t, err)
	data := framegen.New().Metadata(point).Event(point, pointEvent(1, 2)...).Bytes()

	_, err = m.Feed("s", data[:len(data)-2])
	require.NoError(t, err)
	assert.ErrorIs(t, m.Finish("s"), evstream.ErrTruncatedStream)
	assert.ErrorIs(t, m.Close("s"), evstream.ErrTruncatedStream)
	assert.Equal(t, 0, m.Len())
}

func TestMuxOpenEmptyStream(t *testing.T) {
	m, err := evstream.NewMux()
	require.NoError(t, err)

	require.NoError(t, m.Open("empty"))
	assert.Equal(t, 1, m.Len())
	assert.NoError(t, m.Close("empty"))
	assert.ErrorIs(t, m.Close("never-opened"), evstream.ErrUnknownStream)

	// Open keeps an existing stream's state.
	data := framegen.New().Metadata(point).Bytes()
	_, err = m.Feed("s", data[:len(data)-1])
	require.NoError(t, err)
	require.NoError(t, m.Open("s"))
	assert.ErrorIs(t, m.Finish("s"), evstream.ErrTruncatedStream)
}

func TestNewMuxValidatesOptions(t *testing.T) {
	_, err := evstream.NewMux(evstream.WithStringPrefixWidth(3))
	assert.ErrorIs(t, err, evstream.ErrInvalidOption)
}
