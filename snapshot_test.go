package evstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/framegen"
)

func TestSnapshotResumesMidFrame(t *testing.T) {
	data := framegen.Sample(framegen.New(), 20).Bytes()
	want := describe(feedChunks(t, data, len(data)))

	for _, cut := range []int{1, 5, 9, 40, len(data) / 2, len(data) - 1} {
		first, err := evstream.NewAssembler()
		require.NoError(t, err)
		head, err := first.Feed(data[:cut])
		require.NoError(t, err)

		snap, err := first.MarshalBinary()
		require.NoError(t, err)

		second, err := evstream.NewAssembler()
		require.NoError(t, err)
		require.NoError(t, second.UnmarshalBinary(snap))
		assert.Equal(t, first.Offset(), second.Offset(), "cut %d", cut)
		assert.Equal(t, first.Buffered(), second.Buffered(), "cut %d", cut)
		assert.Equal(t, first.Registry().Klasses(), second.Registry().Klasses(), "cut %d", cut)

		tail, err := second.Feed(data[cut:])
		require.NoError(t, err)
		require.NoError(t, second.Finish())

		assert.Equal(t, want, describe(append(head, tail...), nil), "cut %d", cut)
	}
}

func TestSnapshotKeepsVersions(t *testing.T) {
	v2 := evstream.Klass{ID: point.ID, Name: "Point", Fields: []evstream.FieldDescriptor{{Name: "x", Type: evstream.TypeUint64}}}
	a, err := evstream.NewAssembler()
	require.NoError(t, err)
	_, err = a.Feed(framegen.New().Metadata(point).Metadata(v2).Bytes())
	require.NoError(t, err)

	snap, err := a.MarshalBinary()
	require.NoError(t, err)
	b, err := evstream.NewAssembler()
	require.NoError(t, err)
	require.NoError(t, b.UnmarshalBinary(snap))

	k, ok := b.DefinitionFor(point.ID)
	require.True(t, ok)
	assert.Equal(t, 2, k.Version)
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestSnapshotRefusals(t *testing.T) {
	a, err := evstream.NewAssembler(evstream.WithMaxFrameSize(8))
	require.NoError(t, err)
	_, err = a.Feed(framegen.New().RawFrame(9, 1, nil).Bytes())
	require.Error(t, err)
	_, err = a.MarshalBinary()
	assert.ErrorIs(t, err, evstream.ErrSnapshot)

	var zero evstream.Assembler
	assert.ErrorIs(t, zero.UnmarshalBinary(nil), evstream.ErrSnapshot)

	b, err := evstream.NewAssembler()
	require.NoError(t, err)
	assert.ErrorIs(t, b.UnmarshalBinary([]byte{0xC1}), evstream.ErrSnapshot)

	bad, err := msgpack.Marshal(map[string]any{"v": 99})
	require.NoError(t, err)
	assert.ErrorIs(t, b.UnmarshalBinary(bad), evstream.ErrSnapshot)

	short, err := msgpack.Marshal(map[string]any{"v": 1, "state": 1, "pending": []byte{1, 2}})
	require.NoError(t, err)
	assert.ErrorIs(t, b.UnmarshalBinary(short), evstream.ErrSnapshot)
}
