package evstream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/oy3o/evstream"
	"github.com/oy3o/evstream/internal/framegen"
)

func benchmarkFeed(b *testing.B, chunk int) {
	data := framegen.Sample(framegen.New(), 1000).Bytes()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a, _ := evstream.NewAssembler()
		for off := 0; off < len(data); off += chunk {
			if _, err := a.Feed(data[off:min(off+chunk, len(data))]); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkFeedWhole(b *testing.B)  { benchmarkFeed(b, 1<<30) }
func BenchmarkFeed4K(b *testing.B)     { benchmarkFeed(b, 4096) }
func BenchmarkFeed16B(b *testing.B)    { benchmarkFeed(b, 16) }
func BenchmarkFeedByByte(b *testing.B) { benchmarkFeed(b, 1) }

func BenchmarkDecodeEvent(b *testing.B) {
	opts := evstream.DefaultOptions()
	_ = opts.Validate()
	reg := evstream.NewRegistry(evstream.RedefineReplace)
	_ = reg.Preload([]evstream.Klass{framegen.BaseEvent, framegen.CallstackEvent})
	k, _ := reg.Lookup(framegen.CallstackEvent.ID)
	body, _ := framegen.New().EventBody(*k,
		framegen.Base(k.ID, 1, 2),
		evstream.Uint64(3),
		evstream.Uint32(4),
		evstream.String("frame_label"),
	)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = evstream.DecodeEvent(body, k, reg, &opts)
	}
}

func BenchmarkReader(b *testing.B) {
	data := framegen.Sample(framegen.New(), 1000).Bytes()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, _ := evstream.NewReader(bytes.NewReader(data))
		for {
			if _, err := r.Next(); err == io.EOF {
				break
			} else if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// Baseline: raw header walk with no decoding, to see the framing overhead.
func BenchmarkHeaderWalk(b *testing.B) {
	data := framegen.Sample(framegen.New(), 1000).Bytes()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := evstream.NewCursor(data)
		for c.Available() > 0 {
			n, _ := c.ReadUint32()
			_, _ = c.ReadUint32()
			_ = c.Skip(int(n))
		}
	}
}
