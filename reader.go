package evstream

import (
	"errors"
	"io"
	"sync"
)

// ChunkSize is the default read size. 32KB is the size io.Copy uses.
const ChunkSize = 32 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// bufPool reuses read buffers across Readers; the Assembler copies what it keeps.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// Reader decodes frames from an io.Reader.
// It tracks the first transport error; subsequent reads become no-ops.
type Reader struct {
	r     io.Reader
	asm   *Assembler
	size  int
	count int64 // total bytes read
	err   error // first transport error, io.EOF included
}

// NewReaderSize creates a Reader that reads at most size bytes per call.
// A size of zero or less selects ChunkSize.
func NewReaderSize(r io.Reader, size int, opts ...Option) (*Reader, error) {
	if r == nil {
		return nil, ErrNilReader
	}
	if size <= 0 {
		size = ChunkSize
	}
	asm, err := NewAssembler(opts...)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, asm: asm, size: size}, nil
}

// NewReader creates a Reader with the default read size.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return NewReaderSize(r, 0, opts...)
}

// Next returns the next decoded item. It returns io.EOF when the input ends
// on a frame boundary, a KindTruncated *FrameError when it ends inside a
// frame, and the sticky error once the stream is fatal.
func (r *Reader) Next() (Item, error) {
	for {
		item, ok, err := r.asm.Next()
		if err != nil {
			return Item{}, err
		}
		if ok {
			return item, nil
		}
		if r.err != nil {
			if r.err != io.EOF {
				return Item{}, r.err
			}
			if err := r.asm.Finish(); err != nil {
				return Item{}, err
			}
			return Item{}, io.EOF
		}
		r.fill()
	}
}

// fill performs one read into a pooled buffer and hands the bytes to the Assembler.
func (r *Reader) fill() {
	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	b := *bp
	if r.size < len(b) {
		b = b[:r.size]
	} else if r.size > len(b) {
		b = make([]byte, r.size)
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := r.r.Read(b)
		if n > 0 {
			r.count += int64(n)
			// Append only fails once fatal, which asm.Next reports first.
			_ = r.asm.Append(b[:n])
		}
		if err != nil {
			r.setError(err)
			return
		}
		if n > 0 {
			return
		}
	}
	r.setError(io.ErrNoProgress)
}

// Close closes the underlying reader if it implements io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) IsEOF() bool  { return errors.Is(r.err, io.EOF) }

// Err returns the first transport error, or nil if input ended normally.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Assembler exposes the underlying Assembler, e.g. for DefinitionFor.
func (r *Reader) Assembler() *Assembler { return r.asm }

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}
