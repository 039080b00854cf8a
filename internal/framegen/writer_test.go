package framegen

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	_, err := NewWriter(nil)
	s.ErrorIs(err, ErrNilWriter)
}

func (s *WriterTestSuite) TestBasicWrites() {
	s.writer.WriteUint8(0xAA)
	s.writer.WriteUint16(0xBBCC)
	s.writer.WriteUint32(0xDDEEFF00)
	s.writer.WriteUint64(0x0102030405060708)
	s.writer.WriteInt8(-1)
	s.writer.WriteInt16(-2)
	s.writer.WriteBytes([]byte{5, 6, 7})

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.EqualValues(1+2+4+8+1+2+3, n)
	s.EqualValues(s.buf.Len(), s.writer.Count())

	expected := []byte{
		0xAA,       // WriteUint8
		0xCC, 0xBB, // WriteUint16 (Little Endian)
		0x00, 0xFF, 0xEE, 0xDD, // WriteUint32 (Little Endian)
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // WriteUint64 (Little Endian)
		0xFF,       // WriteInt8
		0xFE, 0xFF, // WriteInt16
		5, 6, 7, // WriteBytes
	}
	s.Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestBigEndianFloats() {
	s.writer.WithByteOrder(binary.BigEndian)
	s.writer.WriteFloat32(1.5)
	s.writer.WriteFloat64(-2)
	s.Require().NoError(s.writer.Flush())

	b := s.buf.Bytes()
	s.Equal(math.Float32bits(1.5), binary.BigEndian.Uint32(b))
	s.Equal(math.Float64bits(-2), binary.BigEndian.Uint64(b[4:]))
}

func (s *WriterTestSuite) TestLengthPrefixed() {
	s.writer.WriteString("hi")
	s.writer.WithPrefixWidth(1).WriteLengthPrefixed([]byte{9})
	s.writer.WithPrefixWidth(2).WriteString("")
	s.Require().NoError(s.writer.Flush())
	s.Equal([]byte{2, 0, 0, 0, 'h', 'i', 1, 9, 0, 0}, s.buf.Bytes())
}

func (s *WriterTestSuite) TestPrefixOverflowIsSticky() {
	s.writer.WithPrefixWidth(1).WriteString(strings.Repeat("x", 256))
	s.ErrorIs(s.writer.Err(), ErrPrefixOverflow)

	s.writer.WriteUint8(1)
	n, err := s.writer.Result()
	s.ErrorIs(err, ErrPrefixOverflow)
	s.Zero(n)
	s.Zero(s.buf.Len())
}

func (s *WriterTestSuite) TestBadPrefixWidth() {
	s.writer.WithPrefixWidth(3).WriteString("a")
	s.ErrorIs(s.writer.Err(), ErrPrefixWidth)
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestWriterBufferedFlushError(t *testing.T) {
	boom := errors.New("disk full")
	w, err := NewWriter(failingWriter{boom})
	assert.NoError(t, err)

	w.WriteUint32(7)
	assert.NoError(t, w.Err(), "buffered until flush")
	_, err = w.Result()
	assert.ErrorIs(t, err, boom)
}

func TestWriterReusesBufio(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	w, err := NewWriter(bw)
	assert.NoError(t, err)
	w.WriteUint16(1)
	assert.Zero(t, out.Len())
	assert.NoError(t, w.Flush())
	assert.Equal(t, []byte{1, 0}, out.Bytes())
}
