package loaddump

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mocks and Helpers ---

// A simple fixed-size struct for testing codec implementations.
type mockPayload struct {
	ID   uint32
	Data [4]byte
}

type mockCodec = Binary[mockPayload]

// mockFlushingWriter helps verify that a writer's Flush method is called.
type mockFlushingWriter struct {
	bytes.Buffer
	flushed bool
}

func (m *mockFlushingWriter) Flush() error {
	m.flushed = true
	return nil
}

// --- Writer Test Suite ---

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("NilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})

	s.T().Run("NestedWriterIsShared", func(t *testing.T) {
		w, err := NewWriter(s.writer)
		require.NoError(t, err)
		assert.Same(t, s.writer, w)
	})

	s.T().Run("BorrowedBufio", func(t *testing.T) {
		var out bytes.Buffer
		bw := bufio.NewWriterSize(&out, 64)

		w, err := NewWriterSize(bw, 32)
		require.NoError(t, err)
		require.NoError(t, w.WriteUint16(0x0102))
		require.NoError(t, w.Flush())
		assert.Zero(t, out.Len(), "a borrowed buffer is flushed by its owner")

		require.NoError(t, bw.Flush())
		assert.Equal(t, []byte{0x02, 0x01}, out.Bytes())

		_, err = NewWriterSize(bw, 128)
		assert.ErrorIs(t, err, ErrAlreadyBuffered)
	})
}

func (s *WriterTestSuite) TestBasicWrites() {
	codec := &mockCodec{mockPayload{ID: 0xDEADBEEF, Data: [4]byte{1, 2, 3, 4}}}

	s.writer.WriteUint8(0xAA)
	s.writer.WriteUint16(0xBBCC)
	s.writer.WriteUint32(0xDDEEFF00)
	s.writer.WriteUint64(0x0102030405060708)
	s.writer.WriteBool(true)
	s.writer.WriteText("abc")
	s.writer.Dump(codec)

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(1+2+4+8+1+4+8, n)
	s.Assert().EqualValues(s.buf.Len(), s.writer.Count())

	expected := []byte{
		0xAA,       // WriteUint8
		0xCC, 0xBB, // WriteUint16 (Little Endian)
		0x00, 0xFF, 0xEE, 0xDD, // WriteUint32 (Little Endian)
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // WriteUint64 (Little Endian)
		0x01,                   // WriteBool
		0x61, 0x62, 0x63, 0x00, // WriteText
		0xEF, 0xBE, 0xAD, 0xDE, 1, 2, 3, 4, // Dump(codec)
	}
	s.Assert().Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestErrorHandling() {
	s.T().Run("ShortBufferError", func(t *testing.T) {
		fixedBuf := make([]byte, 5)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		require.NoError(t, writer.WriteUint32(0x11223344))
		err := writer.WriteUint32(0xAABBCCDD)

		require.Error(t, err)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.ErrorIs(t, err, ErrWrite)
	})

	s.T().Run("WriteAfterErrorIsNoOp", func(t *testing.T) {
		fixedBuf := make([]byte, 5)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)

		firstErr := writer.Err()
		require.Error(t, firstErr)

		// This subsequent write should be a no-op because an error state is set.
		assert.Equal(t, firstErr, writer.WriteUint8(0xFF))
		writer.Flush()
		assert.Equal(t, firstErr, writer.Err(), "The latched error should not change")

		// The first 4 bytes, then 1 byte of the second write before the buffer ran out.
		// Accepted bytes are not rolled back.
		assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11, 0xDD}, fixedBuf)
		assert.EqualValues(t, 5, writer.Count())
	})

	s.T().Run("EmbeddedNULIsRejectedBeforeWriting", func(t *testing.T) {
		err := s.writer.WriteText("a\x00b")
		assert.ErrorIs(t, err, ErrEmbeddedNUL)
		assert.Zero(t, s.writer.Count())
		assert.Zero(t, s.buf.Len())
		assert.NoError(t, s.writer.Err(), "a rejected value does not poison the stream")
	})
}

func (s *WriterTestSuite) TestFlush() {
	mock := &mockFlushingWriter{}
	writer, _ := NewWriterSize(mock, 128)
	writer.WriteUint8(0xAA)

	// Before flush, data is in the buffer, but not in the underlying writer.
	s.Assert().True(writer.w.(*bufio.Writer).Buffered() > 0)
	s.Assert().Zero(mock.Len())

	s.Require().NoError(writer.Flush())

	s.Assert().False(mock.flushed, "bufio does not forward Flush to the underlying writer")
	s.Assert().Zero(writer.w.(*bufio.Writer).Buffered())
	s.Assert().Equal(1, mock.Buffer.Len())
}

func (s *WriterTestSuite) TestNestedDumpFlushes() {
	mock := &mockFlushingWriter{}
	writer, _ := NewWriterSize(mock, 128)
	writer.WriteUint8(0xAA)

	// Dump wraps the same Writer, so its Flush drains the shared buffer.
	s.Require().NoError(Dump(writer, uint8(0xBB)))
	s.Assert().Zero(writer.w.(*bufio.Writer).Buffered())
	s.Assert().Equal([]byte{0xAA, 0xBB}, mock.Bytes())
	s.Assert().EqualValues(2, writer.Count())
}

// TestWriter runs the WriterTestSuite.
func TestWriter(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

// --- Reader Test Suite ---

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestConstructors() {
	s.T().Run("NilReader", func(t *testing.T) {
		_, err := NewReader(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})

	s.T().Run("SizeTooSmall", func(t *testing.T) {
		_, err := NewReaderSize(bytes.NewReader(nil), 8)
		assert.ErrorIs(t, err, ErrSizeTooSmall)
	})
}

func (s *ReaderTestSuite) TestSuccessfulReads() {
	data := []byte{
		0xAA,       // uint8
		0xCC, 0xBB, // uint16
		0x00, 0xFF, 0xEE, 0xDD, // uint32
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // uint64
		0x68, 0x69, 0x00, // text
	}
	r, _ := NewReader(bytes.NewReader(data))

	var v8 uint8
	var v16 uint16
	var v32 uint32
	var v64 uint64
	var text string
	r.ReadUint8(&v8)
	r.ReadUint16(&v16)
	r.ReadUint32(&v32)
	r.ReadUint64(&v64)
	r.ReadText(&text)

	s.Require().NoError(r.Err())
	s.Assert().Equal(uint8(0xAA), v8)
	s.Assert().Equal(uint16(0xBBCC), v16)
	s.Assert().Equal(uint32(0xDDEEFF00), v32)
	s.Assert().Equal(uint64(0x0102030405060708), v64)
	s.Assert().Equal("hi", text)
	s.Assert().EqualValues(len(data), r.Count())

	// The next read should result in a clean EOF.
	r.ReadUint8(&v8)
	s.Assert().ErrorIs(r.Err(), io.EOF)
	s.Assert().ErrorIs(r.Err(), ErrRead)
	s.Assert().True(r.IsEOF())
}

func (s *ReaderTestSuite) TestErrorHandling() {
	s.T().Run("ReadPastEOF", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03}
		r, _ := NewReader(bytes.NewReader(data))
		var v32 uint32
		r.ReadUint32(&v32) // Attempt to read 4 bytes from a 3-byte source.

		require.Error(t, r.Err())
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
		assert.False(t, r.IsEOF(), "ErrUnexpectedEOF should not be considered a clean EOF")
	})

	s.T().Run("ReadAfterErrorIsNoOp", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03}
		r, _ := NewReader(bytes.NewReader(data))
		var v32 uint32
		var v8 uint8

		r.ReadUint32(&v32) // This will trigger and latch the error.
		firstErr := r.Err()
		require.Error(t, firstErr)

		r.ReadUint8(&v8) // This read should not happen.
		assert.Equal(t, firstErr, r.Err(), "The latched error should not change")
		assert.Equal(t, uint8(0), v8, "Destination variable should be unchanged after an error")
		assert.Equal(t, uint32(0), v32)
	})

	s.T().Run("LimitExceeded", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader(make([]byte, 16)))
		r.WithLimit(4)

		var v64 uint64
		err := r.ReadUint64(&v64)
		assert.ErrorIs(t, err, ErrLimitExceeded)
		assert.ErrorIs(t, err, ErrRead)
		assert.False(t, r.IsEOF())
	})

	s.T().Run("LengthLimit", func(t *testing.T) {
		data := []byte{5, 0, 0, 0, 0, 0, 0, 0}
		r, _ := NewReader(bytes.NewReader(data))
		r.WithMaxLen(4)

		var n uint64
		err := r.ReadLen(&n)
		assert.ErrorIs(t, err, ErrLengthLimit)
		assert.Zero(t, n)
	})
}

func (s *ReaderTestSuite) TestText() {
	s.T().Run("StopsAtTerminator", func(t *testing.T) {
		src := bytes.NewReader([]byte{'a', 'b', 'c', 0, 0x2A})
		// OneByteReader hides ReadByte, so the Reader cannot rely on src buffering.
		r, _ := NewReader(iotest.OneByteReader(src))

		var text string
		require.NoError(t, r.ReadText(&text))
		assert.Equal(t, "abc", text)
		assert.EqualValues(t, 4, r.Count())
		assert.Equal(t, 1, src.Len(), "the byte after the terminator is left unread")
	})

	s.T().Run("Empty", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0}))
		text := "stale"
		require.NoError(t, r.ReadText(&text))
		assert.Equal(t, "", text)
	})

	s.T().Run("InvalidUTF8", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0xFF, 0xFE, 0}))
		text := "kept"
		err := r.ReadText(&text)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
		kind, ok := KindOf(err)
		assert.True(t, ok)
		assert.Equal(t, KindInvalidUTF8, kind)
		assert.Equal(t, "kept", text)
	})

	s.T().Run("MissingTerminator", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte("ab")))
		var text string
		err := r.ReadText(&text)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.False(t, r.IsEOF())
	})
}

// TestReader runs the ReaderTestSuite.
func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

// --- Standalone Codec Tests ---

func TestBinary_SizeCache(t *testing.T) {
	c := &mockCodec{mockPayload{ID: 1}}
	expectedSize := 8 // uint32(4) + [4]byte(4)

	// The first call populates the cache.
	assert.Equal(t, expectedSize, c.Size())
	assert.Equal(t, expectedSize, c.Size())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c2 := &mockCodec{mockPayload{ID: 2}}
			assert.Equal(t, expectedSize, c2.Size())
		}()
	}
	wg.Wait()
}

func TestBinary_VariableSize(t *testing.T) {
	c := &Binary[[]string]{Payload: []string{"a", "bc"}}
	assert.Equal(t, 8+2+3, c.Size())

	data, err := c.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, c.Size())

	var out Binary[[]string]
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, c.Payload, out.Payload)
}

func TestBinary_Streams(t *testing.T) {
	c := &mockCodec{mockPayload{ID: 7, Data: [4]byte{9, 8, 7, 6}}}

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	buf.WriteByte(0x55) // the next value on the stream

	var out mockCodec
	n, err = out.ReadFrom(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
	assert.Equal(t, c.Payload, out.Payload)
	assert.Equal(t, 1, buf.Len(), "ReadFrom consumes only its own value")
}

func TestBinary_Errors(t *testing.T) {
	t.Run("MarshalToShortBuffer", func(t *testing.T) {
		c := &mockCodec{}
		shortBuf := make([]byte, c.Size()-1)
		n, err := c.MarshalTo(shortBuf)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.Equal(t, len(shortBuf), n)
	})

	t.Run("UnmarshalWithTruncatedData", func(t *testing.T) {
		c := &mockCodec{}
		validData, _ := c.MarshalBinary()
		truncatedData := validData[:len(validData)-1]

		err := c.UnmarshalBinary(truncatedData)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("UnmarshalWithTrailingData", func(t *testing.T) {
		c := &mockCodec{}
		validData, _ := c.MarshalBinary()
		trailingData := append(validData, 0x00, 0x01)

		err := c.UnmarshalBinary(trailingData)
		require.ErrorIs(t, err, ErrTrailingData)
		assert.Contains(t, err.Error(), "2 bytes left")
	})

	t.Run("MarshalUnencodable", func(t *testing.T) {
		c := &Binary[float64]{Payload: 1.5}
		assert.Equal(t, -1, c.Size())
		_, err := c.MarshalBinary()
		var te *TypeError
		assert.ErrorAs(t, err, &te)
		assert.ErrorIs(t, err, ErrInternal)
	})
}
