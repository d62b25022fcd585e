package loaddump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

type sink interface {
	io.Writer
	io.ByteWriter
	io.StringWriter
	Flush() error
}

// Writer is the sink every dump is written against. It wraps any io.Writer,
// counts the bytes it accepts and latches the first stream error: after a
// failure every write is a no-op returning that same error.
//
// Bytes accepted before a failure are not rolled back.
type Writer struct {
	w     sink
	count int64 // total bytes written
	err   error // first error encountered. Subsequent writes become no-ops.
	// borrowed marks a buffer owned by the caller, who decides when to flush it.
	borrowed bool
}

var _ io.Writer = (*Writer)(nil)

// NewWriterSize creates a new Writer buffering through bufio with at least
// size bytes, unless w already is an in-memory or buffered sink.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Nested dumps keep writing through the enclosing Writer so that its
	// count and latched error stay authoritative. Flushing the returned
	// Writer flushes the enclosing one.
	case *Writer:
		return bw, nil

	// prevent unpredictable double-buffering.
	case *bufio.Writer:
		if bw.Size() >= size {
			return &Writer{w: bw, borrowed: true}, nil
		}
		return nil, ErrAlreadyBuffered

	// underlying is a buf so we don't need buffering
	case *BytesWriter:
		return &Writer{w: bw}, nil
	case *bytes.Buffer:
		return &Writer{w: &bytesBufferWriterAdapter{bw}}, nil
	}

	return &Writer{w: bufio.NewWriterSize(w, size)}, nil
}

// NewWriter creates a new Writer with a default buffer size.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterSize(w, 0)
}

// Write implements the io.Writer interface.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(buf)
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error as a write failure.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = newError(KindWrite, err)
	}
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	if w.borrowed || w.err != nil {
		return w.err
	}
	w.setError(w.w.Flush())
	return w.err
}

func (w *Writer) write(p []byte) error {
	_, err := w.Write(p)
	return err
}

// writeUint writes the low width bytes of v, little-endian. Every integer of
// 8 bytes or less goes through here.
func (w *Writer) writeUint(v uint64, width int) error {
	if w.err != nil {
		return w.err
	}
	if width == 1 {
		return w.writeByte(byte(v))
	}
	var buf [8]byte
	Order.PutUint64(buf[:], v)
	return w.write(buf[:width])
}

func (w *Writer) writeByte(b byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.w.WriteByte(b)
	if err == nil {
		w.count++
	}
	w.setError(err)
	return w.err
}

// --- Primitive Write Operations ---

// WriteBool writes 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.writeByte(1)
	}
	return w.writeByte(0)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.writeByte(v) }
func (w *Writer) WriteUint16(v uint16) error { return w.writeUint(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.writeUint(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.writeUint(v, 8) }
func (w *Writer) WriteInt8(v int8) error     { return w.writeByte(uint8(v)) }
func (w *Writer) WriteInt16(v int16) error   { return w.writeUint(uint64(v), 2) }
func (w *Writer) WriteInt32(v int32) error   { return w.writeUint(uint64(v), 4) }
func (w *Writer) WriteInt64(v int64) error   { return w.writeUint(uint64(v), 8) }

// WriteUint128 writes the 16 bytes of v, low half first.
func (w *Writer) WriteUint128(v Uint128) error {
	if w.err != nil {
		return w.err
	}
	var buf [16]byte
	Order.PutUint64(buf[:8], v.Lo)
	Order.PutUint64(buf[8:], v.Hi)
	return w.write(buf[:])
}

func (w *Writer) WriteInt128(v Int128) error {
	return w.WriteUint128(Uint128{Lo: v.Lo, Hi: uint64(v.Hi)})
}

// WriteLen writes a sequence count as an 8-byte unsigned integer.
func (w *Writer) WriteLen(n int) error { return w.WriteUint64(uint64(n)) }

// WriteTag writes a union variant ordinal as a 4-byte unsigned integer.
func (w *Writer) WriteTag(ordinal uint32) error { return w.WriteUint32(ordinal) }

// WriteText writes the bytes of s followed by a single 0 byte. Text holding a
// 0 byte cannot be framed and is rejected before anything is written.
func (w *Writer) WriteText(s string) error {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return newError(KindEmbeddedNUL, fmt.Errorf("NUL at offset %d of %d", i, len(s)))
	}
	if w.err != nil {
		return w.err
	}
	n, err := w.w.WriteString(s)
	w.count += int64(n)
	w.setError(err)
	if w.err != nil {
		return w.err
	}
	return w.writeByte(0)
}
