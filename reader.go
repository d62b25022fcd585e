package loaddump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

type source interface {
	io.Reader
	io.ByteReader
}

// Reader is the source every load reads from. It wraps any io.Reader, counts
// the bytes it consumes and latches the first error: after a failure every
// read is a no-op returning that same error.
//
// A Reader created by NewReader never reads ahead of the value being decoded,
// so the bytes following a load are still available on the underlying reader.
type Reader struct {
	r      source
	count  int64  // total bytes read
	err    error  // first error encountered.
	maxLen uint64 // cap on declared counts; 0 means no cap
}

var _ io.Reader = (*Reader)(nil)

// NewReader creates a Reader that consumes exactly the bytes it decodes.
// Readers without a ReadByte method are read one byte at a time where the
// format needs byte granularity; wrap them with NewReaderSize when reading
// ahead is acceptable.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}

	switch reader := r.(type) {
	case *Reader:
		return reader, nil
	// *bytes.Reader, *bytes.Buffer, *strings.Reader, *bufio.Reader, *BytesReader
	case source:
		return &Reader{r: reader}, nil
	}
	return &Reader{r: &byteReaderAdapter{Reader: r}}, nil
}

// NewReaderSize creates a Reader buffering through bufio with at least size
// bytes. The buffer may consume bytes past the last decoded value.
func NewReaderSize(r io.Reader, size int) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	if size < 16 {
		return nil, ErrSizeTooSmall
	}
	if br, ok := r.(*bufio.Reader); ok && br.Size() >= size {
		return &Reader{r: br}, nil
	}
	return &Reader{r: bufio.NewReaderSize(r, size)}, nil
}

// WithLimit caps the total number of bytes the Reader will consume from now
// on. Reading past it fails with ErrLimitExceeded.
func (r *Reader) WithLimit(n int64) *Reader {
	r.r = limitSource(r.r, n)
	return r
}

// WithMaxLen caps the element count a sequence or map may declare. Larger
// counts fail with ErrLengthLimit before any element is decoded.
func (r *Reader) WithMaxLen(n uint64) *Reader {
	r.maxLen = n
	return r
}

// Read implements the io.Reader interface.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	r.count += int64(n)
	if err != nil && err != io.EOF {
		r.setError(err)
		return n, r.err
	}
	return n, err
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }

// IsEOF reports whether the Reader stopped at a clean end of stream, that is
// before the first byte of a value.
func (r *Reader) IsEOF() bool { return errors.Is(r.err, io.EOF) }

// Result returns the total bytes read and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// setError records the first non-nil error as a read failure.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = newError(KindRead, err)
	}
}

// readFull reads exactly len(p) bytes. A stream ending before the first byte
// reports io.EOF, one ending inside reports io.ErrUnexpectedEOF.
func (r *Reader) readFull(p []byte) error {
	if r.err != nil {
		return r.err
	}
	n, err := io.ReadFull(r.r, p)
	r.count += int64(n)
	r.setError(err)
	return r.err
}

func (r *Reader) readByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.setError(err)
		return 0, r.err
	}
	r.count++
	return b, nil
}

// readUint reads width bytes, little-endian, into the low bytes of a uint64.
// Every integer of 8 bytes or less goes through here.
func (r *Reader) readUint(width int) (uint64, error) {
	if width == 1 {
		b, err := r.readByte()
		return uint64(b), err
	}
	var buf [8]byte
	if err := r.readFull(buf[:width]); err != nil {
		return 0, err
	}
	return Order.Uint64(buf[:]), nil
}

// --- Primitive Read Operations ---

// ReadBool maps 0 to false and any other byte to true.
func (r *Reader) ReadBool(dest *bool) error {
	b, err := r.readByte()
	if err != nil {
		return err
	}
	*dest = b != 0
	return nil
}

func (r *Reader) ReadUint8(dest *uint8) error {
	b, err := r.readByte()
	if err != nil {
		return err
	}
	*dest = b
	return nil
}

func (r *Reader) ReadUint16(dest *uint16) error { return ReadInt(r, dest) }
func (r *Reader) ReadUint32(dest *uint32) error { return ReadInt(r, dest) }
func (r *Reader) ReadUint64(dest *uint64) error { return ReadInt(r, dest) }
func (r *Reader) ReadInt8(dest *int8) error     { return ReadInt(r, dest) }
func (r *Reader) ReadInt16(dest *int16) error   { return ReadInt(r, dest) }
func (r *Reader) ReadInt32(dest *int32) error   { return ReadInt(r, dest) }
func (r *Reader) ReadInt64(dest *int64) error   { return ReadInt(r, dest) }

// ReadUint128 reads 16 bytes, low half first.
func (r *Reader) ReadUint128(dest *Uint128) error {
	var buf [16]byte
	if err := r.readFull(buf[:]); err != nil {
		return err
	}
	*dest = Uint128{Lo: Order.Uint64(buf[:8]), Hi: Order.Uint64(buf[8:])}
	return nil
}

func (r *Reader) ReadInt128(dest *Int128) error {
	var u Uint128
	if err := r.ReadUint128(&u); err != nil {
		return err
	}
	*dest = Int128{Lo: u.Lo, Hi: int64(u.Hi)}
	return nil
}

// ReadLen reads an 8-byte sequence count and checks it against WithMaxLen.
func (r *Reader) ReadLen(dest *uint64) error {
	var n uint64
	if err := r.ReadUint64(&n); err != nil {
		return err
	}
	if r.maxLen > 0 && n > r.maxLen {
		return newError(KindRead, fmt.Errorf("%w: %d > %d", ErrLengthLimit, n, r.maxLen))
	}
	*dest = n
	return nil
}

// DefaultMaxEmptyLen caps the declared count of a sequence whose elements
// occupy no bytes on the wire, unless WithMaxLen sets a cap. Such a count is
// not bounded by the input, so it is the only thing limiting the decode.
const DefaultMaxEmptyLen = 1 << 16

// checkEmptyLen rejects n elements that each consumed no input.
func (r *Reader) checkEmptyLen(n uint64) error {
	limit := r.maxLen
	if limit == 0 {
		limit = DefaultMaxEmptyLen
	}
	if n > limit {
		return newError(KindRead, fmt.Errorf("%w: %d elements occupying no bytes > %d", ErrLengthLimit, n, limit))
	}
	return nil
}

// ReadTag reads a 4-byte union variant ordinal.
func (r *Reader) ReadTag(dest *uint32) error { return r.ReadUint32(dest) }

// ReadText reads bytes up to the first 0 byte, which is consumed but not
// kept, and checks that they form valid UTF-8. Nothing past the 0 is read.
func (r *Reader) ReadText(dest *string) error {
	s, err := r.readUntilNull()
	if err != nil {
		return err
	}
	if !utf8.ValidString(s) {
		return newError(KindInvalidUTF8, fmt.Errorf("%d bytes ending at offset %d", len(s), r.count))
	}
	*dest = s
	return nil
}

func (r *Reader) readUntilNull() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	buf := getBuffer()
	defer putBuffer(buf)

	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF && buf.Len() > 0 {
				err = io.ErrUnexpectedEOF
			}
			r.setError(err)
			return "", r.err
		}
		r.count++
		if b == 0 {
			break
		}
		buf.WriteByte(b)
	}
	return buf.String(), nil
}
