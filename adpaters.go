package loaddump

import (
	"bytes"
	"io"
)

type (
	bytesBufferWriterAdapter struct{ *bytes.Buffer }
	// byteReaderAdapter gives a plain io.Reader a ReadByte that never reads
	// ahead, so a text load stops exactly on its terminator.
	byteReaderAdapter struct {
		io.Reader
		one [1]byte
	}
	// countingSink accepts and drops every byte. It backs Size.
	countingSink struct{ n int64 }
)

func (w *bytesBufferWriterAdapter) Flush() error { return nil }

// ReadByte reads exactly one byte from the underlying reader.
func (r *byteReaderAdapter) ReadByte() (byte, error) {
	if _, err := io.ReadFull(r.Reader, r.one[:]); err != nil {
		return 0, err
	}
	return r.one[0], nil
}

func (c *countingSink) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func (c *countingSink) WriteByte(byte) error {
	c.n++
	return nil
}

func (c *countingSink) WriteString(s string) (int, error) {
	c.n += int64(len(s))
	return len(s), nil
}

func (c *countingSink) Flush() error { return nil }
