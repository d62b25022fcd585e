package loaddump

import (
	"fmt"
	"io"
)

// SizeGeneric returns the number of bytes v.DumpTo writes, or -1 if it fails.
// It encodes v into a counting sink that keeps nothing.
func SizeGeneric[T Dumper](v T) int {
	n, err := sizeOf(v)
	if err != nil {
		return -1
	}
	return n
}

func sizeOf(v Dumper) (int, error) {
	w := &Writer{w: &countingSink{}}
	if err := v.DumpTo(w); err != nil {
		return 0, err
	}
	return int(w.count), nil
}

// MarshalBinaryGeneric provides a generic `encoding.BinaryMarshaler` implementation.
func MarshalBinaryGeneric[T Dumper](v T) ([]byte, error) {
	size, err := sizeOf(v)
	if err != nil {
		return nil, err
	}
	bw := NewBytesWriter(make([]byte, size))
	if err := v.DumpTo(&Writer{w: bw}); err != nil {
		return nil, err
	}
	if bw.N < size {
		return nil, fmt.Errorf("%w: expected %d bytes, but wrote %d", ErrTruncatedData, size, bw.N)
	}
	return bw.Bytes(), nil
}

// UnmarshalBinaryGeneric provides a generic `encoding.BinaryUnmarshaler`
// implementation. The value must consume data exactly.
func UnmarshalBinaryGeneric[T Loader](v T, data []byte) error {
	br := NewBytesReader(data)
	if err := v.LoadFrom(&Reader{r: br}); err != nil {
		return err
	}
	return checkTrailing(br)
}

// WriteToGeneric provides a generic `io.WriterTo` implementation. It returns
// the bytes accepted by w, flushing any buffer it introduced.
func WriteToGeneric[T Dumper](v T, w io.Writer) (int64, error) {
	bw, err := NewWriter(w)
	if err != nil {
		return 0, err
	}
	start := bw.Count()
	if err := v.DumpTo(bw); err != nil {
		return bw.Count() - start, err
	}
	err = bw.Flush()
	return bw.Count() - start, err
}

// ReadFromGeneric provides a generic, streaming `io.ReaderFrom` implementation.
// Only the bytes of one value are consumed from r.
func ReadFromGeneric[T Loader](v T, r io.Reader) (int64, error) {
	br, err := NewReader(r)
	if err != nil {
		return 0, err
	}
	start := br.Count()
	err = v.LoadFrom(br)
	return br.Count() - start, err
}

// MarshalToGeneric encodes v into p. A p too small for the value fails with a
// write error wrapping io.ErrShortWrite; the bytes that fit are left in p.
func MarshalToGeneric[T Dumper](v T, p []byte) (int, error) {
	bw := &BytesWriter{B: p}
	if err := v.DumpTo(&Writer{w: bw}); err != nil {
		return bw.N, err
	}
	return bw.N, nil
}
