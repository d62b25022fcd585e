// Package loaddump implements a schema-bound binary format and the engine
// that dumps values into it and loads them back.
//
// The format carries no header, version or type information: fixed-width
// little-endian integers, single-byte booleans, NUL-terminated UTF-8 text,
// sequences prefixed with an 8-byte count, arrays and tuples with no framing,
// optionals prefixed with a presence byte and unions prefixed with a 4-byte
// variant ordinal. Decoding needs the exact type that was encoded.
//
// Values are encoded either by reflection (Dump, Load, Marshal, Unmarshal,
// with unions declared through RegisterUnion) or by hand-written glue built
// from Writer, Reader and the generic combinators (DumpSlice, LoadOption...).
package loaddump

import (
	"bytes"
	"io"
	"reflect"
)

// Dumper is implemented by types that write their own encoding.
type Dumper interface {
	DumpTo(w *Writer) error
}

// Loader is implemented by types that read their own encoding. LoadFrom is
// called on a zero value owned by the decode in progress.
type Loader interface {
	LoadFrom(r *Reader) error
}

// Codec is a type that writes and reads its own encoding.
type Codec interface {
	Dumper
	Loader
}

// DumpFunc writes one value of type T. Method expressions such as
// (*Writer).WriteUint32 are DumpFuncs.
type DumpFunc[T any] func(w *Writer, v T) error

// LoadFunc reads one value of type T into dest. Method expressions such as
// (*Reader).ReadUint32 are LoadFuncs.
type LoadFunc[T any] func(r *Reader, dest *T) error

// DumpValue dumps v through the reflection engine using its static type T,
// so a union value held in an interface keeps its tag.
func DumpValue[T any](w *Writer, v T) error {
	return w.dumpValue(reflect.ValueOf(&v).Elem())
}

// LoadValue loads a T through the reflection engine.
func LoadValue[T any](r *Reader, dest *T) error {
	return r.Load(dest)
}

// Dump writes the encoding of v to w and flushes it. Pass a pointer to dump a
// union value held in an interface variable; pointers add no bytes.
func Dump(w io.Writer, v any) error {
	bw, err := NewWriter(w)
	if err != nil {
		return err
	}
	if err := bw.Dump(v); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads one value from r into the value v points to. On failure the
// pointee is left untouched.
func Load(r io.Reader, v any) error {
	br, err := NewReader(r)
	if err != nil {
		return err
	}
	return br.Load(v)
}

// Marshal returns the encoding of v.
func Marshal(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w := &Writer{w: &bytesBufferWriterAdapter{buf}}
	if err := w.Dump(v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Unmarshal decodes data into the value v points to. Bytes left over after
// the value are an error.
func Unmarshal(data []byte, v any) error {
	br := NewBytesReader(data)
	if err := (&Reader{r: br}).Load(v); err != nil {
		return err
	}
	return checkTrailing(br)
}
