package loaddump

import (
	"io"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// sizeCache holds the wire size of types whose encoding has a fixed width,
// or -1 for types whose size depends on the value.
var sizeCache = xsync.NewMap[reflect.Type, int]()

var (
	uint128Type = reflect.TypeFor[Uint128]()
	int128Type  = reflect.TypeFor[Int128]()
)

// fixedSize returns the encoded size shared by every value of t, or -1.
func fixedSize(t reflect.Type) int {
	if n, ok := sizeCache.Load(t); ok {
		return n
	}
	n := computeFixedSize(t)
	sizeCache.Store(t, n)
	return n
}

func computeFixedSize(t reflect.Type) int {
	switch {
	case t == uint128Type || t == int128Type:
		return 16
	case t.Implements(dumperType) || reflect.PointerTo(t).Implements(dumperType):
		return -1
	}
	switch t.Kind() {
	case reflect.Bool:
		return 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return widthOf(t)
	case reflect.Array:
		elem := fixedSize(t.Elem())
		if elem < 0 {
			return -1
		}
		return elem * t.Len()
	case reflect.Struct:
		total := 0
		for i := range t.NumField() {
			f := t.Field(i)
			if skipField(f) {
				continue
			}
			n := fixedSize(f.Type)
			if n < 0 {
				return -1
			}
			total += n
		}
		return total
	}
	return -1
}

// Binary gives any value the engine can encode the standard binary and
// stream interfaces.
type Binary[T any] struct {
	Payload T
}

// Statically assert that Binary implements Codec.
var _ Codec = (*Binary[struct{}])(nil)

func (b Binary[T]) DumpTo(w *Writer) error { return DumpValue(w, b.Payload) }

// LoadFrom replaces Payload only when the whole value decoded.
func (b *Binary[T]) LoadFrom(r *Reader) error { return LoadValue(r, &b.Payload) }

// Size returns the encoded size of the payload in bytes, or -1 if it cannot
// be encoded. Types with a fixed-width encoding are sized from a cache
// without encoding anything.
func (b *Binary[T]) Size() int {
	if n := fixedSize(reflect.TypeFor[T]()); n >= 0 {
		return n
	}
	return SizeGeneric(b)
}

// MarshalBinary implements the standard `encoding.BinaryMarshaler` interface.
// Note: This method allocates a new byte slice. For performance-critical paths,
// use `MarshalTo` or `WriteTo` instead.
func (b *Binary[T]) MarshalBinary() ([]byte, error) { return MarshalBinaryGeneric(b) }

// UnmarshalBinary implements the standard `encoding.BinaryUnmarshaler` interface.
// Bytes left after the payload are rejected with ErrTrailingData.
func (b *Binary[T]) UnmarshalBinary(data []byte) error { return UnmarshalBinaryGeneric(b, data) }

// WriteTo implements `io.WriterTo`.
func (b *Binary[T]) WriteTo(w io.Writer) (int64, error) { return WriteToGeneric(b, w) }

// ReadFrom implements `io.ReaderFrom`. It consumes only the payload's bytes.
func (b *Binary[T]) ReadFrom(r io.Reader) (int64, error) { return ReadFromGeneric(b, r) }

// MarshalTo encodes the payload into p without allocating.
func (b *Binary[T]) MarshalTo(p []byte) (int, error) { return MarshalToGeneric(b, p) }
