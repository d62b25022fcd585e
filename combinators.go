package loaddump

import (
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"

	"go.hasen.dev/generic"
	"golang.org/x/exp/constraints"
)

// MaxTupleArity is the largest number of slots DumpTuple and LoadTuple accept.
const MaxTupleArity = 12

// DumpBox dumps the value p points to. The indirection adds no bytes.
func DumpBox[T any](w *Writer, p *T, dump DumpFunc[T]) error {
	if p == nil {
		return internal(ErrNilBox)
	}
	return dump(w, *p)
}

// LoadBox loads a value into a freshly allocated T and stores its address in
// dest once it is complete.
func LoadBox[T any](r *Reader, dest **T, load LoadFunc[T]) error {
	v := new(T)
	if err := load(r, v); err != nil {
		return err
	}
	*dest = v
	return nil
}

// DumpSlice writes the length of s as an 8-byte count, then every element.
func DumpSlice[T any](w *Writer, s []T, dump DumpFunc[T]) error {
	if err := w.WriteLen(len(s)); err != nil {
		return err
	}
	for _, v := range s {
		if err := dump(w, v); err != nil {
			return err
		}
	}
	return nil
}

// LoadSlice reads a count and that many elements. dest is only assigned when
// every element decoded; an empty sequence loads as nil.
func LoadSlice[T any](r *Reader, dest *[]T, load LoadFunc[T]) error {
	d, err := NewSeqDecoder(r, load)
	if err != nil {
		return err
	}
	out, err := d.collect()
	if err != nil {
		return err
	}
	*dest = out
	return nil
}

// DumpIter writes n as the count, then the elements yielded by seq. seq must
// yield exactly n elements; anything else fails with ErrCountMismatch after
// the bytes written so far.
func DumpIter[T any](w *Writer, seq iter.Seq[T], n int, dump DumpFunc[T]) error {
	if err := w.WriteLen(n); err != nil {
		return err
	}
	i := 0
	for v := range seq {
		if i == n {
			return internal(fmt.Errorf("%w: more than %d", ErrCountMismatch, n))
		}
		if err := dump(w, v); err != nil {
			return err
		}
		i++
	}
	if i != n {
		return internal(fmt.Errorf("%w: %d of %d", ErrCountMismatch, i, n))
	}
	return nil
}

// DumpArray writes every element of a, with no count.
func DumpArray[T any](w *Writer, a []T, dump DumpFunc[T]) error {
	for _, v := range a {
		if err := dump(w, v); err != nil {
			return err
		}
	}
	return nil
}

// LoadArray reads exactly len(dst) elements. They are decoded into scratch
// storage and copied into dst only when all of them succeeded, so a failure
// leaves dst untouched.
func LoadArray[T any](r *Reader, dst []T, load LoadFunc[T]) error {
	tmp := make([]T, len(dst))
	for i := range tmp {
		if err := load(r, &tmp[i]); err != nil {
			return err
		}
	}
	copy(dst, tmp)
	return nil
}

// DumpTuple dumps each slot in order with no framing. Slots go through the
// reflection engine; pass pointers for union values.
func DumpTuple(w *Writer, slots ...any) error {
	if len(slots) > MaxTupleArity {
		return internal(fmt.Errorf("%w: %d > %d", ErrTupleArity, len(slots), MaxTupleArity))
	}
	for _, s := range slots {
		if err := w.Dump(s); err != nil {
			return err
		}
	}
	return nil
}

// LoadTuple loads each slot in order. Every slot must be a non-nil pointer.
// The slots are assigned together once all of them decoded.
func LoadTuple(r *Reader, slots ...any) error {
	if len(slots) > MaxTupleArity {
		return internal(fmt.Errorf("%w: %d > %d", ErrTupleArity, len(slots), MaxTupleArity))
	}
	targets := make([]reflect.Value, len(slots))
	values := make([]reflect.Value, len(slots))
	for i, s := range slots {
		rv := reflect.ValueOf(s)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return internal(fmt.Errorf("%w: tuple slot %d", ErrNilTarget, i))
		}
		v, err := r.loadScratch(rv.Type().Elem())
		if err != nil {
			return err
		}
		targets[i], values[i] = rv.Elem(), v
	}
	for i := range targets {
		targets[i].Set(values[i])
	}
	return nil
}

// DumpMap writes the size of m as an 8-byte count, then each key and value
// in ascending key order so that equal maps produce equal bytes.
func DumpMap[K constraints.Ordered, V any](w *Writer, m map[K]V, dumpKey DumpFunc[K], dumpVal DumpFunc[V]) error {
	if err := w.WriteLen(len(m)); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := dumpKey(w, k); err != nil {
			return err
		}
		if err := dumpVal(w, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// LoadMap reads a count and that many key/value pairs. A repeated key keeps
// the last value. dest is only assigned on success; an empty map loads as nil.
func LoadMap[K constraints.Ordered, V any](r *Reader, dest *map[K]V, loadKey LoadFunc[K], loadVal LoadFunc[V]) error {
	var n uint64
	if err := r.ReadLen(&n); err != nil {
		return err
	}
	if n == 0 {
		*dest = nil
		return nil
	}
	var m map[K]V
	generic.InitMap(&m)
	for i := uint64(0); i < n; i++ {
		var k K
		var v V
		start := r.count
		if err := loadKey(r, &k); err != nil {
			return err
		}
		if err := loadVal(r, &v); err != nil {
			return err
		}
		if r.count == start {
			if err := r.checkEmptyLen(n); err != nil {
				return err
			}
		}
		m[k] = v
	}
	*dest = m
	return nil
}
