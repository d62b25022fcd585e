package loaddump

import "iter"

// DefaultMaxPrealloc bounds the capacity reserved up front for a decoded
// sequence or map. Larger sequences grow as their elements actually arrive,
// so a corrupt count cannot force a huge allocation.
const DefaultMaxPrealloc = 1024

func prealloc(n uint64) int {
	return int(min(n, DefaultMaxPrealloc))
}

// SeqDecoder decodes a length-prefixed sequence one element at a time.
//
// It is forward-only and cannot be restarted. The first failing element is
// reported once; from then on the decoder is exhausted and yields nothing,
// not even the failure again. A consumer must treat that first failure as
// the outcome of the whole sequence.
//
// An element that consumes no input makes the declared count the only bound
// on the decode, so the count is then checked against the Reader's empty
// length limit and a larger one fails with ErrLengthLimit.
type SeqDecoder[T any] struct {
	r      *Reader
	load   LoadFunc[T]
	n      uint64 // declared element count
	read   uint64 // elements decoded so far
	failed bool
}

// NewSeqDecoder reads the 8-byte element count from r and returns a decoder
// for that many elements.
func NewSeqDecoder[T any](r *Reader, load LoadFunc[T]) (*SeqDecoder[T], error) {
	var n uint64
	if err := r.ReadLen(&n); err != nil {
		return nil, err
	}
	return &SeqDecoder[T]{r: r, load: load, n: n}, nil
}

// Len returns the declared element count.
func (d *SeqDecoder[T]) Len() uint64 { return d.n }

// Remaining returns how many elements are still to come, or 0 once failed.
func (d *SeqDecoder[T]) Remaining() uint64 {
	if d.failed {
		return 0
	}
	return d.n - d.read
}

// Next decodes the next element. ok is false once the sequence is complete
// or has failed. When ok is true, either v is the element or err is the
// failure that ended the sequence.
func (d *SeqDecoder[T]) Next() (v T, ok bool, err error) {
	if d.failed || d.read >= d.n {
		return v, false, nil
	}
	start := d.r.count
	if err := d.load(d.r, &v); err != nil {
		return d.fail(err)
	}
	if d.r.count == start {
		if err := d.r.checkEmptyLen(d.n); err != nil {
			return d.fail(err)
		}
	}
	d.read++
	return v, true, nil
}

func (d *SeqDecoder[T]) fail(err error) (v T, ok bool, _ error) {
	d.failed = true
	return v, true, err
}

// All returns an iterator over the remaining elements. A failure is yielded
// as the last pair.
func (d *SeqDecoder[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := d.Next()
			if !ok || !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// collect drains d, returning nil for an empty sequence.
func (d *SeqDecoder[T]) collect() ([]T, error) {
	if d.n == 0 {
		return nil, nil
	}
	out := make([]T, 0, prealloc(d.n))
	for v, err := range d.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
