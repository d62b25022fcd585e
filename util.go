package loaddump

import "fmt"

// Ptr returns a pointer to a copy of v, handy for building boxed values.
func Ptr[T any](v T) *T { return &v }

// checkTrailing verifies that br was consumed to its end.
func checkTrailing(br *BytesReader) error {
	if n := br.Available(); n > 0 {
		return fmt.Errorf("%w: %d bytes left at offset %d", ErrTrailingData, n, br.Len())
	}
	return nil
}
