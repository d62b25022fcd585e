package loaddump

import (
	"errors"
	"reflect"
)

// Kind classifies a recoverable failure.
type Kind uint8

const (
	// KindInternal marks a broken invariant of the engine or a value it cannot encode.
	KindInternal Kind = iota
	// KindRead marks a failure of the underlying source.
	KindRead
	// KindWrite marks a failure of the underlying sink.
	KindWrite
	// KindInvalidUTF8 marks text that is not valid UTF-8.
	KindInvalidUTF8
	// KindEmbeddedNUL marks text that cannot be framed because it contains a 0 byte.
	KindEmbeddedNUL
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "cannot read from stream"
	case KindWrite:
		return "cannot write to stream"
	case KindInvalidUTF8:
		return "invalid UTF-8 in input"
	case KindEmbeddedNUL:
		return "text contains an embedded NUL byte"
	default:
		return "internal error"
	}
}

// Error is the recoverable error returned by every dump and load operation.
// Err holds the cause and may be nil.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "loaddump: " + e.Kind.String()
	}
	return "loaddump: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the bare sentinel of the same kind, so that
// errors.Is(err, ErrRead) holds for every read failure regardless of its cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels, for use with errors.Is.
var (
	ErrInternal    = &Error{Kind: KindInternal}
	ErrRead        = &Error{Kind: KindRead}
	ErrWrite       = &Error{Kind: KindWrite}
	ErrInvalidUTF8 = &Error{Kind: KindInvalidUTF8}
	ErrEmbeddedNUL = &Error{Kind: KindEmbeddedNUL}
)

// KindOf returns the kind of err and whether err carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindInternal, false
}

func newError(kind Kind, cause error) error {
	return &Error{Kind: kind, Err: cause}
}

func internal(cause error) error {
	return &Error{Kind: KindInternal, Err: cause}
}

// TypeError reports a Go type the engine has no encoding for.
type TypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason == "" {
		return "loaddump: unsupported type " + e.Type.String()
	}
	return "loaddump: unsupported type " + e.Type.String() + ": " + e.Reason
}

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with a nil io.Reader/io.Writer.
	ErrNilIO = errors.New("loaddump: NewReader/NewWriter called with a nil io.Reader/io.Writer")

	// ErrSizeTooSmall indicates a size conflict with bufio.
	ErrSizeTooSmall = errors.New("loaddump: NewReaderSize with a size smaller than 16 conflict with bufio")

	// ErrAlreadyBuffered indicates that NewWriterSize was called with an already-buffered
	// writer smaller than requested, which would lead to unpredictable flushing.
	ErrAlreadyBuffered = errors.New("loaddump: reader or writer is already buffered")

	// ErrTrailingData is returned by Unmarshal when bytes remain after the value.
	ErrTrailingData = errors.New("loaddump: trailing data found after decoding")

	// ErrTruncatedData indicates that fewer bytes were produced than the value requires.
	ErrTruncatedData = errors.New("loaddump: truncated data")

	// ErrLimitExceeded indicates a read past the byte budget set with Reader.WithLimit.
	ErrLimitExceeded = errors.New("loaddump: read limit exceeded")

	// ErrLengthLimit indicates a declared count above the cap set with Reader.WithMaxLen.
	ErrLengthLimit = errors.New("loaddump: declared length exceeds limit")

	// ErrNilBox indicates an attempt to dump through a nil owned indirection.
	ErrNilBox = errors.New("loaddump: cannot dump a nil box")

	// ErrNilVariant indicates an attempt to dump a union value with no active variant.
	ErrNilVariant = errors.New("loaddump: union value has no active variant")

	// ErrUnknownVariant indicates a dynamic type that is not a declared case of its union.
	ErrUnknownVariant = errors.New("loaddump: value is not a declared variant")

	// ErrTupleArity indicates a tuple with more slots than MaxTupleArity.
	ErrTupleArity = errors.New("loaddump: too many tuple slots")

	// ErrCountMismatch indicates an iterator that yielded a different number of
	// elements than the count written ahead of it.
	ErrCountMismatch = errors.New("loaddump: element count does not match declared length")

	// ErrNilTarget indicates Load was given something other than a non-nil pointer.
	ErrNilTarget = errors.New("loaddump: load target must be a non-nil pointer")
)
