package loaddump

// Option holds zero or one value of type T.
type Option[T any] struct {
	value T
	ok    bool
}

// Some returns a present Option holding v.
func Some[T any](v T) Option[T] { return Option[T]{value: v, ok: true} }

// None returns an absent Option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the held value and whether there is one.
func (o Option[T]) Get() (T, bool) { return o.value, o.ok }

func (o Option[T]) IsSome() bool { return o.ok }

// OrElse returns the held value, or def when absent.
func (o Option[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

func (o Option[T]) DumpTo(w *Writer) error { return DumpOption(w, o, DumpValue[T]) }

func (o *Option[T]) LoadFrom(r *Reader) error { return LoadOption(r, o, LoadValue[T]) }

// DumpOption writes the presence flag of o, then its value when present.
func DumpOption[T any](w *Writer, o Option[T], dump DumpFunc[T]) error {
	if err := w.WriteBool(o.ok); err != nil || !o.ok {
		return err
	}
	return dump(w, o.value)
}

// LoadOption reads a presence flag and, when set, one value. Nothing past the
// flag is consumed for an absent value.
func LoadOption[T any](r *Reader, dest *Option[T], load LoadFunc[T]) error {
	var present bool
	if err := r.ReadBool(&present); err != nil {
		return err
	}
	if !present {
		*dest = None[T]()
		return nil
	}
	var v T
	if err := load(r, &v); err != nil {
		return err
	}
	*dest = Some(v)
	return nil
}
