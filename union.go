package loaddump

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
)

// Variant declares one case of a tagged union. Its ordinal, and so its wire
// tag, is its position in the declaration.
type Variant struct {
	Name string
	Type reflect.Type

	// Skip drops the variant from the wire: dumping it writes nothing at all.
	Skip bool
	// Never marks a variant that must not be dumped or loaded. Doing either is
	// a fatal condition reporting Message.
	Never   bool
	Message string
}

// VariantOption adjusts a Variant declared with Case.
type VariantOption func(*Variant)

// Skip marks the variant as omitted from the wire.
func Skip() VariantOption {
	return func(v *Variant) { v.Skip = true }
}

// Never marks the variant as forbidden to dump or load, with msg as the
// diagnostic.
func Never(msg string) VariantOption {
	return func(v *Variant) {
		v.Never = true
		v.Message = msg
	}
}

// Case declares a variant named name whose payload is a T. Unit variants use
// an empty struct type, named-field and positional variants a struct whose
// fields are encoded in declaration order.
func Case[T any](name string, opts ...VariantOption) Variant {
	v := Variant{Name: name, Type: reflect.TypeFor[T]()}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// Union describes a closed set of variants. It is immutable once built.
type Union struct {
	name     string
	iface    reflect.Type
	variants []Variant
	byType   map[reflect.Type]uint32
}

// unions maps an interface type to the union declared for it. Entries are
// written once, normally from init functions, and only read afterwards.
var unions = xsync.NewMap[reflect.Type, *Union]()

// NewUnion builds a union description without registering it, for use by
// hand-written glue through DumpTag and LoadTag.
func NewUnion(name string, cases ...Variant) *Union {
	u, err := newUnion(name, nil, cases)
	if err != nil {
		panic(err)
	}
	return u
}

// RegisterUnion declares the interface type I as a tagged union named name
// with the given cases, in ordinal order. Every case type must implement I.
// The reflection engine encodes any I-typed value through it. Registering
// the same interface twice, or an invalid declaration, panics.
func RegisterUnion[I any](name string, cases ...Variant) *Union {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("loaddump: RegisterUnion of non-interface type %s", iface))
	}
	u, err := newUnion(name, iface, cases)
	if err != nil {
		panic(err)
	}
	if _, loaded := unions.LoadOrStore(iface, u); loaded {
		panic(fmt.Sprintf("loaddump: union %s registered twice", iface))
	}
	debugf("loaddump: registered union %s for %s with %d variants", name, iface, len(cases))
	return u
}

// LookupUnion returns the union registered for the interface type t.
func LookupUnion(t reflect.Type) (*Union, bool) {
	return unions.Load(t)
}

func newUnion(name string, iface reflect.Type, cases []Variant) (*Union, error) {
	if uint64(len(cases)) > math.MaxUint32 {
		return nil, fmt.Errorf("loaddump: union %s has too many variants", name)
	}
	u := &Union{
		name:     name,
		iface:    iface,
		variants: slices.Clone(cases),
		byType:   make(map[reflect.Type]uint32, len(cases)),
	}
	for i, v := range u.variants {
		if v.Type == nil {
			if iface != nil {
				return nil, fmt.Errorf("loaddump: variant %s::%s has no type", name, v.Name)
			}
			continue
		}
		if v.Type.Kind() == reflect.Interface {
			return nil, fmt.Errorf("loaddump: variant %s::%s has interface type %s", name, v.Name, v.Type)
		}
		if iface != nil && !v.Type.Implements(iface) {
			return nil, fmt.Errorf("loaddump: variant %s::%s type %s does not implement %s", name, v.Name, v.Type, iface)
		}
		if _, dup := u.byType[v.Type]; dup {
			return nil, fmt.Errorf("loaddump: variant %s::%s repeats type %s", name, v.Name, v.Type)
		}
		u.byType[v.Type] = uint32(i)
	}
	return u, nil
}

func (u *Union) Name() string { return u.name }

// Len returns the number of declared variants.
func (u *Union) Len() int { return len(u.variants) }

// Variant returns the variant with the given ordinal.
func (u *Union) Variant(ordinal uint32) (Variant, bool) {
	if uint64(ordinal) >= uint64(len(u.variants)) {
		return Variant{}, false
	}
	return u.variants[ordinal], true
}

// Ordinal returns the ordinal of the variant whose type is the dynamic type of v.
func (u *Union) Ordinal(v any) (uint32, bool) {
	if v == nil {
		return 0, false
	}
	ord, ok := u.byType[reflect.TypeOf(v)]
	return ord, ok
}

// DumpTag starts dumping the variant with the given ordinal. It returns false
// with no I/O for a Skip variant, in which case the caller writes nothing
// more. A Never variant is a fatal condition raised before any I/O.
func (u *Union) DumpTag(w *Writer, ordinal uint32) (bool, error) {
	v, ok := u.Variant(ordinal)
	if !ok {
		return false, internal(fmt.Errorf("%w: ordinal %d of %s", ErrUnknownVariant, ordinal, u.name))
	}
	if v.Never {
		fatalNeverDump(u.name, v.Name, ordinal, v.Message)
	}
	if v.Skip {
		return false, nil
	}
	return true, w.WriteTag(ordinal)
}

// LoadTag reads a variant tag. A tag outside the declared variants, or one
// naming a Never variant, is a fatal condition.
func (u *Union) LoadTag(r *Reader) (uint32, error) {
	var tag uint32
	if err := r.ReadTag(&tag); err != nil {
		return 0, err
	}
	v, ok := u.Variant(tag)
	if !ok {
		fatalTag(u.name, tag)
	}
	if v.Never {
		fatalNeverLoad(u.name, v.Name, tag, v.Message)
	}
	return tag, nil
}
