package loaddump

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

type (
	dumpFunc func(w *Writer, v reflect.Value) error
	// loadFunc decodes into v, which is settable and holds the zero value.
	loadFunc func(r *Reader, v reflect.Value) error
)

// plan is the compiled dump and load routine for one Go type.
type plan struct {
	dump dumpFunc
	load loadFunc
}

var planCache = xsync.NewMap[reflect.Type, *plan]()

var (
	dumperType = reflect.TypeFor[Dumper]()
	loaderType = reflect.TypeFor[Loader]()
)

// planFor returns the plan for t, compiling and caching it on first use.
func planFor(t reflect.Type) *plan {
	if p, ok := planCache.Load(t); ok {
		return p
	}
	c := compiler{pending: make(map[reflect.Type]*plan)}
	p := c.compile(t)
	for pt, pp := range c.pending {
		actual, _ := planCache.LoadOrStore(pt, pp)
		if pt == t {
			p = actual
		}
	}
	debugf("loaddump: compiled %s (%d plans)", t, len(c.pending))
	return p
}

// compiler builds the plans of a type graph. A type reached again while its
// own plan is being built gets the pending plan, whose routines are resolved
// when called, so recursive types terminate.
type compiler struct {
	pending map[reflect.Type]*plan
}

func (c *compiler) compile(t reflect.Type) *plan {
	if p, ok := planCache.Load(t); ok {
		return p
	}
	if p, ok := c.pending[t]; ok {
		return p
	}
	p := &plan{}
	c.pending[t] = p
	p.dump, p.load = c.build(t)
	return p
}

func (c *compiler) build(t reflect.Type) (dumpFunc, loadFunc) {
	dump, load := c.buildKind(t)
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return dump, load
	}
	// Types with their own encoding override the kind rule per direction.
	switch {
	case t.Implements(dumperType):
		dump = dumpCustom
	case reflect.PointerTo(t).Implements(dumperType):
		dump = dumpCustomAddr
	}
	if reflect.PointerTo(t).Implements(loaderType) {
		load = loadCustom
	}
	return dump, load
}

func dumpCustom(w *Writer, v reflect.Value) error {
	return v.Interface().(Dumper).DumpTo(w)
}

func dumpCustomAddr(w *Writer, v reflect.Value) error {
	if !v.CanAddr() {
		c := reflect.New(v.Type())
		c.Elem().Set(v)
		v = c.Elem()
	}
	return v.Addr().Interface().(Dumper).DumpTo(w)
}

func loadCustom(r *Reader, v reflect.Value) error {
	return v.Addr().Interface().(Loader).LoadFrom(r)
}

func unsupported(t reflect.Type, reason string) (dumpFunc, loadFunc) {
	err := internal(&TypeError{Type: t, Reason: reason})
	return func(*Writer, reflect.Value) error { return err },
		func(*Reader, reflect.Value) error { return err }
}

func (c *compiler) buildKind(t reflect.Type) (dumpFunc, loadFunc) {
	switch t.Kind() {
	case reflect.Bool:
		return func(w *Writer, v reflect.Value) error {
				return w.WriteBool(v.Bool())
			}, func(r *Reader, v reflect.Value) error {
				var b bool
				if err := r.ReadBool(&b); err != nil {
					return err
				}
				v.SetBool(b)
				return nil
			}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := widthOf(t)
		return func(w *Writer, v reflect.Value) error {
				return w.writeUint(uint64(v.Int()), n)
			}, func(r *Reader, v reflect.Value) error {
				u, err := r.readUint(n)
				if err != nil {
					return err
				}
				v.SetInt(signExtend(u, n))
				return nil
			}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := widthOf(t)
		return func(w *Writer, v reflect.Value) error {
				return w.writeUint(v.Uint(), n)
			}, func(r *Reader, v reflect.Value) error {
				u, err := r.readUint(n)
				if err != nil {
					return err
				}
				v.SetUint(u)
				return nil
			}

	case reflect.String:
		return func(w *Writer, v reflect.Value) error {
				return w.WriteText(v.String())
			}, func(r *Reader, v reflect.Value) error {
				var s string
				if err := r.ReadText(&s); err != nil {
					return err
				}
				v.SetString(s)
				return nil
			}

	case reflect.Slice:
		return c.buildSlice(t)
	case reflect.Array:
		return c.buildArray(t)
	case reflect.Pointer:
		return c.buildBox(t)
	case reflect.Struct:
		return c.buildStruct(t)
	case reflect.Map:
		return c.buildMap(t)
	case reflect.Interface:
		return buildUnion(t)
	case reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return unsupported(t, "floating point has no encoding")
	}
	return unsupported(t, "")
}

func (c *compiler) buildSlice(t reflect.Type) (dumpFunc, loadFunc) {
	et := t.Elem()
	elem := c.compile(et)
	return func(w *Writer, v reflect.Value) error {
			n := v.Len()
			if err := w.WriteLen(n); err != nil {
				return err
			}
			for i := range n {
				if err := elem.dump(w, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}, func(r *Reader, v reflect.Value) error {
			// Elements are decoded in place at the end of out, which grows as
			// they arrive.
			var out reflect.Value
			zero := reflect.Zero(et)
			d, err := NewSeqDecoder[reflect.Value](r, func(r *Reader, _ *reflect.Value) error {
				out = reflect.Append(out, zero)
				return elem.load(r, out.Index(out.Len()-1))
			})
			if err != nil {
				return err
			}
			if d.Len() == 0 {
				return nil
			}
			out = reflect.MakeSlice(t, 0, prealloc(d.Len()))
			for _, err := range d.All() {
				if err != nil {
					return err
				}
			}
			v.Set(out)
			return nil
		}
}

func (c *compiler) buildArray(t reflect.Type) (dumpFunc, loadFunc) {
	elem := c.compile(t.Elem())
	n := t.Len()
	return func(w *Writer, v reflect.Value) error {
			for i := range n {
				if err := elem.dump(w, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}, func(r *Reader, v reflect.Value) error {
			for i := range n {
				if err := elem.load(r, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
}

func (c *compiler) buildBox(t reflect.Type) (dumpFunc, loadFunc) {
	et := t.Elem()
	elem := c.compile(et)
	return func(w *Writer, v reflect.Value) error {
			if v.IsNil() {
				return internal(fmt.Errorf("%w: %s", ErrNilBox, t))
			}
			return elem.dump(w, v.Elem())
		}, func(r *Reader, v reflect.Value) error {
			p := reflect.New(et)
			if err := elem.load(r, p.Elem()); err != nil {
				return err
			}
			v.Set(p)
			return nil
		}
}

type field struct {
	index int
	plan  *plan
}

// skipField reports whether a struct field is left off the wire. Unexported
// fields always are; exported ones opt out with `loaddump:"skip"` or `loaddump:"-"`.
func skipField(f reflect.StructField) bool {
	if !f.IsExported() {
		return true
	}
	tag, _, _ := strings.Cut(f.Tag.Get("loaddump"), ",")
	return tag == "skip" || tag == "-"
}

func (c *compiler) buildStruct(t reflect.Type) (dumpFunc, loadFunc) {
	var fields []field
	for i := range t.NumField() {
		f := t.Field(i)
		if skipField(f) {
			continue
		}
		fields = append(fields, field{index: i, plan: c.compile(f.Type)})
	}
	return func(w *Writer, v reflect.Value) error {
			for _, f := range fields {
				if err := f.plan.dump(w, v.Field(f.index)); err != nil {
					return err
				}
			}
			return nil
		}, func(r *Reader, v reflect.Value) error {
			// Skipped fields keep the zero value v starts with.
			for _, f := range fields {
				if err := f.plan.load(r, v.Field(f.index)); err != nil {
					return err
				}
			}
			return nil
		}
}

func compareKeys(kind reflect.Kind) func(a, b reflect.Value) int {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.String:
		return func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case a.Bool():
				return 1
			}
			return -1
		}
	}
	return nil
}

// buildMap encodes a map like a sequence of key/value pairs in ascending key
// order, so equal maps always produce equal bytes.
func (c *compiler) buildMap(t reflect.Type) (dumpFunc, loadFunc) {
	kt, vt := t.Key(), t.Elem()
	compare := compareKeys(kt.Kind())
	if compare == nil {
		return unsupported(t, "map keys must be integers, booleans or text")
	}
	key, val := c.compile(kt), c.compile(vt)
	return func(w *Writer, v reflect.Value) error {
			if err := w.WriteLen(v.Len()); err != nil {
				return err
			}
			keys := v.MapKeys()
			slices.SortFunc(keys, compare)
			for _, k := range keys {
				if err := key.dump(w, k); err != nil {
					return err
				}
				if err := val.dump(w, v.MapIndex(k)); err != nil {
					return err
				}
			}
			return nil
		}, func(r *Reader, v reflect.Value) error {
			var n uint64
			if err := r.ReadLen(&n); err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			// Keys are integers, booleans or text, so every pair consumes input.
			m := reflect.MakeMapWithSize(t, prealloc(n))
			for i := uint64(0); i < n; i++ {
				k := reflect.New(kt).Elem()
				if err := key.load(r, k); err != nil {
					return err
				}
				e := reflect.New(vt).Elem()
				if err := val.load(r, e); err != nil {
					return err
				}
				m.SetMapIndex(k, e)
			}
			v.Set(m)
			return nil
		}
}

// buildUnion encodes an interface type through the union registered for it.
// The registry is consulted on every call, so the union may be registered
// after the plan was compiled.
func buildUnion(t reflect.Type) (dumpFunc, loadFunc) {
	lookup := func() (*Union, error) {
		u, ok := LookupUnion(t)
		if !ok {
			return nil, internal(&TypeError{Type: t, Reason: "interface is not a registered union"})
		}
		return u, nil
	}
	return func(w *Writer, v reflect.Value) error {
			u, err := lookup()
			if err != nil {
				return err
			}
			if v.IsNil() {
				return internal(fmt.Errorf("%w: %s", ErrNilVariant, u.name))
			}
			dyn := v.Elem()
			ord, ok := u.byType[dyn.Type()]
			if !ok {
				return internal(fmt.Errorf("%w: %s in %s", ErrUnknownVariant, dyn.Type(), u.name))
			}
			emit, err := u.DumpTag(w, ord)
			if err != nil || !emit {
				return err
			}
			return planFor(dyn.Type()).dump(w, dyn)
		}, func(r *Reader, v reflect.Value) error {
			u, err := lookup()
			if err != nil {
				return err
			}
			tag, err := u.LoadTag(r)
			if err != nil {
				return err
			}
			vt := u.variants[tag].Type
			e := reflect.New(vt).Elem()
			if err := planFor(vt).load(r, e); err != nil {
				return err
			}
			v.Set(e)
			return nil
		}
}

// Dump writes the encoding of v. Pointers add no bytes; pass one to dump a
// union value held in an interface variable.
func (w *Writer) Dump(v any) error {
	if v == nil {
		return internal(ErrNilBox)
	}
	return w.dumpValue(reflect.ValueOf(v))
}

func (w *Writer) dumpValue(v reflect.Value) error {
	if w.err != nil {
		return w.err
	}
	return planFor(v.Type()).dump(w, v)
}

// Load decodes one value into the value v points to. The value is built
// aside and assigned only once it decoded completely, so on failure the
// pointee is left untouched.
func (r *Reader) Load(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return internal(fmt.Errorf("%w: got %T", ErrNilTarget, v))
	}
	start := r.count
	out, err := r.loadScratch(rv.Type().Elem())
	if err != nil {
		return r.truncated(start, err)
	}
	rv.Elem().Set(out)
	return nil
}

// truncated turns a clean end of stream reached after the value's first byte
// into io.ErrUnexpectedEOF, so IsEOF only holds between values.
func (r *Reader) truncated(start int64, err error) error {
	if r.count == start || !errors.Is(err, io.EOF) {
		return err
	}
	r.err = newError(KindRead, io.ErrUnexpectedEOF)
	return r.err
}

// loadScratch decodes a fresh value of type t.
func (r *Reader) loadScratch(t reflect.Type) (reflect.Value, error) {
	if r.err != nil {
		return reflect.Value{}, r.err
	}
	v := reflect.New(t).Elem()
	if err := planFor(t).load(r, v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}
