package loaddump

import (
	"encoding/binary"
	"math/big"
	"reflect"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Order is the byte order of every multi-byte value on the wire.
var Order = binary.LittleEndian

// Uint128 is an unsigned 128-bit integer, stored as two 64-bit halves.
type Uint128 struct {
	Lo, Hi uint64
}

// U128 returns v widened to 128 bits.
func U128(v uint64) Uint128 { return Uint128{Lo: v} }

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

func (u Uint128) DumpTo(w *Writer) error { return w.WriteUint128(u) }

func (u *Uint128) LoadFrom(r *Reader) error { return r.ReadUint128(u) }

// Int128 is a signed 128-bit two's-complement integer. Hi carries the sign.
type Int128 struct {
	Lo uint64
	Hi int64
}

// I128 returns v sign-extended to 128 bits.
func I128(v int64) Int128 { return Int128{Lo: uint64(v), Hi: v >> 63} }

// Big returns i as a big.Int.
func (i Int128) Big() *big.Int {
	b := new(big.Int).SetInt64(i.Hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(i.Lo))
}

func (i Int128) String() string { return i.Big().String() }

func (i Int128) DumpTo(w *Writer) error { return w.WriteInt128(i) }

func (i *Int128) LoadFrom(r *Reader) error { return r.ReadInt128(i) }

// widthOf returns the wire width of an integer type. The platform-sized
// int, uint and uintptr are pinned to 8 bytes.
func widthOf(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return 8
	}
	return int(t.Size())
}

func width[T constraints.Integer]() int {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return 8
	}
	return int(unsafe.Sizeof(zero))
}

// WriteInt writes v in exactly the width of its static type, little-endian,
// regardless of its magnitude.
func WriteInt[T constraints.Integer](w *Writer, v T) error {
	return w.writeUint(uint64(v), width[T]())
}

// ReadInt reads an integer of T's width into dest.
func ReadInt[T constraints.Integer](r *Reader, dest *T) error {
	u, err := r.readUint(width[T]())
	if err != nil {
		return err
	}
	// Conversion keeps the low bits, which restores the two's-complement
	// value for signed types narrower than 64 bits.
	*dest = T(u)
	return nil
}

// signExtend widens the low width bytes of u as a two's-complement value.
func signExtend(u uint64, width int) int64 {
	if width >= 8 {
		return int64(u)
	}
	shift := uint(64 - 8*width)
	return int64(u<<shift) >> shift
}
