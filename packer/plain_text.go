// Package packer is the plain-text wire codec of nanorpc.
//
// Values are written as whitespace separated tokens. The encoding of a
// value depends only on its Go type, picked once per type in this order:
//
//	primitive   TextMarshaler/TextUnmarshaler, bool, numbers, strings: "42 "
//	tuple       arrays and Tuple types: the elements one after another
//	collection  slices, maps, Collection/Inserter types: a count, then the elements
//	aggregate   structs: their exported fields, as a tuple
//
// No type information is written, so a buffer can only be read back with
// the same sequence of types it was written with.
//
//	buf, err := packer.New().Pack(42).Pack("ok").Pack([]int{1, 2, 3}).Finish()
//	// buf == "42 ok 3 1 2 3 "
//
//	var (
//		n int
//		s string
//		l []int
//	)
//	err = packer.NewDecoder(buf).Unpack(&n).Unpack(&s).Unpack(&l).Err()
package packer

import (
	"fmt"
	"reflect"

	"github.com/liangmanlin/nanorpc/logger"
)

// PlainText creates encoders and decoders sharing one set of options. It
// holds no per-call state and may be shared between goroutines.
type PlainText struct {
	opts options
}

func New(opts ...Option) *PlainText {
	return &PlainText{opts: makeOptions(opts)}
}

func (p *PlainText) NewEncoder() *Encoder {
	return newEncoder(p.opts)
}

// Pack starts a new encoder with v packed.
func (p *PlainText) Pack(v any) *Encoder {
	return p.NewEncoder().Pack(v)
}

func (p *PlainText) FromBuffer(buf []byte) *Decoder {
	return NewDecoder(buf)
}

// Pack encodes values in order into one buffer.
func Pack(values ...any) ([]byte, error) {
	e := NewEncoder()
	for _, v := range values {
		e.Pack(v)
	}
	return e.Finish()
}

// Unpack decodes buf into ptrs in order. Tokens left over after the last
// value are an error.
func Unpack(buf []byte, ptrs ...any) error {
	d := NewDecoder(buf)
	for _, ptr := range ptrs {
		d.Unpack(ptr)
	}
	if err := d.Err(); err != nil {
		return err
	}
	if d.More() {
		return fmt.Errorf("packer: unread data at offset %d", d.Offset())
	}
	return nil
}

// Supports reports whether values of type T can be both packed and
// unpacked.
func Supports[T any]() error {
	return checkType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustSupport panics when T cannot be packed and unpacked. Call it from
// init for every type that crosses the wire so a bad type fails at start.
func MustSupport[T any]() {
	if err := Supports[T](); err != nil {
		logger.ErrorLog("%s", err)
		panic(err)
	}
}

// Check is Supports for the dynamic type of v.
func Check(v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return &UnsupportedTypeError{Op: opEncode}
	}
	return checkType(t)
}

func checkType(t reflect.Type) error {
	if err := encoderOf(t).err; err != nil {
		return err
	}
	return decoderOf(t).err
}
