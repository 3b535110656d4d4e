package packer

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidState reports use of an Encoder after Finish, or of a Decoder
// that has no buffer or has run out of tokens.
var ErrInvalidState = errors.New("packer: invalid state")

// ErrNilPointer reports a nil pointer handed to the encoder. The wire
// format carries no presence marker, so nil has no encoding.
var ErrNilPointer = errors.New("packer: nil pointer")

// UnsupportedTypeError reports a type that matches none of the dispatch
// categories on the given path.
type UnsupportedTypeError struct {
	Type   reflect.Type
	Op     string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Type == nil {
		return "packer: cannot " + e.Op + " nil value"
	}
	if e.Reason != "" {
		return "packer: cannot " + e.Op + " type " + e.Type.String() + ": " + e.Reason
	}
	return "packer: cannot " + e.Op + " type " + e.Type.String()
}

// TokenError reports a token the primitive parser rejected.
type TokenError struct {
	Offset int
	Token  string
	Type   reflect.Type
	Err    error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("packer: bad token %q at offset %d for %s: %v", e.Token, e.Offset, e.Type, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// InvalidUnpackError reports a destination that is not a non-nil pointer.
type InvalidUnpackError struct {
	Type reflect.Type
}

func (e *InvalidUnpackError) Error() string {
	if e.Type == nil {
		return "packer: Unpack(nil)"
	}
	if e.Type.Kind() != reflect.Ptr {
		return "packer: Unpack(non-pointer " + e.Type.String() + ")"
	}
	return "packer: Unpack(nil " + e.Type.String() + ")"
}

// Tuple is implemented on the pointer type by fixed-size heterogeneous
// groups. TupleElems returns pointers to the elements in declared order and
// must report the same element types for every value, the zero value
// included.
type Tuple interface {
	TupleElems() []any
}

// Collection is implemented by container types other than slices and maps
// that want the count-prefixed collection encoding.
type Collection interface {
	Len() int
	Range(fn func(elem any) bool)
}

// Inserter is the decode side of Collection, implemented on the pointer
// type. NewElem returns a pointer to a fresh element, which is populated and
// then handed to Insert. NewElem must work on the zero value.
type Inserter interface {
	NewElem() any
	Insert(elem any)
}

type category uint8

const (
	categoryNone category = iota
	categoryPrimitive
	categoryTuple
	categoryCollection
	categoryAggregate
)

func (c category) String() string {
	switch c {
	case categoryPrimitive:
		return "primitive"
	case categoryTuple:
		return "tuple"
	case categoryCollection:
		return "collection"
	case categoryAggregate:
		return "aggregate"
	}
	return "none"
}

const (
	opEncode = "encode"
	opDecode = "decode"
)

type encodeFunc func(e *Encoder, v reflect.Value) error

type decodeFunc func(d *Decoder, v reflect.Value) error

type plan struct {
	typ      reflect.Type
	cat      category
	enc      encodeFunc
	dec      decodeFunc
	err      error
	children []*plan
}

func (p *plan) encode(e *Encoder, v reflect.Value) error {
	if p.err != nil {
		return p.err
	}
	return p.enc(e, v)
}

// v must be settable
func (p *plan) decode(d *Decoder, v reflect.Value) error {
	if p.err != nil {
		return p.err
	}
	return p.dec(d, v)
}

var (
	marshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	tupleType       = reflect.TypeOf((*Tuple)(nil)).Elem()
	collectionType  = reflect.TypeOf((*Collection)(nil)).Elem()
	inserterType    = reflect.TypeOf((*Inserter)(nil)).Elem()
)
