// Package fields decomposes aggregate types into an ordered list of their
// fields. It is the structural reflection used by the packer to treat a
// struct as a fixed tuple of its fields.
package fields

import (
	"reflect"
	"sync"
)

// Fielder is implemented (on the pointer type) by aggregates that supply
// their own decomposition. PackFields returns pointers to the fields in
// declared order; the packer reads through them when encoding and writes
// through them when decoding.
type Fielder interface {
	PackFields() []any
}

var fielderType = reflect.TypeOf((*Fielder)(nil)).Elem()

// Field is one encodable struct field.
type Field struct {
	Name  string
	Index int
	Type  reflect.Type
}

var cache sync.Map // map[reflect.Type][]Field

// Of returns the exported fields of struct type t in declared order.
// Fields tagged `pack:"-"` are skipped. The result is empty when t is not a
// struct or has nothing to decompose.
func Of(t reflect.Type) []Field {
	if t.Kind() != reflect.Struct {
		return nil
	}
	if l, ok := cache.Load(t); ok {
		return l.([]Field)
	}
	num := t.NumField()
	l := make([]Field, 0, num)
	for i := 0; i < num; i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("pack") == "-" {
			continue
		}
		l = append(l, Field{Name: f.Name, Index: i, Type: f.Type})
	}
	cache.Store(t, l)
	return l
}

// IsFielder reports whether values of t decompose through Fielder. A
// PackFields promoted from an embedded field does not count: the struct is
// decomposed field by field and the embedded value is one of those fields.
func IsFielder(t reflect.Type) bool {
	return t.Kind() != reflect.Ptr && reflect.PtrTo(t).Implements(fielderType) && !Promoted(t, fielderType)
}

// Promoted reports whether struct type t has an anonymous field whose type,
// or pointer to it, implements iface, so that t may own iface's methods only
// through promotion.
func Promoted(t, iface reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type.Implements(iface) || (f.Type.Kind() != reflect.Ptr && reflect.PtrTo(f.Type).Implements(iface)) {
			return true
		}
	}
	return false
}

// Values returns the field values of v in declared order. v must be
// addressable so the results are settable.
func Values(v reflect.Value) []reflect.Value {
	if IsFielder(v.Type()) {
		ptrs := v.Addr().Interface().(Fielder).PackFields()
		l := make([]reflect.Value, len(ptrs))
		for i, p := range ptrs {
			l[i] = reflect.ValueOf(p).Elem()
		}
		return l
	}
	fl := Of(v.Type())
	l := make([]reflect.Value, len(fl))
	for i, f := range fl {
		l[i] = v.Field(f.Index)
	}
	return l
}

// Types returns the static field types of t in declared order, the shape
// of the tuple t decomposes into. A Fielder is asked through its zero value.
func Types(t reflect.Type) []reflect.Type {
	if IsFielder(t) {
		ptrs := reflect.New(t).Interface().(Fielder).PackFields()
		l := make([]reflect.Type, len(ptrs))
		for i, p := range ptrs {
			pt := reflect.TypeOf(p)
			if pt == nil || pt.Kind() != reflect.Ptr {
				return nil
			}
			l[i] = pt.Elem()
		}
		return l
	}
	fl := Of(t)
	l := make([]reflect.Type, len(fl))
	for i, f := range fl {
		l[i] = f.Type
	}
	return l
}
