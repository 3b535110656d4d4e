package packer

import (
	"cmp"
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/liangmanlin/nanorpc/bpool"
	"github.com/liangmanlin/nanorpc/fields"
	"github.com/liangmanlin/nanorpc/logger"
)

const separator = ' '

// An Encoder appends the textual encoding of values to a buffer. It is a
// single-use builder: Pack any number of values, then Finish once. The first
// error sticks and turns every later Pack into a no-op.
type Encoder struct {
	buf     *bpool.Buff
	scratch []byte
	opts    options
	spent   bool
	err     error
}

func NewEncoder(opts ...Option) *Encoder {
	return newEncoder(makeOptions(opts))
}

func newEncoder(o options) *Encoder {
	return &Encoder{buf: bpool.New(o.bufSize), opts: o}
}

// Pack appends the encoding of v. A pointer is encoded as the value it
// points to.
func (e *Encoder) Pack(v any) *Encoder {
	if e.err != nil {
		return e
	}
	if e.spent {
		e.err = fmt.Errorf("%w: pack on a finished encoder", ErrInvalidState)
		return e
	}
	if e.buf == nil {
		e.opts = makeOptions(nil)
		e.buf = bpool.New(e.opts.bufSize)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		e.err = &UnsupportedTypeError{Op: opEncode}
		return e
	}
	if err := encoderOf(rv.Type()).encode(e, rv); err != nil {
		e.err = err
	}
	return e
}

// Err returns the first error met while packing.
func (e *Encoder) Err() error {
	return e.err
}

// Len is the number of bytes packed so far.
func (e *Encoder) Len() int {
	if e.buf == nil {
		return 0
	}
	return e.buf.Size()
}

// Finish detaches the packed bytes and leaves the encoder spent.
func (e *Encoder) Finish() ([]byte, error) {
	b, err := e.FinishBuff()
	if err != nil {
		return nil, err
	}
	out := b.Copy()
	b.Free()
	return out, nil
}

// FinishBuff is Finish without the copy: the pooled buffer is handed over
// and the caller frees it once the bytes are written out.
func (e *Encoder) FinishBuff() (*bpool.Buff, error) {
	if e.spent {
		return nil, fmt.Errorf("%w: encoder already finished", ErrInvalidState)
	}
	e.spent = true
	b := e.buf
	e.buf = nil
	if e.err != nil {
		if b != nil {
			b.Free()
		}
		return nil, e.err
	}
	if b == nil {
		b = bpool.New(0)
	}
	return b, nil
}

func (e *Encoder) writeToken(tok []byte) {
	if logger.DebugEnabled() && hasSpace(tok) {
		logger.DebugLog("packer: token %q at offset %d contains whitespace", tok, e.buf.Size())
	}
	e.buf = e.buf.Append(tok...).AppendByte(separator)
}

func (e *Encoder) writeStringToken(s string) {
	if logger.DebugEnabled() && hasSpace([]byte(s)) {
		logger.DebugLog("packer: token %q at offset %d contains whitespace", s, e.buf.Size())
	}
	e.buf = e.buf.AppendString(s).AppendByte(separator)
}

// 兼容模式下元组的每个元素后面再加一个分隔符
func (e *Encoder) elemEnd() {
	if e.opts.compat {
		e.buf = e.buf.AppendByte(separator)
	}
}

func (e *Encoder) writeCount(n int) {
	e.scratch = strconv.AppendUint(e.scratch[:0], uint64(n), 10)
	e.writeToken(e.scratch)
}

func (e *Encoder) floatPrec() int {
	if e.opts.compat {
		return 6
	}
	return -1
}

func basicEncoder(k reflect.Kind) encodeFunc {
	switch k {
	case reflect.Bool:
		return encodeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeUint
	case reflect.Float32:
		return encodeFloat(32)
	case reflect.Float64:
		return encodeFloat(64)
	case reflect.Complex64:
		return encodeComplex(64)
	case reflect.Complex128:
		return encodeComplex(128)
	case reflect.String:
		return encodeString
	}
	return nil
}

func encodeBool(e *Encoder, v reflect.Value) error {
	if v.Bool() {
		e.writeToken([]byte{'1'})
	} else {
		e.writeToken([]byte{'0'})
	}
	return nil
}

func encodeInt(e *Encoder, v reflect.Value) error {
	e.scratch = strconv.AppendInt(e.scratch[:0], v.Int(), 10)
	e.writeToken(e.scratch)
	return nil
}

func encodeUint(e *Encoder, v reflect.Value) error {
	e.scratch = strconv.AppendUint(e.scratch[:0], v.Uint(), 10)
	e.writeToken(e.scratch)
	return nil
}

func encodeFloat(bits int) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		e.scratch = strconv.AppendFloat(e.scratch[:0], v.Float(), 'g', e.floatPrec(), bits)
		e.writeToken(e.scratch)
		return nil
	}
}

func encodeComplex(bits int) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		e.writeStringToken(strconv.FormatComplex(v.Complex(), 'g', e.floatPrec(), bits))
		return nil
	}
}

func encodeString(e *Encoder, v reflect.Value) error {
	e.writeStringToken(v.String())
	return nil
}

func encodeTextMarshaler(e *Encoder, v reflect.Value) error {
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		m = addressable(v).Addr().Interface().(encoding.TextMarshaler)
	}
	text, err := m.MarshalText()
	if err != nil {
		return fmt.Errorf("packer: marshal %s: %w", v.Type(), err)
	}
	e.writeToken(text)
	return nil
}

func encodeArray(elem *plan) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		for i, n := 0, v.Len(); i < n; i++ {
			if err := elem.encode(e, v.Index(i)); err != nil {
				return err
			}
			e.elemEnd()
		}
		return nil
	}
}

func encodeTuple(elems []*plan) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		ptrs := addressable(v).Addr().Interface().(Tuple).TupleElems()
		return e.encodeElems(elems, ptrs)
	}
}

func encodeAggregate(elems []*plan) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		return e.encodeFields(elems, fields.Values(addressable(v)))
	}
}

func (e *Encoder) encodeElems(elems []*plan, ptrs []any) error {
	if len(ptrs) != len(elems) {
		return fmt.Errorf("packer: tuple reports %d elements, expected %d", len(ptrs), len(elems))
	}
	for i, ptr := range ptrs {
		if err := elems[i].encode(e, reflect.ValueOf(ptr).Elem()); err != nil {
			return err
		}
		e.elemEnd()
	}
	return nil
}

func (e *Encoder) encodeFields(elems []*plan, values []reflect.Value) error {
	if len(values) != len(elems) {
		return fmt.Errorf("packer: aggregate reports %d fields, expected %d", len(values), len(elems))
	}
	for i, fv := range values {
		if err := elems[i].encode(e, fv); err != nil {
			return err
		}
		e.elemEnd()
	}
	return nil
}

func encodeSlice(elem *plan) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		n := v.Len()
		e.writeCount(n)
		for i := 0; i < n; i++ {
			if err := elem.encode(e, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
}

// 每个元素是一个 (key, value) 二元组；可排序的key按升序输出，保证相同的map编码结果一致
func encodeMap(key, value *plan) encodeFunc {
	return func(e *Encoder, v reflect.Value) error {
		e.writeCount(v.Len())
		keys := v.MapKeys()
		sortKeys(keys)
		for _, k := range keys {
			if err := key.encode(e, k); err != nil {
				return err
			}
			e.elemEnd()
			if err := value.encode(e, v.MapIndex(k)); err != nil {
				return err
			}
			e.elemEnd()
		}
		return nil
	}
}

func encodeCollection(e *Encoder, v reflect.Value) error {
	c, ok := v.Interface().(Collection)
	if !ok {
		c = addressable(v).Addr().Interface().(Collection)
	}
	e.writeCount(c.Len())
	var err error
	c.Range(func(elem any) bool {
		ev := reflect.ValueOf(elem)
		if !ev.IsValid() {
			err = &UnsupportedTypeError{Op: opEncode}
			return false
		}
		err = encoderOf(ev.Type()).encode(e, ev)
		return err == nil
	})
	return err
}

func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Bool:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(boolRank(a.Bool()), boolRank(b.Bool())) })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
