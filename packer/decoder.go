package packer

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/liangmanlin/nanorpc/fields"
)

// A Decoder reads values back from a packed buffer, in the order and with
// the types they were packed with. The format carries no type tags: a
// mismatched sequence shows up as a TokenError or as wrong values. The
// first error sticks.
type Decoder struct {
	scan  Scanner
	ready bool
	err   error
}

// NewDecoder takes ownership of buf; the caller must not modify it while
// the decoder is in use.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{scan: Scanner{buf: buf}, ready: true}
}

// Unpack decodes the next value into the value ptr points to. The value is
// built aside and only assigned when decoding succeeds.
func (d *Decoder) Unpack(ptr any) *Decoder {
	if d.err != nil {
		return d
	}
	if !d.ready {
		d.err = fmt.Errorf("%w: decoder has no buffer", ErrInvalidState)
		return d
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		d.err = &InvalidUnpackError{Type: reflect.TypeOf(ptr)}
		return d
	}
	t := rv.Type().Elem()
	tmp := reflect.New(t).Elem()
	if err := decoderOf(t).decode(d, tmp); err != nil {
		d.err = err
		return d
	}
	rv.Elem().Set(tmp)
	return d
}

// Err returns the first error met while unpacking.
func (d *Decoder) Err() error {
	return d.err
}

// More reports whether unread tokens remain.
func (d *Decoder) More() bool {
	return d.ready && d.scan.More()
}

// Offset is the read position in the buffer.
func (d *Decoder) Offset() int {
	return d.scan.Offset()
}

func (d *Decoder) next() (Token, error) {
	tok, ok := d.scan.Next()
	if !ok {
		return tok, fmt.Errorf("%w: buffer exhausted at offset %d", ErrInvalidState, tok.Offset)
	}
	return tok, nil
}

func (d *Decoder) readCount(t reflect.Type) (int, error) {
	tok, err := d.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(tok.Text), 10, 0)
	if err == nil && n > uint64(maxInt) {
		err = strconv.ErrRange
	}
	if err != nil {
		return 0, &TokenError{Offset: tok.Offset, Token: string(tok.Text), Type: t, Err: err}
	}
	return int(n), nil
}

const maxInt = int(^uint(0) >> 1)

// 数量来自对端，预分配不能超过剩余字节数
func (d *Decoder) prealloc(n int) int {
	if left := len(d.scan.buf) - d.scan.off; n > left {
		return left
	}
	return n
}

func basicDecoder(k reflect.Kind) decodeFunc {
	switch k {
	case reflect.Bool:
		return decodeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decodeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decodeUint
	case reflect.Float32, reflect.Float64:
		return decodeFloat
	case reflect.Complex64, reflect.Complex128:
		return decodeComplex
	case reflect.String:
		return decodeString
	}
	return nil
}

func (d *Decoder) parse(v reflect.Value, set func(text string) error) error {
	tok, err := d.next()
	if err != nil {
		return err
	}
	if err := set(string(tok.Text)); err != nil {
		return &TokenError{Offset: tok.Offset, Token: string(tok.Text), Type: v.Type(), Err: err}
	}
	return nil
}

func decodeBool(d *Decoder, v reflect.Value) error {
	return d.parse(v, func(text string) error {
		b, err := strconv.ParseBool(text)
		v.SetBool(b)
		return err
	})
}

func decodeInt(d *Decoder, v reflect.Value) error {
	return d.parse(v, func(text string) error {
		i, err := strconv.ParseInt(text, 10, v.Type().Bits())
		v.SetInt(i)
		return err
	})
}

func decodeUint(d *Decoder, v reflect.Value) error {
	return d.parse(v, func(text string) error {
		u, err := strconv.ParseUint(text, 10, v.Type().Bits())
		v.SetUint(u)
		return err
	})
}

func decodeFloat(d *Decoder, v reflect.Value) error {
	return d.parse(v, func(text string) error {
		f, err := strconv.ParseFloat(text, v.Type().Bits())
		v.SetFloat(f)
		return err
	})
}

func decodeComplex(d *Decoder, v reflect.Value) error {
	return d.parse(v, func(text string) error {
		c, err := strconv.ParseComplex(text, v.Type().Bits())
		v.SetComplex(c)
		return err
	})
}

func decodeString(d *Decoder, v reflect.Value) error {
	tok, err := d.next()
	if err != nil {
		return err
	}
	v.SetString(string(tok.Text))
	return nil
}

func decodeTextUnmarshaler(d *Decoder, v reflect.Value) error {
	tok, err := d.next()
	if err != nil {
		return err
	}
	// UnmarshalText 可能保留切片，拷贝一份
	text := append([]byte(nil), tok.Text...)
	if err := v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText(text); err != nil {
		return &TokenError{Offset: tok.Offset, Token: string(tok.Text), Type: v.Type(), Err: err}
	}
	return nil
}

func decodeArray(elem *plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		for i, n := 0, v.Len(); i < n; i++ {
			if err := elem.decode(d, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
}

func decodeTuple(elems []*plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		ptrs := v.Addr().Interface().(Tuple).TupleElems()
		if len(ptrs) != len(elems) {
			return fmt.Errorf("packer: tuple reports %d elements, expected %d", len(ptrs), len(elems))
		}
		for i, ptr := range ptrs {
			if err := elems[i].decode(d, reflect.ValueOf(ptr).Elem()); err != nil {
				return err
			}
		}
		return nil
	}
}

func decodeAggregate(elems []*plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		values := fields.Values(v)
		if len(values) != len(elems) {
			return fmt.Errorf("packer: aggregate reports %d fields, expected %d", len(values), len(elems))
		}
		for i, fv := range values {
			if err := elems[i].decode(d, fv); err != nil {
				return err
			}
		}
		return nil
	}
}

func decodeSlice(elem *plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		n, err := d.readCount(v.Type())
		if err != nil {
			return err
		}
		t := v.Type()
		slice := reflect.MakeSlice(t, 0, d.prealloc(n))
		for i := 0; i < n; i++ {
			item := reflect.New(t.Elem()).Elem()
			if err := elem.decode(d, item); err != nil {
				return err
			}
			slice = reflect.Append(slice, item)
		}
		v.Set(slice)
		return nil
	}
}

// key 每次都新建，解码完再插入
func decodeMap(key, value *plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		n, err := d.readCount(v.Type())
		if err != nil {
			return err
		}
		t := v.Type()
		m := reflect.MakeMapWithSize(t, d.prealloc(n))
		for i := 0; i < n; i++ {
			k := reflect.New(t.Key()).Elem()
			if err := key.decode(d, k); err != nil {
				return err
			}
			item := reflect.New(t.Elem()).Elem()
			if err := value.decode(d, item); err != nil {
				return err
			}
			m.SetMapIndex(k, item)
		}
		v.Set(m)
		return nil
	}
}

func decodeInserter(elem *plan) decodeFunc {
	return func(d *Decoder, v reflect.Value) error {
		n, err := d.readCount(v.Type())
		if err != nil {
			return err
		}
		nv := reflect.New(v.Type())
		ins := nv.Interface().(Inserter)
		for i := 0; i < n; i++ {
			ptr := ins.NewElem()
			pv := reflect.ValueOf(ptr)
			if pv.Kind() != reflect.Ptr || pv.IsNil() || pv.Type().Elem() != elem.typ {
				return fmt.Errorf("packer: %s.NewElem returned %T, expected *%s", v.Type(), ptr, elem.typ)
			}
			if err := elem.decode(d, pv.Elem()); err != nil {
				return err
			}
			ins.Insert(ptr)
		}
		v.Set(nv.Elem())
		return nil
	}
}
