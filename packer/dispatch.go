package packer

import (
	"reflect"
	"sync"

	"github.com/liangmanlin/nanorpc/fields"
	"github.com/liangmanlin/nanorpc/logger"
)

/*
	每个类型只解析一次，按以下顺序选择编码方式：
	1. primitive  可以直接转成文本（TextMarshaler/TextUnmarshaler 或基础类型）
	2. tuple      数组，或者实现了 Tuple
	3. collection 实现了 Collection/Inserter，或者 slice/map
	4. aggregate  struct，通过 fields 拆成字段元组
	编码和解码分别解析，一个类型可能只能编码或者只能解码
*/

var (
	encPlans sync.Map // map[reflect.Type]*plan
	decPlans sync.Map // map[reflect.Type]*plan
)

type planner struct {
	op      string
	cache   *sync.Map
	pending map[reflect.Type]*plan
}

// 可以并发调用，同一个类型可能被重复解析，结果是一样的
func encoderOf(t reflect.Type) *plan {
	if p, ok := encPlans.Load(t); ok {
		return p.(*plan)
	}
	return newPlanner(opEncode, &encPlans).resolve(t)
}

func decoderOf(t reflect.Type) *plan {
	if p, ok := decPlans.Load(t); ok {
		return p.(*plan)
	}
	return newPlanner(opDecode, &decPlans).resolve(t)
}

func newPlanner(op string, cache *sync.Map) *planner {
	return &planner{op: op, cache: cache, pending: make(map[reflect.Type]*plan)}
}

func (pl *planner) resolve(t reflect.Type) *plan {
	p := pl.plan(t)
	pl.propagate()
	for typ, pp := range pl.pending {
		pl.cache.LoadOrStore(typ, pp)
		if pp.err == nil {
			logger.DebugLog("packer: %s resolved as %s for %s", typ, pp.cat, pl.op)
		}
	}
	return p
}

func (pl *planner) plan(t reflect.Type) *plan {
	if p, ok := pl.cache.Load(t); ok {
		return p.(*plan)
	}
	if p, ok := pl.pending[t]; ok {
		return p
	}
	// 预先插入防止递归类型形成环
	p := &plan{typ: t}
	pl.pending[t] = p
	if pl.op == opEncode {
		pl.buildEncoder(p)
	} else {
		pl.buildDecoder(p)
	}
	return p
}

func (pl *planner) child(p *plan, t reflect.Type) *plan {
	c := pl.plan(t)
	p.children = append(p.children, c)
	return c
}

// 递归类型在解析时子类型可能还没有结果，最后统一把错误向上传递
func (pl *planner) propagate() {
	for changed := true; changed; {
		changed = false
		for _, p := range pl.pending {
			if p.err != nil {
				continue
			}
			for _, c := range p.children {
				if c.err != nil {
					p.err = c.err
					changed = true
					break
				}
			}
		}
	}
}

func (pl *planner) unsupported(p *plan, reason string) {
	p.cat = categoryNone
	p.err = &UnsupportedTypeError{Type: p.typ, Op: pl.op, Reason: reason}
}

func (pl *planner) buildEncoder(p *plan) {
	t := p.typ
	switch {
	case t.Kind() == reflect.Interface:
		pl.unsupported(p, "interface values carry no type tag")
	case t.Kind() == reflect.Ptr:
		pl.pointerEncoder(p)
	case implements(t, marshalerType):
		p.cat, p.enc = categoryPrimitive, encodeTextMarshaler
	case isBasic(t.Kind()):
		p.cat, p.enc = categoryPrimitive, basicEncoder(t.Kind())
	case t.Kind() == reflect.Array:
		pl.arrayEncoder(p)
	case implements(t, tupleType):
		pl.tupleEncoder(p)
	case implements(t, collectionType):
		p.cat, p.enc = categoryCollection, encodeCollection
	case t.Kind() == reflect.Slice:
		pl.sliceEncoder(p)
	case t.Kind() == reflect.Map:
		pl.mapEncoder(p)
	case t.Kind() == reflect.Struct || fields.IsFielder(t):
		pl.aggregateEncoder(p)
	default:
		pl.unsupported(p, "no textual form")
	}
}

func (pl *planner) buildDecoder(p *plan) {
	t := p.typ
	switch {
	case t.Kind() == reflect.Interface:
		pl.unsupported(p, "interface values carry no type tag")
	case t.Kind() == reflect.Ptr:
		pl.pointerDecoder(p)
	case implements(t, unmarshalerType):
		p.cat, p.dec = categoryPrimitive, decodeTextUnmarshaler
	case isBasic(t.Kind()):
		p.cat, p.dec = categoryPrimitive, basicDecoder(t.Kind())
	case t.Kind() == reflect.Array:
		pl.arrayDecoder(p)
	case implements(t, tupleType):
		pl.tupleDecoder(p)
	case implements(t, inserterType):
		pl.inserterDecoder(p)
	case t.Kind() == reflect.Slice:
		pl.sliceDecoder(p)
	case t.Kind() == reflect.Map:
		pl.mapDecoder(p)
	case t.Kind() == reflect.Struct || fields.IsFielder(t):
		pl.aggregateDecoder(p)
	default:
		pl.unsupported(p, "no textual form")
	}
}

// 匿名字段提升上来的方法不算，否则外层结构体的其他字段会被丢掉
func implements(t, iface reflect.Type) bool {
	if !t.Implements(iface) && !reflect.PtrTo(t).Implements(iface) {
		return false
	}
	return !fields.Promoted(t, iface)
}

func isBasic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

// 指针本身不是一种编码方式，编码时取值，解码时分配
func (pl *planner) pointerEncoder(p *plan) {
	elem := pl.child(p, p.typ.Elem())
	p.cat = elem.cat
	p.enc = func(e *Encoder, v reflect.Value) error {
		if v.IsNil() {
			return ErrNilPointer
		}
		return elem.encode(e, v.Elem())
	}
}

func (pl *planner) pointerDecoder(p *plan) {
	et := p.typ.Elem()
	elem := pl.child(p, et)
	p.cat = elem.cat
	p.dec = func(d *Decoder, v reflect.Value) error {
		nv := reflect.New(et)
		if err := elem.decode(d, nv.Elem()); err != nil {
			return err
		}
		v.Set(nv)
		return nil
	}
}

// elemTypes asks the zero value of a Tuple or Fielder for the static types
// of its elements.
func elemTypes(ptrs []any) ([]reflect.Type, bool) {
	l := make([]reflect.Type, len(ptrs))
	for i, ptr := range ptrs {
		pt := reflect.TypeOf(ptr)
		if pt == nil || pt.Kind() != reflect.Ptr {
			return nil, false
		}
		l[i] = pt.Elem()
	}
	return l, true
}

func (pl *planner) children(p *plan, types []reflect.Type) []*plan {
	l := make([]*plan, len(types))
	for i, t := range types {
		l[i] = pl.child(p, t)
	}
	return l
}

func (pl *planner) tupleElems(p *plan) ([]*plan, bool) {
	ptrs := reflect.New(p.typ).Interface().(Tuple).TupleElems()
	types, ok := elemTypes(ptrs)
	if !ok {
		pl.unsupported(p, "TupleElems must return pointers")
		return nil, false
	}
	return pl.children(p, types), true
}

func (pl *planner) aggregateElems(p *plan) ([]*plan, bool) {
	types := fields.Types(p.typ)
	if len(types) == 0 {
		pl.unsupported(p, "no fields to decompose")
		return nil, false
	}
	return pl.children(p, types), true
}

func (pl *planner) arrayEncoder(p *plan) {
	elem := pl.child(p, p.typ.Elem())
	p.cat, p.enc = categoryTuple, encodeArray(elem)
}

func (pl *planner) arrayDecoder(p *plan) {
	elem := pl.child(p, p.typ.Elem())
	p.cat, p.dec = categoryTuple, decodeArray(elem)
}

func (pl *planner) tupleEncoder(p *plan) {
	if elems, ok := pl.tupleElems(p); ok {
		p.cat, p.enc = categoryTuple, encodeTuple(elems)
	}
}

func (pl *planner) tupleDecoder(p *plan) {
	if elems, ok := pl.tupleElems(p); ok {
		p.cat, p.dec = categoryTuple, decodeTuple(elems)
	}
}

func (pl *planner) sliceEncoder(p *plan) {
	elem := pl.child(p, p.typ.Elem())
	p.cat, p.enc = categoryCollection, encodeSlice(elem)
}

func (pl *planner) sliceDecoder(p *plan) {
	elem := pl.child(p, p.typ.Elem())
	p.cat, p.dec = categoryCollection, decodeSlice(elem)
}

func (pl *planner) mapEncoder(p *plan) {
	key := pl.child(p, p.typ.Key())
	value := pl.child(p, p.typ.Elem())
	p.cat, p.enc = categoryCollection, encodeMap(key, value)
}

func (pl *planner) mapDecoder(p *plan) {
	key := pl.child(p, p.typ.Key())
	value := pl.child(p, p.typ.Elem())
	p.cat, p.dec = categoryCollection, decodeMap(key, value)
}

func (pl *planner) inserterDecoder(p *plan) {
	ptr := reflect.New(p.typ).Interface().(Inserter).NewElem()
	types, ok := elemTypes([]any{ptr})
	if !ok {
		pl.unsupported(p, "NewElem must return a pointer")
		return
	}
	elem := pl.child(p, types[0])
	p.cat, p.dec = categoryCollection, decodeInserter(elem)
}

func (pl *planner) aggregateEncoder(p *plan) {
	if elems, ok := pl.aggregateElems(p); ok {
		p.cat, p.enc = categoryAggregate, encodeAggregate(elems)
	}
}

func (pl *planner) aggregateDecoder(p *plan) {
	if elems, ok := pl.aggregateElems(p); ok {
		p.cat, p.dec = categoryAggregate, decodeAggregate(elems)
	}
}

// addressable 返回一个可取地址的值，必要时拷贝
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	nv := reflect.New(v.Type()).Elem()
	nv.Set(v)
	return nv
}
