package packer

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string
	Count int
	Price float64
}

type order struct {
	ID      int64
	Items   []item
	Tags    map[string]Pair[int, bool]
	Coords  [2]float32
	Done    bool
	skipped int
}

type tree struct {
	Value    int
	Children []tree
}

// secret hides its state but decomposes through PackFields
type secret struct {
	id    int
	token string
}

func (s *secret) PackFields() []any {
	return []any{&s.id, &s.token}
}

// word is both iterable and text-convertible; the text form must win.
type word []rune

func (w word) MarshalText() ([]byte, error) {
	return []byte(string(w)), nil
}

func (w *word) UnmarshalText(text []byte) error {
	*w = word(string(text))
	return nil
}

func pack(t *testing.T, p *PlainText, values ...any) []byte {
	t.Helper()
	e := p.NewEncoder()
	for _, v := range values {
		e.Pack(v)
	}
	buf, err := e.Finish()
	require.NoError(t, err)
	return buf
}

func TestTupleScenario(t *testing.T) {
	in := MakeTriple(42, "ok", []int{1, 2, 3})
	buf := pack(t, New(), in)
	assert.Equal(t, "42 ok 3 1 2 3 ", string(buf))

	var out Triple[int, string, []int]
	require.NoError(t, NewDecoder(buf).Unpack(&out).Err())
	assert.Equal(t, in, out)
}

func TestCompatWireBytes(t *testing.T) {
	p := New(WithCompat())
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"tuple", MakeTriple(42, "ok", []int{1, 2, 3}), "42  ok  3 1 2 3  "},
		{"aggregate", item{Name: "pen", Count: 2, Price: 1.5}, "pen  2  1.5  "},
		{"map", map[string]int{"a": 1}, "1 a  1  "},
		{"float", 3.14159265, "3.14159 "},
		{"collection", []int{7}, "1 7 "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, string(pack(t, p, c.in)))
		})
	}

	var out Triple[int, string, []int]
	require.NoError(t, NewDecoder([]byte(cases[0].want)).Unpack(&out).Err())
	assert.Equal(t, MakeTriple(42, "ok", []int{1, 2, 3}), out)
}

func TestPrimitivesRoundTrip(t *testing.T) {
	cases := []any{
		true, false,
		int8(math.MinInt8), int16(-300), int32(math.MaxInt32), int64(math.MinInt64), -7,
		uint8(255), uint16(65535), uint32(1), uint64(math.MaxUint64), uint(9),
		float32(1.25), 3.14, math.Inf(-1), 1e-300,
		complex64(1 + 2i), complex(-0.5, 3),
		"hello", "多字节",
	}
	for _, in := range cases {
		buf, err := Pack(in)
		require.NoError(t, err, "%T", in)
		out := reflect.New(reflect.TypeOf(in))
		require.NoError(t, Unpack(buf, out.Interface()), "%T %q", in, buf)
		assert.Equal(t, in, out.Elem().Interface())
	}
}

func TestPrimitiveTokens(t *testing.T) {
	buf, err := Pack(1, "hello", 3.14, true, uint8(7))
	require.NoError(t, err)
	assert.Equal(t, "1 hello 3.14 1 7 ", string(buf))
}

func TestTextMarshalerTypes(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	n, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	buf, err := Pack(when, n)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05.000000006Z 123456789012345678901234567890 ", string(buf))

	var (
		gotWhen time.Time
		gotN    *big.Int
	)
	require.NoError(t, Unpack(buf, &gotWhen, &gotN))
	assert.True(t, when.Equal(gotWhen))
	assert.Equal(t, 0, n.Cmp(gotN))
}

func TestDispatchPriority(t *testing.T) {
	buf, err := Pack(word("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello ", string(buf))

	var w word
	require.NoError(t, Unpack(buf, &w))
	assert.Equal(t, word("hello"), w)

	p := encoderOf(reflect.TypeOf(word(nil)))
	assert.Equal(t, categoryPrimitive, p.cat)
	assert.Equal(t, categoryPrimitive, decoderOf(reflect.TypeOf(word(nil))).cat)
	assert.Equal(t, categoryCollection, encoderOf(reflect.TypeOf([]rune(nil))).cat)
	assert.Equal(t, categoryTuple, encoderOf(reflect.TypeOf([2]int{})).cat)
	assert.Equal(t, categoryAggregate, encoderOf(reflect.TypeOf(item{})).cat)
}

func TestOrderPreservation(t *testing.T) {
	buf, err := Pack(1, "two", 3.5)
	require.NoError(t, err)

	var (
		x int
		y string
		z float64
	)
	require.NoError(t, NewDecoder(buf).Unpack(&x).Unpack(&y).Unpack(&z).Err())
	assert.Equal(t, 1, x)
	assert.Equal(t, "two", y)
	assert.Equal(t, 3.5, z)
}

func TestCountFidelity(t *testing.T) {
	for _, n := range []int{0, 1, 10000} {
		in := make([]int, n)
		for i := range in {
			in[i] = i * 3
		}
		buf, err := Pack(in, "tail")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(n)+" ", string(buf[:len(strconv.Itoa(n))+1]))

		var (
			out  []int
			tail string
		)
		require.NoError(t, Unpack(buf, &out, &tail))
		assert.Len(t, out, n)
		assert.Equal(t, "tail", tail)
		if n > 0 {
			assert.Equal(t, in, out)
		}
	}
}

func TestEmptyCollection(t *testing.T) {
	buf, err := Pack([]int{})
	require.NoError(t, err)
	assert.Equal(t, "0 ", string(buf))

	out := []int{9, 9}
	require.NoError(t, Unpack(buf, &out))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMapDeterministic(t *testing.T) {
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	buf, err := Pack(in)
	require.NoError(t, err)
	assert.Equal(t, "3 a 1 b 2 c 3 ", string(buf))

	for i := 0; i < 10; i++ {
		again, err := Pack(in)
		require.NoError(t, err)
		assert.Equal(t, buf, again)
	}

	var out map[string]int
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, in, out)

	keyed := map[int][]string{-1: {"x"}, 10: nil, 2: {"y", "z"}}
	buf, err = Pack(keyed)
	require.NoError(t, err)
	assert.Equal(t, "3 -1 1 x 2 2 y z 10 0 ", string(buf))
}

func TestSet(t *testing.T) {
	in := NewSet(3, 1, 2)
	buf, err := Pack(in)
	require.NoError(t, err)
	assert.Equal(t, "3 1 2 3 ", string(buf))

	var out Set[int]
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, in, out)
	assert.True(t, out.Has(2))
}

func TestAggregateRoundTrip(t *testing.T) {
	in := []order{
		{
			ID: 1,
			Items: []item{
				{Name: "pen", Count: 2, Price: 1.5},
				{Name: "ink", Count: 1, Price: 0.25},
			},
			Tags:   map[string]Pair[int, bool]{"red": MakePair(1, true), "big": MakePair(-4, false)},
			Coords: [2]float32{1.5, -2},
			Done:   true,
		},
		{ID: 2, Items: []item{}, Tags: map[string]Pair[int, bool]{}},
	}
	for _, p := range []*PlainText{New(), New(WithCompat())} {
		buf := pack(t, p, in)
		var out []order
		require.NoError(t, p.FromBuffer(buf).Unpack(&out).Err())
		assert.Equal(t, in, out)
	}
}

func TestUnexportedFieldsSkipped(t *testing.T) {
	buf, err := Pack(order{ID: 5, skipped: 7, Items: []item{}, Tags: map[string]Pair[int, bool]{}})
	require.NoError(t, err)
	var out order
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, int64(5), out.ID)
	assert.Zero(t, out.skipped)
}

func TestFielder(t *testing.T) {
	in := secret{id: 7, token: "abc"}
	buf, err := Pack(in)
	require.NoError(t, err)
	assert.Equal(t, "7 abc ", string(buf))

	var out secret
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, in, out)
}

// Badge is embedded, so it must be exported to be packed
type Badge struct {
	level int
}

func (b *Badge) PackFields() []any {
	return []any{&b.level}
}

type member struct {
	Badge
	Name string
}

type labeled struct {
	Pair[int, int]
	Name string
}

func TestEmbeddedMethodsDoNotTakeOver(t *testing.T) {
	assert.Equal(t, categoryAggregate, encoderOf(reflect.TypeOf(labeled{})).cat)
	assert.Equal(t, categoryAggregate, decoderOf(reflect.TypeOf(member{})).cat)

	tests := []struct {
		in   any
		want string
	}{
		{labeled{Pair: MakePair(1, 2), Name: "hello"}, "1 2 hello "},
		{member{Badge: Badge{level: 3}, Name: "ann"}, "3 ann "},
	}
	for _, tt := range tests {
		buf, err := Pack(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(buf))

		for _, p := range []*PlainText{New(), New(WithCompat())} {
			out := reflect.New(reflect.TypeOf(tt.in))
			require.NoError(t, p.FromBuffer(pack(t, p, tt.in)).Unpack(out.Interface()).Err())
			assert.Equal(t, tt.in, out.Elem().Interface())
		}
	}
}

func TestRecursiveType(t *testing.T) {
	require.NoError(t, Supports[tree]())
	in := tree{Value: 1, Children: []tree{
		{Value: 2, Children: []tree{}},
		{Value: 3, Children: []tree{{Value: 4, Children: []tree{}}}},
	}}
	buf, err := Pack(in)
	require.NoError(t, err)
	assert.Equal(t, "1 2 2 0 3 1 4 0 ", string(buf))

	var out tree
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, in, out)
}

func TestPointers(t *testing.T) {
	n := 5
	buf, err := Pack(&n)
	require.NoError(t, err)
	assert.Equal(t, "5 ", string(buf))

	var out *int
	require.NoError(t, Unpack(buf, &out))
	require.NotNil(t, out)
	assert.Equal(t, 5, *out)

	var nilPtr *int
	_, err = Pack(nilPtr)
	assert.ErrorIs(t, err, ErrNilPointer)
}

func TestEncodingIsPositionIndependent(t *testing.T) {
	v := MakePair([]string{"a", "b"}, item{Name: "x", Count: 1})
	alone, err := Pack(v)
	require.NoError(t, err)
	after, err := Pack(12345, "prefix", v)
	require.NoError(t, err)
	assert.Equal(t, string(alone), string(after[len(after)-len(alone):]))
}

func TestFinishTwice(t *testing.T) {
	e := New().Pack(1)
	_, err := e.Finish()
	require.NoError(t, err)

	_, err = e.Finish()
	assert.ErrorIs(t, err, ErrInvalidState)

	e.Pack(2)
	assert.ErrorIs(t, e.Err(), ErrInvalidState)
}

func TestUnpackPastEnd(t *testing.T) {
	buf, err := Pack(1)
	require.NoError(t, err)

	var a, b int
	d := NewDecoder(buf).Unpack(&a)
	require.NoError(t, d.Err())
	assert.False(t, d.More())
	d.Unpack(&b)
	assert.ErrorIs(t, d.Err(), ErrInvalidState)

	// 错误之后不再继续读
	d.Unpack(&b)
	assert.ErrorIs(t, d.Err(), ErrInvalidState)

	var zero Decoder
	assert.ErrorIs(t, zero.Unpack(&a).Err(), ErrInvalidState)

	assert.ErrorIs(t, NewDecoder(nil).Unpack(&a).Err(), ErrInvalidState)
}

func TestTruncatedCollection(t *testing.T) {
	var out []int
	err := Unpack([]byte("3 1 2 "), &out)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTypeMismatch(t *testing.T) {
	buf, err := Pack("abc", 1)
	require.NoError(t, err)

	var n int
	err = Unpack(buf, &n)
	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Offset)
	assert.Equal(t, "abc", te.Token)
	assert.Equal(t, reflect.TypeOf(0), te.Type)
	assert.ErrorIs(t, err, strconv.ErrSyntax)

	var small int8
	err = Unpack([]byte("300 "), &small)
	assert.ErrorIs(t, err, strconv.ErrRange)
}

func TestFailedUnpackKeepsDestination(t *testing.T) {
	out := item{Name: "keep", Count: 1}
	err := Unpack([]byte("pen notanumber 1.5 "), &out)
	require.Error(t, err)
	assert.Equal(t, item{Name: "keep", Count: 1}, out)
}

func TestUnpackLeftover(t *testing.T) {
	var n int
	assert.Error(t, Unpack([]byte("1 2 "), &n))
}

func TestInvalidUnpack(t *testing.T) {
	var n int
	var iue *InvalidUnpackError
	assert.ErrorAs(t, NewDecoder([]byte("1 ")).Unpack(n).Err(), &iue)
	assert.ErrorAs(t, NewDecoder([]byte("1 ")).Unpack(nil).Err(), &iue)
	assert.ErrorAs(t, NewDecoder([]byte("1 ")).Unpack((*int)(nil)).Err(), &iue)
}

// stamp can be written but not read back
type stamp struct {
	n int
}

func (s stamp) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(s.n)), nil
}

func TestBoolKeysSorted(t *testing.T) {
	for i := 0; i < 50; i++ {
		buf, err := Pack(map[bool]int{true: 1, false: 0})
		require.NoError(t, err)
		require.Equal(t, "2 0 0 1 1 ", string(buf))
	}
}

func TestCompatRoundsFloats(t *testing.T) {
	var out float64
	buf, err := New(WithCompat()).Pack(3.14159265).Finish()
	require.NoError(t, err)
	assert.Equal(t, "3.14159 ", string(buf))
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, 3.14159, out)

	buf, err = Pack(3.14159265)
	require.NoError(t, err)
	require.NoError(t, Unpack(buf, &out))
	assert.Equal(t, 3.14159265, out)
}

func TestUnsupportedTypes(t *testing.T) {
	var ute *UnsupportedTypeError
	assert.ErrorAs(t, Supports[chan int](), &ute)
	assert.ErrorAs(t, Supports[any](), &ute)
	assert.ErrorAs(t, Supports[struct{ F func() }](), &ute)
	assert.ErrorAs(t, Supports[struct{ a int }](), &ute)
	assert.ErrorAs(t, Supports[[]struct{ C chan int }](), &ute)
	assert.ErrorAs(t, Check(nil), &ute)

	assert.NoError(t, Supports[order]())
	assert.NoError(t, Supports[Set[string]]())
	assert.NoError(t, Check(word("x")))

	_, err := Pack(struct{ C chan int }{})
	assert.ErrorAs(t, err, &ute)
	assert.Equal(t, "encode", ute.Op)

	assert.Panics(t, func() { MustSupport[map[string]func()]() })

	// the two paths resolve on their own
	buf, err := Pack(stamp{n: 9})
	require.NoError(t, err)
	assert.Equal(t, "9 ", string(buf))
	require.ErrorAs(t, Supports[stamp](), &ute)
	assert.Equal(t, "decode", ute.Op)
	var s stamp
	assert.ErrorAs(t, Unpack(buf, &s), &ute)
}

func TestErrorSticks(t *testing.T) {
	e := NewEncoder().Pack(make(chan int)).Pack(1)
	require.Error(t, e.Err())
	_, err := e.Finish()
	assert.Equal(t, e.Err(), err)
}

func TestFinishBuff(t *testing.T) {
	e := NewEncoder(WithBufSize(8)).Pack("abcdefgh").Pack(1)
	assert.Equal(t, 11, e.Len())
	b, err := e.FinishBuff()
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh 1 ", string(b.ToBytes()))
	b.Free()
}

func TestScanner(t *testing.T) {
	s := NewScanner([]byte("  42\tok\n\n3  "))
	var got []Token
	for {
		tok, ok := s.Next()
		if !ok {
			break
		}
		got = append(got, tok)
	}
	require.Len(t, got, 3)
	assert.Equal(t, Token{Offset: 2, Text: []byte("42")}, got[0])
	assert.Equal(t, Token{Offset: 5, Text: []byte("ok")}, got[1])
	assert.Equal(t, Token{Offset: 9, Text: []byte("3")}, got[2])
	assert.False(t, s.More())
}

func BenchmarkPack(b *testing.B) {
	v := order{ID: 1, Items: []item{{Name: "pen", Count: 2, Price: 1.5}}, Tags: map[string]Pair[int, bool]{"a": MakePair(1, true)}}
	p := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, _ := p.Pack(v).FinishBuff()
		buf.Free()
	}
}

func BenchmarkUnpack(b *testing.B) {
	v := order{ID: 1, Items: []item{{Name: "pen", Count: 2, Price: 1.5}}, Tags: map[string]Pair[int, bool]{"a": MakePair(1, true)}}
	buf, _ := Pack(v)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out order
		_ = NewDecoder(buf).Unpack(&out).Err()
	}
}
