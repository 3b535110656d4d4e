package packer

// Pair is a fixed 2-tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

func MakePair[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{First: a, Second: b}
}

func (p *Pair[A, B]) TupleElems() []any {
	return []any{&p.First, &p.Second}
}

// Triple is a fixed 3-tuple.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func MakeTriple[A, B, C any](a A, b B, c C) Triple[A, B, C] {
	return Triple[A, B, C]{First: a, Second: b, Third: c}
}

func (t *Triple[A, B, C]) TupleElems() []any {
	return []any{&t.First, &t.Second, &t.Third}
}

type Quad[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

func MakeQuad[A, B, C, D any](a A, b B, c C, d D) Quad[A, B, C, D] {
	return Quad[A, B, C, D]{First: a, Second: b, Third: c, Fourth: d}
}

func (q *Quad[A, B, C, D]) TupleElems() []any {
	return []any{&q.First, &q.Second, &q.Third, &q.Fourth}
}
