package bpool

import (
	"math/bits"
	"sync"
)

/*
	提供一个用于打包数据的缓冲池
	小于64k的数据将会被重用

	为什么是64k？
	绝大部分rpc参数打包后都远小于64k，更大的数据重用意义不大
*/
const (
	minSize  = 32
	maxSize  = 64 * 1024
	poolSize = 12 //32,64,128,256,512,1k,2k,4k,8k,16k,32k,64k
)

var pool [poolSize]sync.Pool

type Buff struct {
	b       []byte
	poolIdx int8
}

func init() {
	for i := 0; i < poolSize; i++ {
		size := getSize(i)
		idx := i
		pool[i].New = func() interface{} {
			return &Buff{poolIdx: int8(idx), b: make([]byte, 0, size)}
		}
	}
}

// New returns an empty buffer with at least size bytes of capacity.
func New(size int) *Buff {
	if size > maxSize {
		// 理论上很少这么大的数据,重用意义不大，所以，直接申请
		return &Buff{poolIdx: -1, b: make([]byte, 0, size)}
	}
	idx := getIndex(size)
	buf := pool[idx].Get().(*Buff)
	buf.b = buf.b[0:0]
	return buf
}

func NewBuf(buf []byte) *Buff {
	return New(len(buf)).Append(buf...)
}

func getIndex(size int) int {
	if size <= minSize {
		return 0
	}
	return bits.Len32(uint32(size-1)) - 5
}

// 调用该方法后，不能继续使用buff，否则有不可预料的bug
func (b *Buff) Free() {
	if b.poolIdx < 0 {
		return
	}
	pool[b.poolIdx].Put(b)
}

func (b *Buff) Size() int {
	return len(b.b)
}

func (b *Buff) Cap() int {
	return cap(b.b)
}

func (b *Buff) Reset() {
	b.b = b.b[0:0]
}

// Append returns the buffer holding the result, which is a new one when
// the capacity was exceeded; the old buffer is freed in that case.
func (b *Buff) Append(buf ...byte) *Buff {
	if len(buf)+b.Size() > b.Cap() {
		nb := b.grow(len(buf))
		nb.b = append(nb.b, buf...)
		return nb
	}
	b.b = append(b.b, buf...)
	return b
}

func (b *Buff) AppendString(s string) *Buff {
	if len(s)+b.Size() > b.Cap() {
		nb := b.grow(len(s))
		nb.b = append(nb.b, s...)
		return nb
	}
	b.b = append(b.b, s...)
	return b
}

func (b *Buff) AppendByte(c byte) *Buff {
	if b.Size() == b.Cap() {
		nb := b.grow(1)
		nb.b = append(nb.b, c)
		return nb
	}
	b.b = append(b.b, c)
	return b
}

// 按两倍扩容，避免大于64k之后每次追加都整体拷贝
func (b *Buff) grow(n int) *Buff {
	size := b.Size() + n
	if c := b.Cap() * 2; c > size {
		size = c
	}
	nb := New(size)
	nb.b = append(nb.b, b.b...)
	b.Free()
	return nb
}

func (b *Buff) ToBytes() []byte {
	return b.b
}

func (b *Buff) Copy() (buf []byte) {
	return append(make([]byte, 0, len(b.b)), b.b...)
}

func getSize(i int) int {
	return minSize << i
}
