package packer

const defaultBufSize = 64

type options struct {
	compat  bool
	bufSize int
}

type Option func(o *options)

// WithCompat makes the encoder write the exact bytes of the original
// nanorpc plain-text packer: every tuple and aggregate element is followed
// by an extra separator, and floats keep six significant digits. Floats
// that need more digits come back rounded: 3.14159265 decodes as 3.14159.
// Decoding accepts both forms regardless of this option.
func WithCompat() Option {
	return func(o *options) {
		o.compat = true
	}
}

// WithBufSize sets the initial buffer capacity of new encoders.
func WithBufSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufSize = size
		}
	}
}

func makeOptions(opts []Option) options {
	o := options{bufSize: defaultBufSize}
	for _, f := range opts {
		f(&o)
	}
	return o
}
