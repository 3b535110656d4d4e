package packer

// Token is one whitespace-delimited token of a packed buffer.
type Token struct {
	Offset int
	Text   []byte
}

// Scanner splits a packed buffer into tokens the way the decoder reads
// them: leading whitespace is skipped and a token runs up to the next
// whitespace byte.
type Scanner struct {
	buf []byte
	off int
}

func NewScanner(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// Next returns the next token, or false once only whitespace is left.
// Token.Text aliases the scanned buffer.
func (s *Scanner) Next() (Token, bool) {
	buf := s.buf
	i := s.off
	for i < len(buf) && isSpace(buf[i]) {
		i++
	}
	if i == len(buf) {
		s.off = i
		return Token{Offset: i}, false
	}
	start := i
	for i < len(buf) && !isSpace(buf[i]) {
		i++
	}
	s.off = i
	return Token{Offset: start, Text: buf[start:i]}, true
}

// More reports whether another token is available.
func (s *Scanner) More() bool {
	for i := s.off; i < len(s.buf); i++ {
		if !isSpace(s.buf[i]) {
			return true
		}
	}
	return false
}

// Offset is the position just past the last token read.
func (s *Scanner) Offset() int {
	return s.off
}

// 与 C 的 isspace 一致
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func hasSpace(b []byte) bool {
	for _, c := range b {
		if isSpace(c) {
			return true
		}
	}
	return false
}
