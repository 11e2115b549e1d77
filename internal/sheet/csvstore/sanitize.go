package csvstore

import (
	"io"
	"unicode/utf8"
)

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming, so a
// file saved in a legacy encoding still loads (with visible damage) instead
// of poisoning string comparisons. Multi-byte sequences split across reads
// are carried over to the next Read.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to keep.
// Unless atEOF, a trailing incomplete rune is held back in pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if !atEOF && incomplete(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// incomplete reports whether data is a valid but truncated rune prefix.
func incomplete(data []byte) bool {
	if len(data) >= utf8.UTFMax || utf8.FullRune(data) {
		return false
	}
	r, _ := utf8.DecodeRune(append(append([]byte(nil), data...), 0x80, 0x80, 0x80)[:utf8.UTFMax])
	return r != utf8.RuneError
}
