package fetch

import (
	"fmt"
	"time"
)

// ReadLine copies the next line into dst, without its terminator, and returns
// the number of bytes stored. CRLF and bare LF both end a line; the LF of a
// CRLF pair may arrive in a later read than the CR.
//
// Bytes past len(dst) are dropped: the line is truncated, not rejected.
// Reaching deadline before a terminator yields ErrTimeout, and the peer
// closing first yields ErrConnection.
func (s *Stream) ReadLine(dst []byte, deadline time.Time) (int, error) {
	if err := s.setReadDeadline(deadline); err != nil {
		return 0, err
	}
	n := 0
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return n, fmt.Errorf("%w: line unterminated after %d bytes: %v", readFailure(err), n, err)
		}
		switch b {
		case '\n':
			return n, nil
		case '\r':
			s.consumeLF()
			return n, nil
		}
		if n < len(dst) {
			dst[n] = b
			n++
		}
	}
}

// consumeLF swallows the LF following a CR. It waits for it under the
// current deadline; anything else is pushed back for the next read.
func (s *Stream) consumeLF() {
	b, err := s.br.ReadByte()
	if err != nil {
		return
	}
	if b != '\n' {
		_ = s.br.UnreadByte()
	}
}
