package protocol

// frameScanner locates the end of the frame at the front of a buffer without
// building values. It keeps its place between calls, so a frame arriving in
// many small reads is scanned once. Offsets are relative to the frame start.
type frameScanner struct {
	pos     int
	started bool
	// pending holds the elements still owed by each open array, innermost last.
	pending []int64
}

func (s *frameScanner) reset() {
	s.pos = 0
	s.started = false
	s.pending = s.pending[:0]
}

// complete reports whether buf holds the whole frame, or enough of a
// malformed one that Decode can report the error.
func (s *frameScanner) complete(buf []byte) bool {
	for !s.started || len(s.pending) > 0 {
		if s.pos >= len(buf) {
			return false
		}
		switch buf[s.pos] {
		case prefixSimple, prefixError, prefixInteger:
			_, next, err := readLine(buf, s.pos+1)
			if err != nil {
				return false
			}
			s.pos = next
			s.finishElement()
		case prefixBulk:
			n, next, err := readInt(buf, s.pos+1)
			if err != nil || n < -1 {
				return !IsIncomplete(err)
			}
			if n >= 0 {
				if n > int64(len(buf)-next-2) {
					return false
				}
				next += int(n) + 2
			}
			s.pos = next
			s.finishElement()
		case prefixArray:
			n, next, err := readInt(buf, s.pos+1)
			if err != nil || n < -1 || len(s.pending) >= maxDepth {
				return !IsIncomplete(err)
			}
			s.pos = next
			if n <= 0 {
				s.finishElement()
				continue
			}
			s.started = true
			s.pending = append(s.pending, n)
		default:
			return true
		}
	}
	return true
}

// finishElement records one complete element, closing every array it
// completes.
func (s *frameScanner) finishElement() {
	s.started = true
	for len(s.pending) > 0 {
		top := len(s.pending) - 1
		s.pending[top]--
		if s.pending[top] > 0 {
			return
		}
		s.pending = s.pending[:top]
	}
}
