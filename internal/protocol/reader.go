package protocol

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrProtocol      = errors.New("protocol error")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

const (
	defaultReadSize     = 4096
	DefaultMaxFrameSize = 64 << 20
)

// Reader pulls complete values off a byte stream. Partial frames stay
// buffered until the rest arrives.
type Reader struct {
	rd       io.Reader
	buf      []byte
	start    int
	end      int
	maxFrame int
	err      error
	scan     frameScanner
}

func NewReader(rd io.Reader) *Reader {
	return NewReaderSize(rd, DefaultMaxFrameSize)
}

// NewReaderSize caps the bytes a single frame may occupy at maxFrame.
func NewReaderSize(rd io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	size := defaultReadSize
	if size > maxFrame {
		size = maxFrame
	}
	return &Reader{
		rd:       rd,
		buf:      make([]byte, size),
		maxFrame: maxFrame,
	}
}

// ReadValue returns the next complete value. Malformed input is reported
// wrapped in ErrProtocol; a stream that ends inside a frame yields
// io.ErrUnexpectedEOF.
func (r *Reader) ReadValue() (Value, error) {
	for {
		if r.end > r.start && r.scan.complete(r.buf[r.start:r.end]) {
			v, n, err := Decode(r.buf[:r.end], r.start)
			if !IsIncomplete(err) {
				r.scan.reset()
			}
			if err == nil {
				r.start += n
				if r.start == r.end {
					r.start, r.end = 0, 0
				}
				return v, nil
			}
			if !IsIncomplete(err) {
				return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
			}
		}
		if r.err != nil {
			err := r.err
			if errors.Is(err, io.EOF) && r.end > r.start {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

// Buffered returns the number of bytes read from the stream but not yet
// returned as values.
func (r *Reader) Buffered() int {
	return r.end - r.start
}

func (r *Reader) fill() error {
	if r.start > 0 {
		n := copy(r.buf, r.buf[r.start:r.end])
		r.start, r.end = 0, n
	}
	if r.end == len(r.buf) {
		if len(r.buf) >= r.maxFrame {
			return fmt.Errorf("%w: %w (%d bytes)", ErrProtocol, ErrFrameTooLarge, r.maxFrame)
		}
		size := len(r.buf) * 2
		if size > r.maxFrame {
			size = r.maxFrame
		}
		grown := make([]byte, size)
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}
	n, err := r.rd.Read(r.buf[r.end:])
	r.end += n
	if err != nil {
		r.err = err
	}
	return nil
}
