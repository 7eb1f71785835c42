package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

var (
	ErrWrongType       = errors.New("unknown type byte")
	ErrOutOfBounds     = errors.New("out of bounds")
	ErrParseInt        = errors.New("cannot parse integer")
	ErrIncorrectLength = errors.New("incorrect length")
	ErrFromUTF8        = errors.New("invalid utf-8 text")
	ErrNestingTooDeep  = errors.New("arrays nested too deep")
)

const maxDepth = 64

var crlf = []byte("\r\n")

// IsIncomplete reports whether a decode failed only because the buffer ends
// before the frame does. The caller should read more bytes and retry.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrOutOfBounds)
}

// Decode parses one value starting at buf[cursor] and returns it together with
// the number of bytes it occupied. On error nothing is consumed.
func Decode(buf []byte, cursor int) (Value, int, error) {
	if cursor < 0 || cursor > len(buf) {
		return nil, 0, outOfBounds(cursor)
	}
	v, next, err := decodeAt(buf, cursor, 0)
	if err != nil {
		return nil, 0, err
	}
	return v, next - cursor, nil
}

func decodeAt(buf []byte, pos, depth int) (Value, int, error) {
	if pos >= len(buf) {
		return nil, pos, outOfBounds(pos)
	}
	switch buf[pos] {
	case prefixSimple:
		text, next, err := readText(buf, pos+1)
		if err != nil {
			return nil, pos, err
		}
		return SimpleString(text), next, nil
	case prefixError:
		text, next, err := readText(buf, pos+1)
		if err != nil {
			return nil, pos, err
		}
		return Error(text), next, nil
	case prefixInteger:
		n, next, err := readInt(buf, pos+1)
		if err != nil {
			return nil, pos, err
		}
		return Integer(n), next, nil
	case prefixBulk:
		return decodeBulk(buf, pos+1)
	case prefixArray:
		if depth >= maxDepth {
			return nil, pos, fmt.Errorf("%w at index %d", ErrNestingTooDeep, pos)
		}
		return decodeArray(buf, pos+1, depth+1)
	default:
		return nil, pos, fmt.Errorf("%w %q at index %d", ErrWrongType, buf[pos], pos)
	}
}

func decodeBulk(buf []byte, pos int) (Value, int, error) {
	n, next, err := readInt(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	if n == -1 {
		return Null{}, next, nil
	}
	if n < 0 {
		return nil, pos, fmt.Errorf("%w %d at index %d", ErrIncorrectLength, n, pos)
	}
	if n > int64(len(buf)-next) {
		return nil, pos, outOfBounds(len(buf))
	}
	end := next + int(n)
	if end+2 > len(buf) {
		return nil, pos, outOfBounds(len(buf))
	}
	if buf[end] != '\r' || buf[end+1] != '\n' {
		return nil, pos, fmt.Errorf("%w %d at index %d: missing terminator", ErrIncorrectLength, n, pos)
	}
	out := make([]byte, n)
	copy(out, buf[next:end])
	return BulkString(out), end + 2, nil
}

func decodeArray(buf []byte, pos, depth int) (Value, int, error) {
	n, next, err := readInt(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	if n == -1 {
		return Null{}, next, nil
	}
	if n < 0 {
		return nil, pos, fmt.Errorf("%w %d at index %d", ErrIncorrectLength, n, pos)
	}
	hint := n
	if hint > 1024 {
		hint = 1024
	}
	items := make(Array, 0, hint)
	for i := int64(0); i < n; i++ {
		var item Value
		item, next, err = decodeAt(buf, next, depth)
		if err != nil {
			return nil, pos, err
		}
		items = append(items, item)
	}
	return items, next, nil
}

// readLine returns the bytes up to the next CRLF and the index just past it.
func readLine(buf []byte, pos int) ([]byte, int, error) {
	i := bytes.Index(buf[pos:], crlf)
	if i < 0 {
		return nil, pos, outOfBounds(len(buf))
	}
	return buf[pos : pos+i], pos + i + 2, nil
}

func readText(buf []byte, pos int) (string, int, error) {
	line, next, err := readLine(buf, pos)
	if err != nil {
		return "", pos, err
	}
	if !utf8.Valid(line) {
		return "", pos, fmt.Errorf("%w at index %d", ErrFromUTF8, pos)
	}
	return string(line), next, nil
}

func readInt(buf []byte, pos int) (int64, int, error) {
	line, next, err := readLine(buf, pos)
	if err != nil {
		return 0, pos, err
	}
	if len(line) == 0 || line[0] == '+' {
		return 0, pos, fmt.Errorf("%w %q at index %d", ErrParseInt, line, pos)
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, pos, fmt.Errorf("%w %q at index %d", ErrParseInt, line, pos)
	}
	return n, next, nil
}

func outOfBounds(index int) error {
	return fmt.Errorf("%w at index %d", ErrOutOfBounds, index)
}
