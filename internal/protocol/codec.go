package protocol

import (
	"bufio"
	"strconv"
)

func Encode(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the wire form of v to dst. A nil Value is written as Null.
func AppendValue(dst []byte, v Value) []byte {
	switch v := v.(type) {
	case SimpleString:
		dst = append(dst, prefixSimple)
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Error:
		dst = append(dst, prefixError)
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Integer:
		dst = append(dst, prefixInteger)
		dst = strconv.AppendInt(dst, int64(v), 10)
		return append(dst, crlf...)
	case BulkString:
		dst = append(dst, prefixBulk)
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Array:
		dst = append(dst, prefixArray)
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		for _, item := range v {
			dst = AppendValue(dst, item)
		}
		return dst
	case Null, nil:
		return append(dst, "$-1\r\n"...)
	default:
		panic("protocol: unhandled value type")
	}
}

func WriteValue(w *bufio.Writer, v Value) error {
	_, err := w.Write(AppendValue(w.AvailableBuffer(), v))
	return err
}
