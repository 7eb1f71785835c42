package protocol

// Value is one RESP value. The variant set is closed: only the types in this
// file implement it.
type Value interface {
	resp()
}

type SimpleString string

type Error string

type Integer int64

// BulkString is binary safe.
type BulkString []byte

// Null is the absent value. Both $-1 and *-1 decode to it.
type Null struct{}

type Array []Value

func (SimpleString) resp() {}
func (Error) resp()        {}
func (Integer) resp()      {}
func (BulkString) resp()   {}
func (Null) resp()         {}
func (Array) resp()        {}

const (
	prefixSimple  = '+'
	prefixError   = '-'
	prefixInteger = ':'
	prefixBulk    = '$'
	prefixArray   = '*'
)

// Command builds a client request: an array of bulk strings.
func Command(args ...string) Value {
	out := make(Array, 0, len(args))
	for _, a := range args {
		out = append(out, BulkString(a))
	}
	return out
}
