package protocol

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReaderPipelinedFrames(t *testing.T) {
	in := "*1\r\n$4\r\nPING\r\n*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n"
	r := NewReader(strings.NewReader(in))
	first, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(first, Command("PING")) {
		t.Fatalf("unexpected first value %#v", first)
	}
	second, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(second, Command("ECHO", "hi")) {
		t.Fatalf("unexpected second value %#v", second)
	}
	if _, err := r.ReadValue(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderOneByteAtATime(t *testing.T) {
	in := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"
	r := NewReader(iotest.OneByteReader(strings.NewReader(in)))
	v, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(v, Command("SET", "key", "value")) {
		t.Fatalf("unexpected value %#v", v)
	}
}

func TestReaderGrowsForLargeFrames(t *testing.T) {
	payload := strings.Repeat("x", 3*defaultReadSize)
	r := NewReader(strings.NewReader(string(Encode(BulkString(payload)))))
	v, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(v.(BulkString)) != payload {
		t.Fatalf("payload mismatch")
	}
}

func TestReaderFrameTooLarge(t *testing.T) {
	payload := strings.Repeat("x", 256)
	r := NewReaderSize(strings.NewReader(string(Encode(BulkString(payload)))), 64)
	_, err := r.ReadValue()
	if !errors.Is(err, ErrFrameTooLarge) || !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected frame too large, got %v", err)
	}
}

func TestReaderProtocolError(t *testing.T) {
	r := NewReader(strings.NewReader("+OK\r\n?bad\r\n"))
	if _, err := r.ReadValue(); err != nil {
		t.Fatalf("read: %v", err)
	}
	_, err := r.ReadValue()
	if !errors.Is(err, ErrProtocol) || !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected wrapped wrong type, got %v", err)
	}
}

func TestReaderTruncatedStream(t *testing.T) {
	r := NewReader(strings.NewReader("$10\r\nabc"))
	if _, err := r.ReadValue(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestReaderDataWithError(t *testing.T) {
	r := NewReader(iotest.DataErrReader(strings.NewReader(":5\r\n")))
	v, err := r.ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != Integer(5) {
		t.Fatalf("unexpected value %#v", v)
	}
	if _, err := r.ReadValue(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if r.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", r.Buffered())
	}
}
