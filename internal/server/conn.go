package server

import (
	"bufio"
	"context"
	"log"
	"net"
	"time"

	"github.com/loganszeto/respkv/internal/protocol"
)

// tcpConn frames a byte stream with protocol.Reader and batches replies in
// a bufio.Writer.
type tcpConn struct {
	conn         net.Conn
	reader       *protocol.Reader
	writer       *bufio.Writer
	writeTimeout time.Duration
}

func newTCPConn(c net.Conn, maxFrame int, writeTimeout time.Duration) *tcpConn {
	return &tcpConn{
		conn:         c,
		reader:       protocol.NewReaderSize(c, maxFrame),
		writer:       bufio.NewWriter(c),
		writeTimeout: writeTimeout,
	}
}

func (t *tcpConn) ReadValue() (protocol.Value, error) {
	return t.reader.ReadValue()
}

func (t *tcpConn) WriteReply(v protocol.Value) error {
	t.armDeadline()
	return protocol.WriteValue(t.writer, v)
}

func (t *tcpConn) Flush() error {
	t.armDeadline()
	return t.writer.Flush()
}

func (t *tcpConn) armDeadline() {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
}

func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	remote := c.RemoteAddr().String()
	s.stats.ConnOpened()
	defer s.stats.ConnClosed()
	log.Printf("client connected: %s", remote)
	defer log.Printf("client disconnected: %s", remote)

	t := newTCPConn(c, s.cfg.MaxFrameBytes, s.cfg.WriteTimeout)
	a := &actor{
		remote:      remote,
		core:        s.core,
		stats:       s.stats,
		rd:          t,
		wr:          t,
		replyBuffer: s.cfg.ReplyBuffer,
	}
	a.run(ctx)
}
