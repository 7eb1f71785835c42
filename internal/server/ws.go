package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/respkv/internal/protocol"
)

// ErrPartialFrame is reported when a websocket message ends inside a frame.
// Frames may not span messages.
var ErrPartialFrame = errors.New("message ends inside a frame")

// wsConn carries RESP over websocket messages: a message holds one or more
// whole frames, and every reply goes out as its own binary message.
type wsConn struct {
	conn         *websocket.Conn
	pending      []byte
	writeTimeout time.Duration
}

func newWSConn(c *websocket.Conn, maxFrame int, writeTimeout time.Duration) *wsConn {
	if maxFrame > 0 {
		c.SetReadLimit(int64(maxFrame))
	}
	return &wsConn{conn: c, writeTimeout: writeTimeout}
}

func (w *wsConn) ReadValue() (protocol.Value, error) {
	for len(w.pending) == 0 {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			continue
		}
		w.pending = data
	}
	v, n, err := protocol.Decode(w.pending, 0)
	if err != nil {
		if protocol.IsIncomplete(err) {
			err = ErrPartialFrame
		}
		w.pending = nil
		return nil, fmt.Errorf("%w: %w", protocol.ErrProtocol, err)
	}
	w.pending = w.pending[n:]
	return v, nil
}

func (w *wsConn) WriteReply(v protocol.Value) error {
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(v))
}

// Flush is a no-op: each reply is already a complete message.
func (w *wsConn) Flush() error {
	return nil
}

func (w *wsConn) close() {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = w.conn.Close()
}

// ServeWebSocket runs the actor loop over an upgraded websocket connection
// and closes it when done.
func (s *Server) ServeWebSocket(ctx context.Context, c *websocket.Conn) {
	remote := c.RemoteAddr().String()
	s.stats.ConnOpened()
	defer s.stats.ConnClosed()
	log.Printf("websocket client connected: %s", remote)
	defer log.Printf("websocket client disconnected: %s", remote)

	w := newWSConn(c, s.cfg.MaxFrameBytes, s.cfg.WriteTimeout)
	defer w.close()
	a := &actor{
		remote:      remote,
		core:        s.core,
		stats:       s.stats,
		rd:          w,
		wr:          w,
		replyBuffer: s.cfg.ReplyBuffer,
	}
	a.run(ctx)
}
