package server

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
)

type frameReader interface {
	ReadValue() (protocol.Value, error)
}

type replyWriter interface {
	WriteReply(v protocol.Value) error
	Flush() error
}

// actor serves one connection. A reader goroutine turns frames into
// requests; run writes the replies back in the order the frames arrived.
// At most replyBuffer requests are outstanding, so the core never blocks
// sending to this connection.
type actor struct {
	remote      string
	core        *Core
	stats       *stats.Stats
	rd          frameReader
	wr          replyWriter
	replyBuffer int
}

// The caller closes the transport after run returns; that releases the
// reader goroutine if it is still blocked in a read.
func (a *actor) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan Reply, a.replyBuffer)
	slots := make(chan struct{}, a.replyBuffer)
	readDone := make(chan error, 1)
	go func() {
		readDone <- a.readLoop(ctx, replies, slots)
	}()

	var readErr error
	reading := true
	for reading || len(slots) > 0 {
		select {
		case r := <-replies:
			<-slots
			if err := a.wr.WriteReply(replyValue(r)); err != nil {
				log.Printf("write to %s: %v", a.remote, err)
				return
			}
			if len(replies) == 0 {
				if err := a.wr.Flush(); err != nil {
					log.Printf("write to %s: %v", a.remote, err)
					return
				}
			}
		case readErr = <-readDone:
			reading = false
			readDone = nil
			if !isEOF(readErr) && !errors.Is(readErr, protocol.ErrProtocol) {
				if !errors.Is(readErr, context.Canceled) {
					log.Printf("read from %s: %v", a.remote, readErr)
				}
				return
			}
		case <-a.core.Stopped():
			return
		case <-ctx.Done():
			return
		}
	}

	if errors.Is(readErr, protocol.ErrProtocol) {
		a.stats.RecordProtocolError()
		log.Printf("protocol error from %s: %v", a.remote, readErr)
		if err := a.wr.WriteReply(errorReply(readErr)); err == nil {
			_ = a.wr.Flush()
		}
	}
}

func (a *actor) readLoop(ctx context.Context, replies chan<- Reply, slots chan struct{}) error {
	for {
		v, err := a.rd.ReadValue()
		if err != nil {
			return err
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := a.core.Submit(ctx, NewRequest(ctx, v, replies)); err != nil {
			<-slots
			return err
		}
	}
}

func replyValue(r Reply) protocol.Value {
	if r.Err != nil {
		return errorReply(r.Err)
	}
	if r.Value == nil {
		return protocol.Null{}
	}
	return r.Value
}

// errorReply renders err as a single-line "-ERR ..." value.
func errorReply(err error) protocol.Value {
	msg := err.Error()
	if errors.Is(err, protocol.ErrProtocol) {
		msg = "Protocol error" + strings.TrimPrefix(msg, protocol.ErrProtocol.Error())
	}
	msg = strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
	return protocol.Error("ERR " + msg)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
