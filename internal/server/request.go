package server

import (
	"context"

	"github.com/loganszeto/respkv/internal/protocol"
)

// Reply carries either a value or the error the command failed with.
type Reply struct {
	Value protocol.Value
	Err   error
}

// Request is one decoded frame on its way to the core. Reply must have room
// for the answer; Done closing tells the core nobody is listening anymore.
type Request struct {
	Value protocol.Value
	Reply chan<- Reply
	Done  <-chan struct{}
}

func NewRequest(ctx context.Context, v protocol.Value, replies chan<- Reply) Request {
	return Request{Value: v, Reply: replies, Done: ctx.Done()}
}
