package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loganszeto/respkv/internal/command"
	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

var (
	ErrIncorrectData = errors.New("incorrect data")
	ErrCoreStopped   = errors.New("core stopped")
)

type CoreOptions struct {
	// ExpireInterval is how often the active expiry sweep runs.
	ExpireInterval time.Duration
	// RequestBuffer bounds requests queued ahead of the core.
	RequestBuffer int
}

func DefaultCoreOptions() CoreOptions {
	return CoreOptions{
		ExpireInterval: 10 * time.Millisecond,
		RequestBuffer:  1024,
	}
}

// Core owns the engine. Run is the only goroutine that ever touches it; every
// other goroutine reaches it through Submit.
type Core struct {
	env      command.Env
	registry *command.Registry
	opts     CoreOptions
	requests chan Request
	stopped  chan struct{}
}

// NewCore takes ownership of st, which must not be used by the caller
// afterwards. A nil st yields a core whose storage commands all fail with
// command.ErrStorageNotInitialised.
func NewCore(st *store.Engine, s *stats.Stats, opts CoreOptions) *Core {
	def := DefaultCoreOptions()
	if opts.ExpireInterval <= 0 {
		opts.ExpireInterval = def.ExpireInterval
	}
	if opts.RequestBuffer <= 0 {
		opts.RequestBuffer = def.RequestBuffer
	}
	if s == nil {
		s = stats.New()
	}
	return &Core{
		env:      command.Env{Store: st, Stats: s},
		registry: command.NewRegistry(),
		opts:     opts,
		requests: make(chan Request, opts.RequestBuffer),
		stopped:  make(chan struct{}),
	}
}

func (c *Core) Stats() *stats.Stats {
	return c.env.Stats
}

// Stopped is closed once Run has returned.
func (c *Core) Stopped() <-chan struct{} {
	return c.stopped
}

// Run processes requests and expiry ticks until ctx is cancelled. It must be
// called once.
func (c *Core) Run(ctx context.Context) {
	defer close(c.stopped)
	ticker := time.NewTicker(c.opts.ExpireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			reply := c.process(req.Value)
			select {
			case req.Reply <- reply:
			case <-req.Done:
			}
		case <-ticker.C:
			c.expire()
		}
	}
}

// Submit queues req, blocking while the queue is full.
func (c *Core) Submit(ctx context.Context, req Request) error {
	select {
	case <-c.stopped:
		return ErrCoreStopped
	default:
	}
	select {
	case c.requests <- req:
		return nil
	case <-c.stopped:
		return ErrCoreStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) process(v protocol.Value) Reply {
	c.env.Stats.RecordCommand()
	args, err := commandArgs(v)
	if err == nil {
		v, err = c.registry.Execute(&c.env, args)
	}
	if err != nil {
		c.env.Stats.RecordError()
		return Reply{Err: err}
	}
	return Reply{Value: v}
}

func (c *Core) expire() {
	if c.env.Store == nil {
		return
	}
	if n := c.env.Store.ExpireKeys(); n > 0 {
		c.env.Stats.RecordExpired(n)
	}
}

// commandArgs accepts only a non-empty array of bulk strings.
func commandArgs(v protocol.Value) ([]string, error) {
	arr, ok := v.(protocol.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected an array of bulk strings", ErrIncorrectData)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrIncorrectData)
	}
	args := make([]string, len(arr))
	for i, item := range arr {
		b, ok := item.(protocol.BulkString)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d is not a bulk string", ErrIncorrectData, i)
		}
		args[i] = string(b)
	}
	return args, nil
}
