package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
)

type Config struct {
	Addr          string
	ReplyBuffer   int
	MaxFrameBytes int
	// WriteTimeout bounds every write to a client; zero disables it.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:6379",
		ReplyBuffer:   32,
		MaxFrameBytes: protocol.DefaultMaxFrameSize,
		WriteTimeout:  5 * time.Second,
	}
}

// Server accepts connections and runs one actor per connection against a
// shared core. The core must be running for requests to be answered.
type Server struct {
	cfg   Config
	core  *Core
	stats *stats.Stats
	wg    sync.WaitGroup
}

func New(cfg Config, core *Core) *Server {
	def := DefaultConfig()
	if cfg.ReplyBuffer <= 0 {
		cfg.ReplyBuffer = def.ReplyBuffer
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	return &Server{
		cfg:   cfg,
		core:  core,
		stats: core.Stats(),
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	log.Printf("kv server listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then waits for every
// connection to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	defer s.wg.Wait()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}
