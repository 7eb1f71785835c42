package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway exposes the server over HTTP: /ws upgrades to a websocket carrying
// RESP frames and /healthz answers liveness probes.
type Gateway struct {
	addr     string
	server   *Server
	upgrader websocket.Upgrader
	// sessions counts websocket handlers; http.Server.Shutdown does not wait
	// for hijacked connections.
	sessions sync.WaitGroup
}

func NewGateway(addr string, srv *Server) *Gateway {
	return &Gateway{
		addr:   addr,
		server: srv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", g.handleWS)
	return withLogging(mux)
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	// Counted before the upgrade, while Shutdown still sees the connection
	// as active.
	g.sessions.Add(1)
	defer g.sessions.Done()
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	g.server.ServeWebSocket(r.Context(), conn)
}

// ListenAndServe serves HTTP until ctx is cancelled.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}
	log.Printf("kv gateway listening on %s", ln.Addr())
	return g.Serve(ctx, ln)
}

// Serve handles HTTP on ln until ctx is cancelled, then shuts down and waits
// for every websocket session to end.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ln)
	}()

	select {
	case err := <-served:
		g.sessions.Wait()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	g.sessions.Wait()
	return nil
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
