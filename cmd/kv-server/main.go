package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/loganszeto/respkv/internal/server"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

func main() {
	cfg := server.DefaultConfig()
	coreOpts := server.DefaultCoreOptions()

	addr := flag.String("addr", getenv("KV_ADDR", cfg.Addr), "listen address")
	wsAddr := flag.String("ws_addr", getenv("KV_WS_ADDR", ""), "websocket gateway address (empty disables)")
	expireInterval := flag.Duration("expire_interval", coreOpts.ExpireInterval, "active expiry sweep interval")
	requestBuffer := flag.Int("request_buffer", coreOpts.RequestBuffer, "requests queued ahead of the core")
	replyBuffer := flag.Int("reply_buffer", cfg.ReplyBuffer, "outstanding replies per connection")
	maxFrame := flag.Int("max_frame_bytes", getenvInt("KV_MAX_FRAME_BYTES", cfg.MaxFrameBytes), "largest accepted frame")
	writeTimeout := flag.Duration("write_timeout", cfg.WriteTimeout, "per-write deadline for clients")
	flag.Parse()

	cfg.Addr = *addr
	cfg.ReplyBuffer = *replyBuffer
	cfg.MaxFrameBytes = *maxFrame
	cfg.WriteTimeout = *writeTimeout
	coreOpts.ExpireInterval = *expireInterval
	coreOpts.RequestBuffer = *requestBuffer

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	core := server.NewCore(store.New(nil), stats.New(), coreOpts)
	srv := server.New(cfg, core)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		core.Run(ctx)
	}()

	if *wsAddr != "" {
		gw := server.NewGateway(*wsAddr, srv)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gw.ListenAndServe(ctx); err != nil {
				log.Fatalf("gateway error: %v", err)
			}
		}()
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	cancel()
	wg.Wait()
	log.Printf("kv server stopped")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}
