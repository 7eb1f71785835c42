package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loganszeto/respkv/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address")
	clients := flag.Int("clients", 10, "concurrent connections")
	ops := flag.Int("ops", 100000, "total operations")
	pipeline := flag.Int("pipeline", 1, "requests in flight per connection")
	ratioGet := flag.Float64("ratio_get", 0.8, "fraction of GETs")
	valueSize := flag.Int("value_size", 128, "value size in bytes")
	keySpace := flag.Int("keys", 1000, "distinct keys")
	ttl := flag.Duration("ttl", 0, "PX applied to SETs (0 for none)")
	flag.Parse()

	if *clients <= 0 || *pipeline <= 0 || *keySpace <= 0 {
		fmt.Fprintln(os.Stderr, "clients, pipeline and keys must be > 0")
		os.Exit(1)
	}

	value := strings.Repeat("x", *valueSize)
	keys := make([]string, *keySpace)
	for i := range keys {
		keys[i] = fmt.Sprintf("key:%d", i)
	}

	var (
		issued   atomic.Int64
		done     atomic.Int64
		failures atomic.Int64
		mu       sync.Mutex
		lats     []time.Duration
		wg       sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", *addr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "client %d: %v\n", id, err)
				return
			}
			defer conn.Close()
			rd := protocol.NewReader(conn)
			w := bufio.NewWriter(conn)
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			local := make([]time.Duration, 0, *ops / *clients)

			for {
				batch := 0
				for batch < *pipeline && int(issued.Add(1)) <= *ops {
					key := keys[rng.Intn(len(keys))]
					var cmd protocol.Value
					switch {
					case rng.Float64() < *ratioGet:
						cmd = protocol.Command("GET", key)
					case *ttl > 0:
						cmd = protocol.Command("SET", key, value, "PX", fmt.Sprint(ttl.Milliseconds()))
					default:
						cmd = protocol.Command("SET", key, value)
					}
					if err := protocol.WriteValue(w, cmd); err != nil {
						return
					}
					batch++
				}
				if batch == 0 {
					break
				}
				sent := time.Now()
				if err := w.Flush(); err != nil {
					return
				}
				for j := 0; j < batch; j++ {
					v, err := rd.ReadValue()
					if err != nil {
						return
					}
					if _, isErr := v.(protocol.Error); isErr {
						failures.Add(1)
					}
					done.Add(1)
				}
				local = append(local, time.Since(sent))
			}
			mu.Lock()
			lats = append(lats, local...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := done.Load()
	fmt.Printf("Total ops: %d (errors %d)\n", total, failures.Load())
	fmt.Printf("Elapsed: %s\n", elapsed)
	fmt.Printf("Ops/sec: %.2f\n", float64(total)/elapsed.Seconds())
	printLatencyStats(lats)
}

// printLatencyStats reports per-batch round trip percentiles.
func printLatencyStats(lats []time.Duration) {
	if len(lats) == 0 {
		fmt.Println("No latency samples")
		return
	}
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	for _, p := range []int{50, 95, 99} {
		fmt.Printf("p%d: %s\n", p, lats[len(lats)*p/100])
	}
}
