package stats

import "sync/atomic"

// Stats is shared between the core and the connection actors, so every
// counter is atomic.
type Stats struct {
	commands    atomic.Int64
	gets        atomic.Int64
	sets        atomic.Int64
	dels        atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	expired     atomic.Int64
	errors      atomic.Int64
	protoErrors atomic.Int64
	connections atomic.Int64
	accepted    atomic.Int64
}

func New() *Stats {
	return &Stats{}
}

func (s *Stats) RecordCommand() {
	s.commands.Add(1)
}

func (s *Stats) RecordGet(hit bool) {
	s.gets.Add(1)
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
}

func (s *Stats) RecordSet() {
	s.sets.Add(1)
}

func (s *Stats) RecordDel(n int) {
	s.dels.Add(int64(n))
}

func (s *Stats) RecordExpired(n int) {
	s.expired.Add(int64(n))
}

func (s *Stats) RecordError() {
	s.errors.Add(1)
}

func (s *Stats) RecordProtocolError() {
	s.protoErrors.Add(1)
}

func (s *Stats) ConnOpened() {
	s.accepted.Add(1)
	s.connections.Add(1)
}

func (s *Stats) ConnClosed() {
	s.connections.Add(-1)
}

func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"commands":          s.commands.Load(),
		"gets":              s.gets.Load(),
		"sets":              s.sets.Load(),
		"dels":              s.dels.Load(),
		"hits":              s.hits.Load(),
		"misses":            s.misses.Load(),
		"expired_keys":      s.expired.Load(),
		"errors":            s.errors.Load(),
		"protocol_errors":   s.protoErrors.Load(),
		"connected_clients": s.connections.Load(),
		"total_connections": s.accepted.Load(),
	}
}
