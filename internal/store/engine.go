package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/loganszeto/respkv/internal/util"
)

// NoTTL is reported by TTL for keys that never expire.
const NoTTL time.Duration = -1

var ErrInvalidTTL = errors.New("invalid ttl")

type Entry struct {
	Value     string
	CreatedAt time.Time
	TTL       time.Duration
}

// Equal ignores CreatedAt.
func (e Entry) Equal(o Entry) bool {
	return e.Value == o.Value && e.TTL == o.TTL
}

func (e Entry) deadline() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

type SetOptions struct {
	// TTL of zero means the key never expires.
	TTL time.Duration
}

// Engine is the key space. It has no locking: exactly one goroutine may use
// it at a time, which the server guarantees by handing it to the core.
//
// Every key in expiry is also in entries, with deadline CreatedAt+TTL. All
// removals go through drop so the two never disagree.
type Engine struct {
	clock        util.Clock
	entries      map[string]Entry
	expiry       expiryIndex
	activeExpiry bool
}

func New(clock util.Clock) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Engine{
		clock:        clock,
		entries:      make(map[string]Entry),
		activeExpiry: true,
	}
}

func (e *Engine) Get(key string) (string, bool) {
	if !e.live(key, e.clock.Now()) {
		return "", false
	}
	return e.entries[key].Value, true
}

func (e *Engine) Set(key, value string, opts SetOptions) error {
	if opts.TTL < 0 {
		return ErrInvalidTTL
	}
	ent := Entry{Value: value, CreatedAt: e.clock.Now(), TTL: opts.TTL}
	e.entries[key] = ent
	if ent.TTL > 0 {
		e.expiry.put(key, ent.deadline())
	} else {
		e.expiry.remove(key)
	}
	return nil
}

func (e *Engine) Del(key string) bool {
	if !e.live(key, e.clock.Now()) {
		return false
	}
	e.drop(key)
	return true
}

func (e *Engine) Exists(key string) bool {
	return e.live(key, e.clock.Now())
}

// Expire gives an existing key a new TTL counted from now.
func (e *Engine) Expire(key string, ttl time.Duration) bool {
	now := e.clock.Now()
	if !e.live(key, now) {
		return false
	}
	if ttl <= 0 {
		e.drop(key)
		return true
	}
	ent := e.entries[key]
	ent.CreatedAt = now
	ent.TTL = ttl
	e.entries[key] = ent
	e.expiry.put(key, ent.deadline())
	return true
}

// TTL returns the time left on key, or NoTTL when it has none. ok is false
// when the key does not exist.
func (e *Engine) TTL(key string) (ttl time.Duration, ok bool) {
	now := e.clock.Now()
	if !e.live(key, now) {
		return 0, false
	}
	deadline, has := e.expiry.get(key)
	if !has {
		return NoTTL, true
	}
	return deadline.Sub(now), true
}

func (e *Engine) Keys(prefix string) []string {
	now := e.clock.Now()
	out := make([]string, 0)
	for k := range e.entries {
		if !e.live(k, now) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Len counts stored entries, including expired ones not yet swept.
func (e *Engine) Len() int {
	return len(e.entries)
}

func (e *Engine) SetActiveExpiry(on bool) {
	e.activeExpiry = on
}

// ExpireKeys removes every key past its deadline and returns how many went.
// It does nothing while active expiry is off; reads still expire lazily.
func (e *Engine) ExpireKeys() int {
	if !e.activeExpiry || e.expiry.len() == 0 {
		return 0
	}
	expired := e.expiry.collect(e.clock.Now())
	for _, k := range expired {
		e.drop(k)
	}
	return len(expired)
}

// live reports whether key is present at now, dropping it if its deadline
// has passed.
func (e *Engine) live(key string, now time.Time) bool {
	if deadline, ok := e.expiry.get(key); ok && IsExpired(deadline, now) {
		e.drop(key)
		return false
	}
	_, ok := e.entries[key]
	return ok
}

func (e *Engine) drop(key string) {
	delete(e.entries, key)
	e.expiry.remove(key)
}
