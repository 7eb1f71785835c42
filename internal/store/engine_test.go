package store

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/loganszeto/respkv/internal/util"
)

func newTestEngine() (*Engine, *util.ManualClock) {
	clock := util.NewManualClock(time.Unix(1700000000, 0))
	return New(clock), clock
}

// checkInvariants fails the test if the entry map and the deadline index
// disagree.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	n := 0
	for i := range e.expiry.buckets {
		for k, d := range e.expiry.buckets[i].deadlines {
			n++
			ent, ok := e.entries[k]
			if !ok {
				t.Fatalf("key %q has a deadline but no entry", k)
			}
			if !d.Equal(ent.CreatedAt.Add(ent.TTL)) {
				t.Fatalf("key %q deadline %v != created %v + ttl %v", k, d, ent.CreatedAt, ent.TTL)
			}
			if uint64(i) != bucketIndex(k) {
				t.Fatalf("key %q in bucket %d, want %d", k, i, bucketIndex(k))
			}
		}
	}
	if n != e.expiry.len() {
		t.Fatalf("index size %d, counted %d", e.expiry.len(), n)
	}
	for k, ent := range e.entries {
		_, indexed := e.expiry.get(k)
		if indexed != (ent.TTL > 0) {
			t.Fatalf("key %q ttl %v indexed=%v", k, ent.TTL, indexed)
		}
	}
}

func TestNewEngine(t *testing.T) {
	e := New(nil)
	if e.Len() != 0 || e.expiry.len() != 0 {
		t.Fatalf("new engine not empty")
	}
	if !e.activeExpiry {
		t.Fatalf("active expiry should default to on")
	}
}

func TestSetGet(t *testing.T) {
	e, _ := newTestEngine()
	if err := e.Set("akey", "avalue", SetOptions{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	want := Entry{Value: "avalue"}
	if got := e.entries["akey"]; !got.Equal(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	for i := 0; i < 3; i++ {
		v, ok := e.Get("akey")
		if !ok || v != "avalue" {
			t.Fatalf("get #%d: %q %v", i, v, ok)
		}
	}
	if e.Len() != 1 {
		t.Fatalf("get mutated the store: len %d", e.Len())
	}
	checkInvariants(t, e)
}

func TestGetMissing(t *testing.T) {
	e, _ := newTestEngine()
	if v, ok := e.Get("nope"); ok || v != "" {
		t.Fatalf("expected miss, got %q", v)
	}
	if e.Len() != 0 {
		t.Fatalf("miss created an entry")
	}
}

func TestSetWithTTLRecordsDeadline(t *testing.T) {
	e, clock := newTestEngine()
	if err := e.Set("akey", "avalue", SetOptions{TTL: 100 * time.Millisecond}); err != nil {
		t.Fatalf("set: %v", err)
	}
	want := Entry{Value: "avalue", TTL: 100 * time.Millisecond}
	if got := e.entries["akey"]; !got.Equal(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	d, ok := e.expiry.get("akey")
	if !ok || !d.Equal(clock.Now().Add(100*time.Millisecond)) {
		t.Fatalf("unexpected deadline %v %v", d, ok)
	}
	checkInvariants(t, e)
}

func TestSetRejectsNegativeTTL(t *testing.T) {
	e, _ := newTestEngine()
	if err := e.Set("k", "v", SetOptions{TTL: -time.Second}); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if e.Len() != 0 {
		t.Fatalf("rejected set stored a value")
	}
}

func TestLazyExpiry(t *testing.T) {
	e, clock := newTestEngine()
	e.SetActiveExpiry(false)
	_ = e.Set("k", "v", SetOptions{TTL: 50 * time.Millisecond})

	clock.Advance(49 * time.Millisecond)
	if _, ok := e.Get("k"); !ok {
		t.Fatalf("key expired early")
	}
	clock.Advance(time.Millisecond)
	if _, ok := e.Get("k"); ok {
		t.Fatalf("key still visible at its deadline")
	}
	if e.Len() != 0 || e.expiry.len() != 0 {
		t.Fatalf("lazy expiry left state behind: %d entries, %d deadlines", e.Len(), e.expiry.len())
	}
	checkInvariants(t, e)
}

func TestExpireKeys(t *testing.T) {
	e, clock := newTestEngine()
	_ = e.Set("short", "v", SetOptions{TTL: 10 * time.Millisecond})
	_ = e.Set("long", "v", SetOptions{TTL: time.Hour})
	_ = e.Set("forever", "v", SetOptions{})

	clock.Advance(20 * time.Millisecond)
	if n := e.ExpireKeys(); n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if _, ok := e.entries["short"]; ok {
		t.Fatalf("short survived the sweep")
	}
	if e.Len() != 2 {
		t.Fatalf("expected 2 keys left, got %d", e.Len())
	}
	checkInvariants(t, e)
}

func TestExpireKeysDeactivated(t *testing.T) {
	e, clock := newTestEngine()
	e.SetActiveExpiry(false)
	_ = e.Set("akey", "avalue", SetOptions{TTL: time.Millisecond})
	clock.Advance(5 * time.Second)
	if n := e.ExpireKeys(); n != 0 {
		t.Fatalf("sweep ran while disabled: %d", n)
	}
	if e.Len() != 1 {
		t.Fatalf("expected entry to remain, len %d", e.Len())
	}
	if _, ok := e.Get("akey"); ok {
		t.Fatalf("lazy expiry must still apply")
	}
}

func TestExpiryMonotonic(t *testing.T) {
	e, clock := newTestEngine()
	_ = e.Set("k", "v", SetOptions{TTL: time.Second})
	clock.Advance(2 * time.Second)
	e.ExpireKeys()
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		if _, ok := e.Get("k"); ok {
			t.Fatalf("expired key came back")
		}
		if e.Exists("k") {
			t.Fatalf("expired key exists")
		}
	}
}

func TestSetOverwriteClearsTTL(t *testing.T) {
	e, clock := newTestEngine()
	_ = e.Set("k", "v1", SetOptions{TTL: 10 * time.Millisecond})
	_ = e.Set("k", "v2", SetOptions{})
	checkInvariants(t, e)

	clock.Advance(time.Second)
	e.ExpireKeys()
	v, ok := e.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("expected v2 to survive, got %q %v", v, ok)
	}
	if ttl, _ := e.TTL("k"); ttl != NoTTL {
		t.Fatalf("expected no ttl, got %v", ttl)
	}
}

func TestSetOverwriteReplacesTTL(t *testing.T) {
	e, clock := newTestEngine()
	_ = e.Set("k", "v1", SetOptions{TTL: time.Hour})
	_ = e.Set("k", "v2", SetOptions{TTL: 10 * time.Millisecond})
	checkInvariants(t, e)
	clock.Advance(10 * time.Millisecond)
	if n := e.ExpireKeys(); n != 1 {
		t.Fatalf("expected the shorter ttl to apply, swept %d", n)
	}
	checkInvariants(t, e)
}

func TestDelExists(t *testing.T) {
	e, _ := newTestEngine()
	_ = e.Set("k", "v", SetOptions{TTL: time.Minute})
	if !e.Exists("k") {
		t.Fatalf("expected k to exist")
	}
	if !e.Del("k") {
		t.Fatalf("expected delete to report removal")
	}
	if e.Del("k") {
		t.Fatalf("second delete reported removal")
	}
	checkInvariants(t, e)
}

func TestExpireAndTTL(t *testing.T) {
	e, clock := newTestEngine()
	if e.Expire("missing", time.Second) {
		t.Fatalf("expire on a missing key succeeded")
	}
	if _, ok := e.TTL("missing"); ok {
		t.Fatalf("ttl on a missing key reported ok")
	}
	_ = e.Set("k", "v", SetOptions{})
	clock.Advance(time.Minute)
	if !e.Expire("k", 10*time.Second) {
		t.Fatalf("expire failed")
	}
	checkInvariants(t, e)
	clock.Advance(4 * time.Second)
	ttl, ok := e.TTL("k")
	if !ok || ttl != 6*time.Second {
		t.Fatalf("expected 6s left, got %v %v", ttl, ok)
	}
	if !e.Expire("k", 0) {
		t.Fatalf("expire 0 failed")
	}
	if e.Exists("k") {
		t.Fatalf("expire 0 should delete the key")
	}
	checkInvariants(t, e)
}

func TestKeysPrefix(t *testing.T) {
	e, clock := newTestEngine()
	_ = e.Set("user:2", "b", SetOptions{})
	_ = e.Set("user:1", "a", SetOptions{})
	_ = e.Set("user:3", "c", SetOptions{TTL: time.Millisecond})
	_ = e.Set("order:1", "x", SetOptions{})
	clock.Advance(time.Second)

	got := e.Keys("user:")
	if !reflect.DeepEqual(got, []string{"user:1", "user:2"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	if all := e.Keys(""); len(all) != 3 {
		t.Fatalf("expected 3 live keys, got %v", all)
	}
	checkInvariants(t, e)
}

func TestSweepSkipsFutureBuckets(t *testing.T) {
	e, clock := newTestEngine()
	for i := 0; i < 500; i++ {
		_ = e.Set(fmt.Sprintf("k%d", i), "v", SetOptions{TTL: time.Duration(i+1) * time.Millisecond})
	}
	checkInvariants(t, e)
	total := 0
	for step := 0; step < 500; step += 50 {
		clock.Advance(50 * time.Millisecond)
		total += e.ExpireKeys()
		checkInvariants(t, e)
		for i := 0; i < 500; i++ {
			if b := &e.expiry.buckets[i%int(expiryBuckets)]; len(b.deadlines) > 0 {
				for _, d := range b.deadlines {
					if d.Before(b.earliest) {
						t.Fatalf("bucket lower bound %v above deadline %v", b.earliest, d)
					}
				}
			}
		}
	}
	if total != 500 || e.Len() != 0 {
		t.Fatalf("expected all 500 swept, got %d (left %d)", total, e.Len())
	}
}

func TestCollectLeavesUnexpiredBuckets(t *testing.T) {
	var x expiryIndex
	now := time.Unix(100, 0)
	x.put("a", now.Add(time.Second))
	x.put("b", now.Add(-time.Second))
	got := x.collect(now)
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("expected [b], got %v", got)
	}
	if x.len() != 2 {
		t.Fatalf("collect must not remove, len %d", x.len())
	}
}
