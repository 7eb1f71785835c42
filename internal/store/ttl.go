package store

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// IsExpired is the single expiry rule shared by reads and the sweep: a key is
// gone from its deadline onwards.
func IsExpired(deadline, now time.Time) bool {
	return !now.Before(deadline)
}

const expiryBuckets uint64 = 64

// expiryIndex maps key -> deadline, spread over buckets so a sweep can skip
// buckets that cannot hold anything expired yet.
type expiryIndex struct {
	buckets [expiryBuckets]deadlineBucket
	size    int
}

type deadlineBucket struct {
	deadlines map[string]time.Time
	// earliest is a lower bound on every deadline in the bucket. Removals leave
	// it stale; a sweep that scans the bucket tightens it again.
	earliest time.Time
}

func bucketIndex(key string) uint64 {
	return xxhash.Sum64String(key) & (expiryBuckets - 1)
}

func (x *expiryIndex) get(key string) (time.Time, bool) {
	b := &x.buckets[bucketIndex(key)]
	d, ok := b.deadlines[key]
	return d, ok
}

func (x *expiryIndex) put(key string, deadline time.Time) {
	b := &x.buckets[bucketIndex(key)]
	if b.deadlines == nil {
		b.deadlines = make(map[string]time.Time)
	}
	if _, ok := b.deadlines[key]; !ok {
		x.size++
	}
	b.deadlines[key] = deadline
	if len(b.deadlines) == 1 || deadline.Before(b.earliest) {
		b.earliest = deadline
	}
}

func (x *expiryIndex) remove(key string) {
	b := &x.buckets[bucketIndex(key)]
	if _, ok := b.deadlines[key]; !ok {
		return
	}
	delete(b.deadlines, key)
	x.size--
}

// collect returns every key whose deadline has passed. It does not remove
// them; the caller drops them from both maps.
func (x *expiryIndex) collect(now time.Time) []string {
	var out []string
	for i := range x.buckets {
		b := &x.buckets[i]
		if len(b.deadlines) == 0 || !IsExpired(b.earliest, now) {
			continue
		}
		var earliest time.Time
		first := true
		for k, d := range b.deadlines {
			if IsExpired(d, now) {
				out = append(out, k)
				continue
			}
			if first || d.Before(earliest) {
				earliest = d
				first = false
			}
		}
		b.earliest = earliest
	}
	return out
}

func (x *expiryIndex) len() int {
	return x.size
}
