package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// sweepEvery bounds how often the throttle walks its bucket map looking
// for windows that have already lapsed.
const sweepEvery = 256

// sessionThrottle admits at most perWindow hits per key within a fixed
// window. It backs the designer session-creation limit, where the key is
// the shopper UID.
type sessionThrottle struct {
	perWindow int
	window    time.Duration
	now       func() time.Time

	mu         sync.Mutex
	buckets    map[string]*throttleBucket
	admissions int
}

type throttleBucket struct {
	openedAt time.Time
	hits     int
}

func newSimpleRateLimiter(perWindow int, window time.Duration, now func() time.Time) rateLimiter {
	if perWindow <= 0 || window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &sessionThrottle{
		perWindow: perWindow,
		window:    window,
		now:       now,
		buckets:   make(map[string]*throttleBucket),
	}
}

func (t *sessionThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}
	at := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket := t.buckets[key]
	if bucket == nil {
		bucket = &throttleBucket{}
		t.buckets[key] = bucket
	}
	if bucket.hits == 0 || at.Sub(bucket.openedAt) >= t.window {
		bucket.openedAt = at
		bucket.hits = 0
	}
	if bucket.hits >= t.perWindow {
		return false
	}
	bucket.hits++

	t.admissions++
	if t.admissions >= sweepEvery {
		t.admissions = 0
		t.sweepLocked(at)
	}
	return true
}

func (t *sessionThrottle) sweepLocked(at time.Time) {
	for key, bucket := range t.buckets {
		if at.Sub(bucket.openedAt) >= t.window {
			delete(t.buckets, key)
		}
	}
}
