package roomstore

import (
	"sync"
	"time"
)

const defaultFallbackCapacity = 10000

// fallback is the bounded in-process cache behind the degraded mode.
// Each entry carries its own expiry timer; overwriting a key stops the
// old timer first so a stale timer can never delete a fresh value.
type fallback struct {
	mu      sync.Mutex
	max     int
	entries map[string]*fbEntry
	order   []string // insertion order for capacity eviction
}

type fbEntry struct {
	value string
	timer *time.Timer
	gen   uint64
}

func newFallback(max int) *fallback {
	return &fallback{max: max, entries: make(map[string]*fbEntry)}
}

func (f *fallback) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

func (f *fallback) set(key, value string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := f.entries[key]; ok {
		e.timer.Stop()
		e.value = value
		e.gen++
		e.timer = f.expiryTimer(key, e.gen, ttl)
		return
	}

	for len(f.entries) >= f.max && len(f.order) > 0 {
		oldest := f.order[0]
		f.order = f.order[1:]
		if e, ok := f.entries[oldest]; ok {
			e.timer.Stop()
			delete(f.entries, oldest)
		}
	}

	e := &fbEntry{value: value}
	e.timer = f.expiryTimer(key, e.gen, ttl)
	f.entries[key] = e
	f.order = append(f.order, key)
}

// expiryTimer must be called with f.mu held. The generation check keeps a
// timer that fired during an overwrite from deleting the fresh value: Stop
// can miss a callback that is already blocked on the mutex.
func (f *fallback) expiryTimer(key string, gen uint64, ttl time.Duration) *time.Timer {
	return time.AfterFunc(ttl, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if e, ok := f.entries[key]; ok && e.gen == gen {
			delete(f.entries, key)
		}
	})
}

func (f *fallback) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fallback) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, e := range f.entries {
		e.timer.Stop()
		delete(f.entries, k)
	}
	f.order = nil
}
