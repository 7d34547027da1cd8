package service

import "sync"

// missTracker counts in-progress misses per cache key. Overlapping misses are
// only observed here; each one still fetches upstream.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// begin registers a miss for key and returns how many misses for key are now in
// progress, including this one. done must be called once the fetch finishes.
func (t *missTracker) begin(key string) (n int, done func()) {
	t.mu.Lock()
	t.active[key]++
	n = t.active[key]
	t.mu.Unlock()

	var once sync.Once
	return n, func() {
		once.Do(func() { t.end(key) })
	}
}

func (t *missTracker) end(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[key] <= 1 {
		delete(t.active, key)
		return
	}
	t.active[key]--
}

func (t *missTracker) inProgress(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[key]
}
