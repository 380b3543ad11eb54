package utils

import (
	"sync"
	"time"
)

// Limiter allows at most limit hits per key inside a sliding window.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	windows map[string]*hitWindow
}

type hitWindow struct {
	hits []time.Time
}

// trim drops hits older than the window and returns how many remain.
func (w *hitWindow) trim(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
	return len(w.hits)
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{window: window, limit: limit, windows: make(map[string]*hitWindow)}
}

// Allow records a hit for key unless the key already reached the limit. A limit of zero disables limiting.
func (l *Limiter) Allow(key string, now time.Time) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		w = &hitWindow{}
		l.windows[key] = w
	}
	if w.trim(now, l.window) >= l.limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// Count returns the hits key has inside the window ending at now.
func (l *Limiter) Count(key string, now time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[key]
	if w == nil {
		return 0
	}
	return w.trim(now, l.window)
}

// Prune drops keys with no hits left in their window.
func (l *Limiter) Prune(now time.Time) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.trim(now, l.window) == 0 {
			delete(l.windows, key)
		}
	}
}
