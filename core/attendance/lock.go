package attendance

import (
	"sync"
	"time"
)

// scanLock drops repeated scans of the same code within window (a student holding the card in
// front of the camera).
type scanLock struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newScanLock(window time.Duration) *scanLock {
	return &scanLock{window: window, seen: make(map[string]time.Time)}
}

// acquire returns false if id was already scanned less than window ago.
func (l *scanLock) acquire(id string, now time.Time) bool {
	if l.window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, t := range l.seen {
		if now.Sub(t) >= l.window {
			delete(l.seen, k)
		}
	}
	if _, locked := l.seen[id]; locked {
		return false
	}
	l.seen[id] = now
	return true
}
