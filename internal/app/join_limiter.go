package app

import (
	"sync"
	"time"

	"github.com/dkeye/VoiceRelay/internal/domain"
)

// JoinLimiter caps how many JoinRoom frames one session may apply within a
// sliding window.
type JoinLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewJoinLimiter returns nil when limit is not positive; a nil limiter allows
// everything.
func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &JoinLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (l *JoinLimiter) Allow(sid domain.SessionID) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[sid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= l.limit {
		l.history[sid] = fresh
		return false
	}
	l.history[sid] = append(fresh, now)
	return true
}

// Forget drops the history of a finished session.
func (l *JoinLimiter) Forget(sid domain.SessionID) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.history, sid)
	l.mu.Unlock()
}
