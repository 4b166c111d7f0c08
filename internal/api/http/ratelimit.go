package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// rateLimiter enforces a rolling-window request quota per user.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	hits   map[uuid.UUID][]time.Time
	now    func() time.Time
	lastGC time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[uuid.UUID][]time.Time),
		now:    time.Now,
	}
}

// allow records one hit and reports whether the user is within quota.
func (rl *rateLimiter) allow(userID uuid.UUID) bool {
	if rl.limit <= 0 {
		return true
	}
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.hits[userID]
	kept := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.hits[userID] = kept
		return false
	}
	rl.hits[userID] = append(kept, now)
	rl.gcLocked(now, cutoff)
	return true
}

func (rl *rateLimiter) gcLocked(now, cutoff time.Time) {
	if now.Sub(rl.lastGC) < rl.window {
		return
	}
	rl.lastGC = now
	for userID, recent := range rl.hits {
		live := false
		for _, t := range recent {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.hits, userID)
		}
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(authUserID(r.Context())) {
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
