package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"golang.org/x/time/rate"
)

// Throttle is a per-IP token bucket for public write endpoints such as
// member and institution registration.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     rate.Limit
	burst   int
	idle    time.Duration
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows rps requests per second per IP with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	return &Throttle{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
	}
}

// Allow reports whether ip may make another request now.
func (t *Throttle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	c, ok := t.clients[ip]
	if !ok {
		c = &client{lim: rate.NewLimiter(t.rps, t.burst)}
		t.clients[ip] = c
	}
	c.lastSeen = now

	// Sweep opportunistically so the map tracks only recent callers.
	if len(t.clients) > 1024 {
		for k, v := range t.clients {
			if now.Sub(v.lastSeen) > t.idle {
				delete(t.clients, k)
			}
		}
	}
	return c.lim.AllowN(now, 1)
}

// Middleware rejects over-limit callers with 429.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			jsonutil.Error(w, r, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
