package httpapi

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// clientLimiters hands out one token bucket per client address.
type clientLimiters struct {
	limit rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiters{limit: rate.Limit(perSecond), burst: burst, m: map[string]*rate.Limiter{}}
}

func (c *clientLimiters) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.m[key]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.m[key] = l
	}
	return l
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// wrap rejects requests over the client's budget with E_RATE_LIMIT. A
// non-positive rate disables limiting.
func (c *clientLimiters) wrap(next http.Handler, onLimited func(http.ResponseWriter)) http.Handler {
	if c == nil || c.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !c.get(clientKey(r)).Allow() {
			onLimited(rw)
			return
		}
		next.ServeHTTP(rw, r)
	})
}
