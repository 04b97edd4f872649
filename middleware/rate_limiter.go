package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Dr-xiaoming/tasks/utils"
)

// In-memory sliding-window rate limiters with trusted-proxy support.
// Designed to be replaced by Redis later.

type timestamps []int64 // unix nanos

// IPRateLimiter implements per-IP sliding-window counters.
type IPRateLimiter struct {
	max         int
	window      time.Duration
	mu          sync.Mutex
	state       map[string]timestamps
	trustedCIDR []string
}

func NewIPRateLimiter(maxReq int, window time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		max:    maxReq,
		window: window,
		state:  make(map[string]timestamps),
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		if !l.allow(ip) {
			utils.WriteError(w, http.StatusTooManyRequests, utils.CodeConflict, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) allow(key string) bool {
	now := time.Now().UnixNano()
	cutoff := now - l.window.Nanoseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.state[key]
	kept := ts[:0]
	for _, t := range ts {
		if t >= cutoff {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.state[key] = kept
		return false
	}
	l.state[key] = append(kept, now)
	return true
}

func (l *IPRateLimiter) cleanupLoop() {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for range tick.C {
		cutoff := time.Now().Add(-l.window).UnixNano()
		l.mu.Lock()
		for k, ts := range l.state {
			if len(ts) == 0 || ts[len(ts)-1] < cutoff {
				delete(l.state, k)
			}
		}
		l.mu.Unlock()
	}
}

// UserRateLimiter applies per-user sliding windows, with separate budgets
// for reads and writes. Unauthenticated requests fall back to the IP key.
type UserRateLimiter struct {
	read  *IPRateLimiter
	write *IPRateLimiter
}

func NewUserRateLimiter(readMax, writeMax int, windowSeconds int) *UserRateLimiter {
	window := time.Duration(windowSeconds) * time.Second
	return &UserRateLimiter{
		read:  NewIPRateLimiter(readMax, window),
		write: NewIPRateLimiter(writeMax, window),
	}
}

func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIPGeneric(r, nil)
		if uid, ok := utils.GetUserID(r); ok && uid != 0 {
			key = "u:" + strconvUint(uid)
		}
		limiter := l.read
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			limiter = l.write
		}
		if !limiter.allow(key) {
			utils.WriteError(w, http.StatusTooManyRequests, utils.CodeConflict, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func strconvUint(v uint) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when the remote addr is
// inside one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteHost = r.RemoteAddr
	}
	if len(trustedCIDR) == 0 {
		return remoteHost
	}
	trusted := false
	remoteIP := net.ParseIP(remoteHost)
	for _, c := range trustedCIDR {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.Contains(c, "/") {
			if _, ipnet, err := net.ParseCIDR(c); err == nil && remoteIP != nil && ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
		} else if c == remoteHost {
			trusted = true
			break
		}
	}
	if !trusted {
		return remoteHost
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	return remoteHost
}
