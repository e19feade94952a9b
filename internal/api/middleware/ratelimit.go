package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/tablon/internal/api/problem"
	"github.com/Togather-Foundation/tablon/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierAdmin  RateLimitTier = "admin"
	// TierLogin guards register and login: a burst of N attempts refilling
	// over 15 minutes.
	TierLogin RateLimitTier = "login"
)

const (
	limiterIdleTTL      = 15 * time.Minute
	limiterCleanupEvery = 5 * time.Minute
)

// RateLimiter keeps one token bucket per (tier, client IP). A tier with a
// non-positive limit is unlimited.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limits   map[RateLimitTier]tierLimit
	proxies  []*net.IPNet
	env      string
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type tierLimit struct {
	every      time.Duration
	burst      int
	retryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, env string) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limits:  make(map[RateLimitTier]tierLimit),
		proxies: parseCIDRs(cfg.TrustedProxyCIDRs),
		env:     env,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	rl.setPerMinute(TierPublic, cfg.PublicPerMinute)
	rl.setPerMinute(TierAdmin, cfg.AdminPerMinute)
	if n := cfg.LoginPer15Minutes; n > 0 {
		every := 15 * time.Minute / time.Duration(n)
		rl.limits[TierLogin] = tierLimit{every: every, burst: n, retryAfter: every}
	}

	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) setPerMinute(tier RateLimitTier, perMinute int) {
	if perMinute <= 0 {
		return
	}
	rl.limits[tier] = tierLimit{
		every:      time.Minute / time.Duration(perMinute),
		burst:      perMinute,
		retryAfter: time.Minute,
	}
}

// Limit returns middleware enforcing the given tier.
func (rl *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := rl.limits[tier]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.allow(tier, limit, clientIP(r, rl.proxies)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(limit.retryAfter.Seconds())))
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests", nil, rl.env,
					problem.WithDetail("Demasiadas solicitudes, intenta más tarde"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(tier RateLimitTier, limit tierLimit, ip string) bool {
	key := string(tier) + ":" + ip

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(limit.every), limit.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Stop ends the background cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// clientIP only honours X-Forwarded-For / X-Real-IP when the direct peer is a
// configured trusted proxy.
func clientIP(r *http.Request, proxies []*net.IPNet) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	if isTrusted(remote, proxies) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remote
}

func isTrusted(ip string, proxies []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range proxies {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, value := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(value)); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}
