package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long an unused client limiter is kept.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one limiter per client key and evicts idle ones.
type limiterStore struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	cfg       RateLimitConfig
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &limiterStore{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.cfg.IdleTTL {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > s.cfg.IdleTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RateLimit limits requests per client IP. A non-positive rate disables it.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if cfg.RequestsPerSecond <= 0 {
			return next
		}
		return func(c echo.Context) error {
			lim := store.get(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			r := lim.ReserveN(store.now(), 1)
			if !r.OK() {
				h.Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			if delay := r.DelayFrom(store.now()); delay > 0 {
				r.CancelAt(store.now())
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
