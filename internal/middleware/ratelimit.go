package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/octobees/provider-directory/internal/config"
)

const limiterSweepThreshold = 10000

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SearchRateLimiter applies a token bucket per client IP. A zero config disables limiting.
func SearchRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Millisecond
	}
	retryAfter := strconv.Itoa(int(max(perRequest.Round(time.Second)/time.Second, 1)))

	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	allow := func(key string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()

		if len(clients) >= limiterSweepThreshold {
			for k, cl := range clients {
				if now.Sub(cl.lastSeen) > cfg.Interval {
					delete(clients, k)
				}
			}
		}

		cl, ok := clients[key]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Every(perRequest), cfg.Requests)}
			clients[key] = cl
		}
		cl.lastSeen = now
		return cl.limiter.AllowN(now, 1)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allow(c.RealIP(), time.Now()) {
				c.Response().Header().Set("Retry-After", retryAfter)
				return reject(c, http.StatusTooManyRequests, "search rate limit exceeded")
			}
			return next(c)
		}
	}
}
