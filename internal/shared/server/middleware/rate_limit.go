package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	pruneThreshold        = 10000
)

// RateLimitRule allows Max requests per caller in each fixed Window.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

// RuleForWindow builds a rule; a non-positive max or window disables it.
func RuleForWindow(max int, window time.Duration) RateLimitRule {
	if max <= 0 || window <= 0 {
		return RateLimitRule{}
	}
	return RateLimitRule{Max: max, Window: window}
}

func (r RateLimitRule) enabled() bool { return r.Max > 0 && r.Window > 0 }

// RateLimitConfig selects a rule per request. GroupFor picks the rule name
// and falls back to DefaultGroup; requests for which Skip returns true are
// never counted.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Skip         func(*gin.Context) bool
	Limiter      *RateLimiter
}

// RateLimiter holds per-key window counters. One limiter may back several
// middlewares; keys include the group name.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
	span  time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time left until the current window ends.
	Reset time.Duration
}

// NewRateLimiter returns an empty limiter. now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{windows: make(map[string]*window), now: now}
}

// RateLimit counts requests per caller (user id when authenticated, else
// client IP) and group, answering 429 RATE_LIMITED once a window is spent.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		if cfg.Skip != nil && cfg.Skip(c) {
			c.Next()
			return
		}
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || !rule.enabled() {
			c.Next()
			return
		}

		caller := "ip:" + c.ClientIP()
		if id := UserIDFromContext(c); id != 0 {
			caller = "user:" + strconv.FormatInt(id, 10)
		}
		d := cfg.Limiter.Allow(group+"|"+caller, rule)

		resetSec := int((d.Reset + time.Second - 1) / time.Second)
		c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(resetSec))
		if d.Allowed {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(max(resetSec, 1)))
		respond.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Demasiadas solicitudes, intente más tarde", gin.H{
			"retryAfterMs": max(d.Reset.Milliseconds(), 1),
		})
	}
}

// Allow counts one request against key and reports whether it fits rule.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) Decision {
	if l == nil || !rule.enabled() {
		return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max}
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > pruneThreshold {
		for k, w := range l.windows {
			if now.Sub(w.start) >= w.span {
				delete(l.windows, k)
			}
		}
	}
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= rule.Window {
		w = &window{start: now, span: rule.Window}
		l.windows[key] = w
	}
	reset := w.start.Add(rule.Window).Sub(now)
	if w.count >= rule.Max {
		return Decision{Limit: rule.Max, Reset: reset}
	}
	w.count++
	return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max - w.count, Reset: reset}
}
