package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/logger"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/security"
)

const (
	rateLimitProblemType  = "https://auth.photoshare.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the identifier a limit is scoped by, usually the
// client IP.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule caps how often one identifier may hit a credential endpoint
// inside a sliding window. Name spaces the throttle keys, so the login and
// signup budgets never bleed into each other.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter throttles the endpoints an attacker would hammer: login,
// signup, refresh and password reset. It fails open when the throttle store
// is unreachable; locking everyone out of login because Redis blinked is
// worse than letting a burst through.
type RateLimiter struct {
	throttle port.AttemptThrottle
	logger   *zap.Logger
	limited  func()
	now      func() time.Time
}

type ruleResult struct {
	rule     RateLimitRule
	decision port.ThrottleDecision
}

// ProblemDetails is the RFC 9457 payload returned for throttled requests.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(throttle port.AttemptThrottle, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}

	return &RateLimiter{
		throttle: throttle,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// WithLimitedCounter registers a callback invoked for every rejected request.
func (rl *RateLimiter) WithLimitedCounter(fn func()) *RateLimiter {
	rl.limited = fn
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Every
// rule spends one attempt per request; the most restrictive decision wins
// the X-RateLimit headers.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.throttle == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *ruleResult

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			// Identifiers are client addresses; hash them so the store never
			// holds raw IPs.
			key := rule.Name + ":" + security.HashToken(identifier)

			decision, err := rl.throttle.Take(c.Request.Context(), key, rule.Limit, rule.Window, now)
			if err != nil {
				rl.logger.Warn("attempt throttle unavailable, letting request through",
					zap.String("rule", rule.Name),
					zap.String("identifier", logger.MaskIP(identifier)),
					zap.Error(err))
				continue
			}

			res := ruleResult{rule: rule, decision: decision}
			if tightest == nil || tighterThan(res, *tightest) {
				snapshot := res
				tightest = &snapshot
			}

			if !decision.Allowed {
				rl.applyHeaders(c, res, now)
				rl.respondRateLimited(c, res, now)
				return
			}
		}

		if tightest != nil {
			rl.applyHeaders(c, *tightest, now)
		}

		c.Next()
	}
}

func tighterThan(candidate, current ruleResult) bool {
	if !candidate.decision.Allowed && current.decision.Allowed {
		return true
	}

	if candidate.decision.Allowed == current.decision.Allowed {
		if candidate.decision.Remaining < current.decision.Remaining {
			return true
		}
		if candidate.decision.Remaining == current.decision.Remaining &&
			candidate.decision.ResetAt.Before(current.decision.ResetAt) {
			return true
		}
	}

	return false
}

func retryAfterSeconds(res ruleResult, now time.Time) int {
	seconds := int(math.Ceil(res.decision.ResetAt.Sub(now).Seconds()))
	if seconds < 0 {
		seconds = 0
	}
	return seconds
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, res ruleResult, now time.Time) {
	remaining := res.decision.Remaining
	if remaining < 0 {
		remaining = 0
	}

	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.decision.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.decision.ResetAt.Unix(), 10))

	if !res.decision.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retryAfterSeconds(res, now)))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, res ruleResult, now time.Time) {
	if rl.limited != nil {
		rl.limited()
	}

	retrySeconds := retryAfterSeconds(res, now)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many attempts. Try again in " + strconv.Itoa(retrySeconds) + " seconds.",
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, problem)
}
