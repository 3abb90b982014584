package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader carries the trace identifier in requests and responses.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key error payload builders read the
	// trace identifier from.
	TraceIDKey = "trace_id"
)

// requestContextKey is deliberately namespaced so handler code cannot
// collide with it through a casual c.Set.
const requestContextKey = "photoshare.request_context"

// RequestContext holds the request-scoped facts the access log and the
// auth flow care about. Subject is empty until RequireAuth resolves one.
type RequestContext struct {
	TraceID   string
	Subject   string
	IP        string
	UserAgent string
	StartedAt time.Time
}

// EnrichContext seeds every request with a trace identifier and the request
// context. Inbound trace headers are only honored when they parse as UUIDs;
// anything else is attacker-controlled text that would flow into logs.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			StartedAt: time.Now(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext returns the request context, or nil when EnrichContext
// did not run for this request.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return nil
}

// SetAuthenticatedSubject records the authenticated account on the request
// context so the access log can attribute the request.
func SetAuthenticatedSubject(c *gin.Context, subject string) {
	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.Subject = subject
	}
}
