package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragreader/internal/logger"
)

// requestIDKey is the key used to store the request ID in a context.
type requestIDKey struct{}

// RequestIDMiddleware reads X-Request-Id or generates one, stores it in both
// the gin and the request context, echoes it back and logs the request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if strings.TrimSpace(rid) == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, rid))
		c.Writer.Header().Set("X-Request-Id", rid)

		start := time.Now()
		c.Next()

		logger.Info("[req] id=%s method=%s path=%s session=%s status=%d latency=%s",
			rid, c.Request.Method, c.Request.URL.Path, c.GetString(sessionKey), c.Writer.Status(), time.Since(start))
	}
}

// GetRequestID extracts the request ID from a context.
func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

const (
	sessionHeader = "X-Session-Id"
	sessionKey    = "session"
	maxSessionLen = 64
)

// SessionMiddleware resolves the session from X-Session-Id. Names are limited
// to letters, digits, '-' and '_' because they become directory names.
func SessionMiddleware(defaultSession string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := strings.TrimSpace(c.GetHeader(sessionHeader))
		if s == "" {
			s = defaultSession
		}
		if !validSession(s) {
			abortDetail(c, 400, "Invalid X-Session-Id header.")
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func validSession(s string) bool {
	if len(s) == 0 || len(s) > maxSessionLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
