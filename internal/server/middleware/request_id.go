package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/looplj/webproxy/internal/log"
)

const DefaultRequestIDHeader = "X-Request-Id"

// WithRequestID attaches a request ID to the request context so later log entries carry it.
// An ID supplied by the caller in header is reused.
func WithRequestID(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultRequestIDHeader
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header(header, requestID)

		ctx := log.WithFields(c.Request.Context(), log.String("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
