package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/looplj/webproxy/internal/log"
)

// AccessLog returns a middleware that logs access information for each request.
// Failed requests are logged at error level, the rest only when debug logging is enabled.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		status := c.Writer.Status()
		failed := status >= 400 || len(errMsgs) > 0

		if !failed && !log.DebugEnabled(ctx) {
			return
		}

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Strings("errors", errMsgs))
		}

		if failed {
			log.Error(ctx, "[ACCESS]", fields...)
			return
		}

		log.Debug(ctx, "[ACCESS]", fields...)
	}
}
