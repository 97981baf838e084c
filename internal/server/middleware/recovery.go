package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/objects"
)

// Recovery recovers from handler panics and answers 500 with a JSON error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error(c.Request.Context(), "panic recovered",
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Any("panic", recovered),
		)

		c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusInternalServerError),
				Message: fmt.Sprintf("internal error: %v", recovered),
			},
		})
	})
}
