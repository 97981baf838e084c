package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/webproxy/internal/objects"
	"github.com/looplj/webproxy/internal/webproxy"
)

// JSONError returns a JSON error response and adds the error to gin context for access logging.
func JSONError(c *gin.Context, status int, err error) {
	_ = c.Error(err)

	resp := objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	}

	var patternErr *webproxy.InvalidPatternError
	if errors.As(err, &patternErr) {
		resp.Error.Detail = patternErr
	}

	c.JSON(status, resp)
}
