package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/webproxy/internal/build"
)

type SystemHandlers struct{}

func NewSystemHandlers() *SystemHandlers {
	return &SystemHandlers{}
}

func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"build":  build.GetBuildInfo(),
	})
}
