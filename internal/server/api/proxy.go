package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/objects"
	"github.com/looplj/webproxy/internal/server/biz"
	"github.com/looplj/webproxy/internal/webproxy"
)

type ProxyHandlersParams struct {
	fx.In

	ProxyService *biz.ProxyService
}

type ProxyHandlers struct {
	ProxyService *biz.ProxyService
}

func NewProxyHandlers(params ProxyHandlersParams) *ProxyHandlers {
	return &ProxyHandlers{
		ProxyService: params.ProxyService,
	}
}

// Resolve answers GET /v1/proxy?url=<destination>.
func (h *ProxyHandlers) Resolve(c *gin.Context) {
	destination := c.Query("url")
	if destination == "" {
		JSONError(c, http.StatusBadRequest, errors.New("query parameter url is required"))
		return
	}

	resolution, err := h.ProxyService.Resolve(c.Request.Context(), destination)
	if err != nil {
		JSONError(c, statusOf(err), err)
		return
	}

	c.JSON(http.StatusOK, resolution)
}

// Probe answers GET /v1/proxy/probe?url=<destination>.
func (h *ProxyHandlers) Probe(c *gin.Context) {
	destination := c.Query("url")
	if destination == "" {
		JSONError(c, http.StatusBadRequest, errors.New("query parameter url is required"))
		return
	}

	result, err := h.ProxyService.Probe(c.Request.Context(), destination)
	if err != nil {
		JSONError(c, statusOf(err), err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProxyHandlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.ProxyService.Snapshot())
}

func (h *ProxyHandlers) UpdateBypassList(c *gin.Context) {
	var req objects.UpdateBypassListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	snapshot, err := h.ProxyService.UpdateBypassList(c.Request.Context(), req.Patterns, req.Globs)
	if err != nil {
		JSONError(c, statusOf(err), err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

type updateBypassOnLocalRequest struct {
	BypassOnLocal *bool `json:"bypass_on_local" binding:"required"`
}

func (h *ProxyHandlers) UpdateBypassOnLocal(c *gin.Context) {
	var req updateBypassOnLocalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, h.ProxyService.SetBypassOnLocal(c.Request.Context(), *req.BypassOnLocal))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, biz.ErrInvalidDestination),
		errors.Is(err, webproxy.ErrInvalidPattern),
		errors.Is(err, webproxy.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Refresh re-runs proxy discovery and answers the resulting configuration.
func (h *ProxyHandlers) Refresh(c *gin.Context) {
	snapshot, err := h.ProxyService.Refresh(c.Request.Context())
	if err != nil {
		JSONError(c, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
