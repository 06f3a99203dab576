package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmerrifield20/starnotary/internal/health"
)

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	status func() health.Status
	height func() (uint64, bool)
}

// NewHealthHandler creates a HealthHandler. status may be nil when no
// background checker runs.
func NewHealthHandler(status func() health.Status, height func() (uint64, bool)) *HealthHandler {
	return &HealthHandler{status: status, height: height}
}

// Register mounts the health route.
func (h *HealthHandler) Register(rg gin.IRoutes) {
	rg.GET("/healthz", h.Healthz)
}

// Healthz reports 200 while the ledger is healthy and 503 once the
// background checker has marked it degraded.
func (h *HealthHandler) Healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if height, ok := h.height(); ok {
		resp["height"] = height
	}
	if h.status == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	st := h.status()
	resp["ledger"] = st
	if !st.Healthy {
		resp["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
