package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a named dependency health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type namedCheck struct {
	name   string
	pinger Pinger
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks []namedCheck
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// AddCheck registers a dependency for the readiness probe.
func (h *HealthHandler) AddCheck(name string, pinger Pinger) {
	h.checks = append(h.checks, namedCheck{name: name, pinger: pinger})
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)
}

func (h *HealthHandler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.pinger.Ping(ctx); err != nil {
			results[check.name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}
