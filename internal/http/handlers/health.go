package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "loantracker-backend"

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pinger Pinger
}

func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Health is the liveness probe: the process is up, nothing more.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
}

// Ready is the readiness probe: the database must answer within the probe
// window for the instance to receive traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbState := "ok"
	status := http.StatusOK
	if h.pinger == nil || h.pinger.Ping(ctx) != nil {
		dbState = "error"
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"status": "ready", "database": dbState}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	c.JSON(status, body)
}
