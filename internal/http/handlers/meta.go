package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env     string
	version string
	started time.Time
}

func NewMetaHandler(env, version string) *MetaHandler {
	return &MetaHandler{env: env, version: version, started: time.Now().UTC()}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "LoanTracker Backend",
		"version": h.version,
		"env":     h.env,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
