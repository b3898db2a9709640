package handler

import (
	"context"
	"log"
	"time"

	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]HealthCheck
	started time.Time
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, started: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	dependencies := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.Printf("Health check %s failed: %v", name, err)
			dependencies[name] = "down"
			status = "degraded"
			continue
		}
		dependencies[name] = "up"
	}

	report := gin.H{
		"status":       status,
		"dependencies": dependencies,
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"cpu_percent":  utils.GetCPUUsage(200 * time.Millisecond),
	}
	if status != "ok" {
		utils.ServiceUnavailable(c, "One or more dependencies are unavailable", report)
		return
	}
	utils.Success(c, report)
}
