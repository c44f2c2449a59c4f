package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/tenantjwt/internal/application/dto"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// HealthCheckFunc reports the health of one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks  map[string]HealthCheckFunc
	timeout time.Duration
	log     logger.Logger
}

// NewHealthHandler creates a new HealthHandler. Only enabled dependencies should be passed in.
func NewHealthHandler(checks map[string]HealthCheckFunc, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		log:     log.WithComponent("HealthHandler"),
	}
}

// LivenessCheck reports that the process is serving.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// ReadinessCheck runs every dependency check concurrently.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := h.performChecks(ctx)
	resp := dto.HealthResponse{Status: "ok", Components: results}
	httpStatus := http.StatusOK
	for name, status := range results {
		if status != "ok" {
			resp.Status = "unavailable"
			httpStatus = http.StatusServiceUnavailable
			h.log.Warn(ctx, "Dependency unhealthy", logger.String("component", name), logger.String("status", status))
		}
	}
	c.JSON(httpStatus, resp)
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return results
}
