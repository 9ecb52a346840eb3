package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports liveness only, with no dependency probes.
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Version: version,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

// HealthCheckWithDeps probes each named dependency and reports 503 when any
// probe fails, so load balancers stop routing to a degraded instance.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make(map[string]string, len(checks))
		healthy := true

		for name, probe := range checks {
			if err := probe(); err != nil {
				results[name] = "unhealthy: " + err.Error()
				healthy = false
				continue
			}
			results[name] = "healthy"
		}

		resp := HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Version: version,
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
			Checks:  results,
		}
		code := http.StatusOK
		if !healthy {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, resp)
	}
}
