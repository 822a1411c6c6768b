package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notebins/notebins/pkg/logger"
)

var startTime = time.Now()

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// RegisterHealth registers /health (liveness) and /ready. /ready returns 200 only
// when every check passes within timeout.
func RegisterHealth(rg gin.IRoutes, checks map[string]Check, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	rg.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
	})

	rg.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		ready := true
		deps := map[string]bool{}
		for _, name := range names {
			err := checks[name](ctx)
			deps[name] = err == nil
			if err != nil {
				logger.Warnf("readiness: %s unavailable: %v", name, err)
				ready = false
			}
		}

		uptime := time.Since(startTime).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})
}
