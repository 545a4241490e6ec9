package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/plantdoc/internal/logger"
)

const healthTimeout = 2 * time.Second

// HostStatsFunc returns host memory statistics.
type HostStatsFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

func virtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

// HealthCheck reports service status. It responds 503 when the database
// is unreachable.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
	defer cancel()

	status, code := "healthy", http.StatusOK
	database := map[string]any{"status": "connected"}
	if err := c.DS.Ping(reqCtx); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
		database["status"] = "disconnected"
		c.log.Warn("health check database ping failed", logger.Error(err))
	}

	uptime := time.Since(c.startTime)
	response := map[string]any{
		"status":         status,
		"version":        c.BuildInfo.Version(),
		"build_date":     c.BuildInfo.BuildDate(),
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"database":       database,
		"goroutines":     runtime.NumGoroutine(),
	}

	if c.Models != nil {
		response["models"] = map[string]any{
			"plants": c.Models.Plants(),
			"loaded": c.Models.Loaded(),
		}
	}

	if c.hostStats != nil {
		if vm, err := c.hostStats(reqCtx); err == nil {
			response["memory"] = map[string]any{
				"total_mb":     vm.Total / (1 << 20),
				"available_mb": vm.Available / (1 << 20),
				"used_percent": vm.UsedPercent,
			}
		} else {
			c.log.Debug("host memory stats unavailable", logger.Error(err))
		}
	}

	return ctx.JSON(code, response)
}
