package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	OverflowConns   int32  `json:"overflow_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Stats returns connection pool statistics.
func (p *Pool) Stats() *PoolStats {
	stats := &PoolStats{OverflowConns: p.OverflowConns()}
	if p.pool == nil {
		return stats
	}
	stat := p.pool.Stat()
	stats.TotalConns = stat.TotalConns()
	stats.IdleConns = stat.IdleConns()
	stats.AcquiredConns = stat.AcquiredConns()
	stats.MaxConns = stat.MaxConns()
	stats.AcquireCount = stat.AcquireCount()
	stats.AcquireDuration = stat.AcquireDuration().String()
	return stats
}

// Pinger is the database surface the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats() *PoolStats
}

// HealthStatus describes the configuration-level state of the external
// collaborators reported next to the database check.
type HealthStatus struct {
	AzureAIConfigured     bool
	HostedModelConfigured bool
	HostedModelProvider   string
	Version               string
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string     `json:"status"`
	Database    string     `json:"database"`
	AzureAI     string     `json:"azure_ai"`
	HostedModel string     `json:"hosted_model"`
	Version     string     `json:"version"`
	Pool        *PoolStats `json:"pool,omitempty"`
}

// HealthHandler returns a handler for the health check endpoint. The response
// is always 200; a failing database is reported as "degraded".
func HealthHandler(p Pinger, hs HealthStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:      "healthy",
			Database:    "healthy",
			AzureAI:     configured(hs.AzureAIConfigured),
			HostedModel: configured(hs.HostedModelConfigured),
			Version:     hs.Version,
		}
		if hs.HostedModelConfigured && hs.HostedModelProvider != "" {
			resp.HostedModel = "configured (" + hs.HostedModelProvider + ")"
		}

		if err := p.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unhealthy: " + err.Error()
		}
		resp.Pool = p.Stats()

		return c.JSON(http.StatusOK, resp)
	}
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
