package health

import (
	"context"
	"runtime"
	"time"

	"solhome-backend/internal/hub"
	"solhome-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// DepStatus is the per-dependency health entry.
type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// Result is the health payload.
type Result struct {
	Status       string               `json:"status"`
	GoVersion    string               `json:"goVersion"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

// Handlers serves the health endpoint.
type Handlers struct {
	Rdb *redis.Client
	DB  DBPinger
	Hub hub.Discoverer
}

// JSON reports the status of the database, Redis and the hub.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := Result{
		Status:       "ok",
		GoVersion:    runtime.Version(),
		Dependencies: map[string]DepStatus{},
	}

	result.Dependencies["database"] = ping(func() error {
		if h.DB == nil {
			return errDisconnected
		}
		return h.DB.Ping()
	})
	result.Dependencies["redis"] = ping(func() error {
		if h.Rdb == nil {
			return errDisconnected
		}
		return h.Rdb.Ping(context.Background()).Err()
	})
	result.Dependencies["hub"] = ping(func() error {
		if h.Hub == nil {
			return errDisconnected
		}
		connected, _ := h.Hub.Status(context.Background())
		if !connected {
			return errDisconnected
		}
		return nil
	})

	for _, dep := range result.Dependencies {
		if dep.Status != "connected" {
			result.Status = "degraded"
		}
	}
	return response.Success(c, "Health fetched successfully", result, nil)
}

var errDisconnected = fiber.NewError(fiber.StatusServiceUnavailable, "disconnected")

func ping(f func() error) DepStatus {
	start := time.Now()
	if err := f(); err != nil {
		return DepStatus{Status: "disconnected", PingMs: nil}
	}
	return DepStatus{Status: "connected", PingMs: time.Since(start).Milliseconds()}
}
