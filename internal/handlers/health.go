package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Connections int               `json:"connections"`
	Services    map[string]string `json:"services"`
}

// Health reports liveness of the server and its backing services.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	services := map[string]string{}
	status := "healthy"

	if err := h.store.Ping(ctx); err != nil {
		services["database"] = "down"
		status = "degraded"
	} else {
		services["database"] = "up"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			services["redis"] = "down"
			status = "degraded"
		} else {
			services["redis"] = "up"
		}
	}

	connections := 0
	if h.hub != nil {
		connections = h.hub.Registry().Len()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	h.JSON(w, code, HealthResponse{
		Status:      status,
		Version:     version,
		Connections: connections,
		Services:    services,
	})
}
