package handler

import (
	"context"
	"net/http"

	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/api/response"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a new HealthHandler. cache may be nil when Redis
// is not configured.
func NewHealthHandler(db Pinger, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type cacheStatus struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
	Redis    cacheStatus    `json:"redis"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"
	data := healthData{Version: h.version}

	data.Database.Connected = h.db.Ping(r.Context()) == nil
	if !data.Database.Connected {
		status = "degraded"
	}
	if h.cache != nil {
		data.Redis.Configured = true
		data.Redis.Connected = h.cache.Ping(r.Context()) == nil
		if !data.Redis.Connected {
			status = "degraded"
		}
	}
	data.Status = status

	response.Success(w, http.StatusOK, data, requestID)
}
