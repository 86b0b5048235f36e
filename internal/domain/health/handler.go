// Package health serves the liveness report at /health.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/response"
)

const checkTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// HospitalCounter reports how many hospitals are registered.
type HospitalCounter interface {
	CountHospitals(ctx context.Context) (int, error)
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

type Report struct {
	Status           string    `json:"status"`
	Database         string    `json:"database"`
	Cache            string    `json:"cache"`
	HospitalsCount   int       `json:"hospitals_count"`
	WebsocketClients int       `json:"websocket_clients"`
	Timestamp        time.Time `json:"timestamp"`
}

type Handler struct {
	database  Pinger
	cache     Pinger
	hospitals HospitalCounter
	clients   ClientCounter
	pool      *pgxpool.Pool
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHandler wires the checks. pool may be nil, in which case /health/db is
// not registered.
func NewHandler(database, cache Pinger, hospitals HospitalCounter, clients ClientCounter, pool *pgxpool.Pool, logger zerolog.Logger) *Handler {
	return &Handler{
		database: database, cache: cache, hospitals: hospitals, clients: clients,
		pool: pool, logger: logger, now: time.Now,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	if h.pool != nil {
		e.GET("/health/db", db.HealthHandler(h.pool))
	}
}

// Health returns 503 when the database is unreachable. A cache outage only
// degrades the report.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	r := Report{Status: "healthy", Database: "connected", Cache: "connected", Timestamp: h.now().UTC()}
	if h.clients != nil {
		r.WebsocketClients = h.clients.ClientCount()
	}

	if err := h.database.Ping(ctx); err != nil {
		h.logger.Error().Err(err).Msg("health check: database unreachable")
		r.Status, r.Database = "unhealthy", "disconnected"
		return c.JSON(http.StatusServiceUnavailable, response.Envelope{
			Success: false,
			Message: "service unhealthy",
			Data:    r,
		})
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check: cache unreachable")
			r.Status, r.Cache = "degraded", "disconnected"
		}
	} else {
		r.Cache = "disabled"
	}
	if h.hospitals != nil {
		n, err := h.hospitals.CountHospitals(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("health check: hospital count failed")
		}
		r.HospitalsCount = n
	}
	return response.OK(c, "service "+r.Status, r)
}
