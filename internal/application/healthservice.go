package application

import (
	"context"
	"log/slog"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the outcome of a health check.
type HealthStatus struct {
	Status   string
	Database string
	Time     time.Time
}

// Healthy reports whether every dependency is up.
func (h HealthStatus) Healthy() bool {
	return h.Status == "ok"
}

// HealthService checks the availability of the service's dependencies.
type HealthService struct {
	db      Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthService creates a HealthService. A nil db reports the database as
// not configured.
func NewHealthService(db Pinger, logger *slog.Logger) *HealthService {
	return &HealthService{db: db, timeout: 2 * time.Second, logger: logger}
}

// Check pings the database within a short timeout.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "ok", Database: "ok", Time: time.Now().UTC()}

	if s.db == nil {
		status.Database = "not configured"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "health check failed", "dependency", "database", "error", err)
		status.Status = "degraded"
		status.Database = "unavailable"
	}

	return status
}
