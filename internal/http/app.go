// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router actually reads:
// HTTP serving options plus the JWT settings for the auth middleware.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is what the health endpoint pings, normally the database
// pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App bundles everything the router needs to serve the portal. The
// composition root in cmd/api builds one and hands it to router.New.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	// Modules are mounted in order; each registers its own routes.
	Modules []Module
}
