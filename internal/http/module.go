package http

import (
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own HTTP routes. The
// router iterates over App.Modules and calls RegisterRoutes on each,
// so it never needs to know individual endpoints.
type Module interface {
	// Name identifies the module in startup logs.
	Name() string
	// RegisterRoutes mounts the module's endpoints using the shared
	// groups and middleware in ctx.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups and shared middleware a module
// can attach to.
type RouterContext struct {
	// Engine is the root gin engine, for modules that need raw access.
	Engine *gin.Engine
	// V1 is the public /api/v1 group.
	V1 *gin.RouterGroup
	// Protected is the authenticated group under /api/v1.
	Protected *gin.RouterGroup
	// Admin is the admin-only group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config exposes the JWT settings for modules that issue tokens.
	Config config.JWTConfig
	// AuthMiddleware authenticates a request without binding it to a group.
	AuthMiddleware gin.HandlerFunc
	// AuthRateLimiter is the stricter per-IP limiter for credential routes.
	AuthRateLimiter *httpkit.AuthRateLimiter
}
