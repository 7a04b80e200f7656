// Package catalog provides the service catalog bounded context module.
// It manages the categories of work the company offers.
package catalog

import (
	"contractor_portal_backend/internal/catalog/handler"
	"contractor_portal_backend/internal/catalog/repository"
	"contractor_portal_backend/internal/catalog/service"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the catalog module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Repository returns the repository for cross-module lookups.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public browsing endpoints
	ctx.V1.GET("/services", m.handler.ListActive)
	ctx.V1.GET("/services/:code", m.handler.GetByCode)

	// Admin-only management endpoints
	adminGroup := ctx.Admin.Group("/services")
	adminGroup.GET("", m.handler.List)
	adminGroup.POST("", m.handler.Create)
	adminGroup.PUT("/:id", m.handler.Update)
	adminGroup.PATCH("/:id/active", m.handler.ToggleActive)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
