// Package quotations provides the quotation bounded context module.
package quotations

import (
	"contractor_portal_backend/internal/events"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/internal/quotations/handler"
	"contractor_portal_backend/internal/quotations/repository"
	"contractor_portal_backend/internal/quotations/service"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the quotations bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the quotations module with all its dependencies.
func NewModule(pool *pgxpool.Pool, requests service.RequestReader, cfg config.GSTConfig, bus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, requests, cfg, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "quotations"
}

// Repository returns the repository for cross-module lookups.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts quotation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/requests/:id/quotations", m.handler.ListByRequest)
	ctx.Protected.GET("/quotations/:id", m.handler.Get)
	ctx.Protected.POST("/quotations/:id/approve", m.handler.Approve)
	ctx.Protected.POST("/quotations/:id/reject", m.handler.Reject)

	ctx.Admin.POST("/quotations", m.handler.Create)
	ctx.Admin.DELETE("/quotations/:id", m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
