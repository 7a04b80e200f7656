// Package progress provides the work progress bounded context module.
package progress

import (
	"contractor_portal_backend/internal/adapters/storage"
	"contractor_portal_backend/internal/events"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/internal/progress/handler"
	"contractor_portal_backend/internal/progress/repository"
	"contractor_portal_backend/internal/progress/service"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the progress bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the progress module with all its dependencies.
func NewModule(pool *pgxpool.Pool, requests service.RequestStore, payments service.PaymentReader, store storage.Service, cfg config.WorkflowConfig, bus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, requests, payments, store, cfg, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "progress"
}

// RegisterRoutes mounts progress routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/requests/:id/progress", m.handler.ListByRequest)

	ctx.Admin.POST("/requests/:id/progress", m.handler.Post)
	ctx.Admin.GET("/progress", m.handler.List)
	ctx.Admin.DELETE("/progress/:id", m.handler.Delete)
	ctx.Admin.POST("/requests/:id/complete", m.handler.Complete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
