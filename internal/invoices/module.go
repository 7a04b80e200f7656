// Package invoices provides the invoice bounded context module.
package invoices

import (
	"contractor_portal_backend/internal/events"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/internal/invoices/handler"
	"contractor_portal_backend/internal/invoices/repository"
	"contractor_portal_backend/internal/invoices/service"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the invoices bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the invoices module with all its dependencies.
func NewModule(pool *pgxpool.Pool, requests service.RequestReader, quotations service.QuotationReader, advances service.AdvanceStore, cfg service.Config, bus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, requests, quotations, advances, cfg, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "invoices"
}

// RegisterRoutes mounts invoice routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/company", m.handler.CompanyInfo)

	ctx.Protected.GET("/invoices/:id", m.handler.Get)
	ctx.Protected.GET("/requests/:id/invoices", m.handler.ListByRequest)

	ctx.Admin.POST("/invoices", m.handler.Generate)
	ctx.Admin.GET("/invoices", m.handler.List)
	ctx.Admin.POST("/invoices/:id/paid", m.handler.MarkPaid)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
