// Package payments provides the payment bounded context module: gateway
// payments against approved quotations and advance payments.
package payments

import (
	"contractor_portal_backend/internal/events"
	apphttp "contractor_portal_backend/internal/http"
	"contractor_portal_backend/internal/payments/gateway"
	"contractor_portal_backend/internal/payments/handler"
	"contractor_portal_backend/internal/payments/repository"
	"contractor_portal_backend/internal/payments/service"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
	"contractor_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the payments module with all its dependencies.
func NewModule(pool *pgxpool.Pool, requests service.RequestReader, quotations service.QuotationReader, gw gateway.Gateway, company config.CompanyConfig, bus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, requests, quotations, gw, company, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// Repository returns the repository for cross-module lookups.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts payment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/payments", m.handler.Initiate)
	ctx.Protected.GET("/payments", m.handler.List)
	ctx.Protected.GET("/payments/:id", m.handler.Get)
	ctx.Protected.POST("/payments/:id/verify", m.handler.Verify)
	ctx.Protected.GET("/payments/:id/qr", m.handler.QRCode)
	ctx.Protected.GET("/requests/:id/payments", m.handler.ListByRequest)

	ctx.Admin.POST("/payments/advance", m.handler.RequestAdvance)
	ctx.Admin.POST("/payments/advance/:id/approve", m.handler.ApproveAdvance)
	ctx.Admin.POST("/payments/advance/:id/pay", m.handler.PayAdvance)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
