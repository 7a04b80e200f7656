// Package handler exposes invoice endpoints over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"contractor_portal_backend/internal/invoices/service"
	"contractor_portal_backend/internal/invoices/transport"
	"contractor_portal_backend/platform/httpkit"
	"contractor_portal_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid invoice ID"
)

// Handler handles HTTP requests for invoices.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new invoices handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Generate issues an invoice for a settled advance payment (admin only).
// POST /api/v1/admin/invoices
func (h *Handler) Generate(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), callerFrom(identity), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Get retrieves a single invoice.
// GET /api/v1/invoices/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Get(c.Request.Context(), callerFrom(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListByRequest retrieves a request's invoices.
// GET /api/v1/requests/:id/invoices
func (h *Handler) ListByRequest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request ID", nil)
		return
	}

	result, err := h.svc.ListByRequest(c.Request.Context(), callerFrom(identity), requestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// List retrieves all invoices (admin only).
// GET /api/v1/admin/invoices
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.List(c.Request.Context(), callerFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// MarkPaid settles an issued invoice (admin only).
// POST /api/v1/admin/invoices/:id/paid
func (h *Handler) MarkPaid(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.MarkPaid(c.Request.Context(), callerFrom(identity), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CompanyInfo returns the company details printed on invoices.
// GET /api/v1/company
func (h *Handler) CompanyInfo(c *gin.Context) {
	httpkit.OK(c, h.svc.CompanyInfo())
}

func callerFrom(identity httpkit.Identity) service.Caller {
	return service.Caller{ID: identity.UserID(), Role: identity.Role()}
}
