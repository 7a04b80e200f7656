// Package handler exposes work progress endpoints over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"contractor_portal_backend/internal/progress/service"
	"contractor_portal_backend/internal/progress/transport"
	"contractor_portal_backend/platform/httpkit"
	"contractor_portal_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidRequestID = "invalid request ID"

	// mediaFormField is the multipart field carrying attachments.
	mediaFormField = "media"
)

// Handler handles HTTP requests for work progress.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new progress handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Post uploads a progress update with optional media (admin only).
// POST /api/v1/admin/requests/:id/progress  (multipart/form-data)
func (h *Handler) Post(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequestID, nil)
		return
	}

	var req transport.CreateProgressRequest
	if err := c.ShouldBind(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var media []transport.MediaFile
	var closers []interface{ Close() error }
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	if form != nil {
		for _, fh := range form.File[mediaFormField] {
			file, err := fh.Open()
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, "failed to read uploaded file", nil)
				return
			}
			closers = append(closers, file)
			media = append(media, transport.MediaFile{
				Name:        fh.Filename,
				Size:        fh.Size,
				ContentType: fh.Header.Get("Content-Type"),
				Reader:      file,
			})
		}
	}

	result, err := h.svc.Post(c.Request.Context(), callerFrom(identity), requestID, req, media)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListByRequest retrieves a request's progress entries.
// GET /api/v1/requests/:id/progress
func (h *Handler) ListByRequest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequestID, nil)
		return
	}

	result, err := h.svc.ListByRequest(c.Request.Context(), callerFrom(identity), requestID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// List retrieves all progress entries across requests (admin only).
// GET /api/v1/admin/progress
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

// Delete removes a progress entry and its media (admin only).
// DELETE /api/v1/admin/progress/:id
func (h *Handler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid progress entry ID", nil)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), callerFrom(identity), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Complete marks a request's work as finished (admin only).
// POST /api/v1/admin/requests/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequestID, nil)
		return
	}

	if err := h.svc.Complete(c.Request.Context(), callerFrom(identity), requestID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func callerFrom(identity httpkit.Identity) service.Caller {
	return service.Caller{ID: identity.UserID(), Role: identity.Role()}
}
