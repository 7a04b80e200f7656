package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest contains data for submitting a new service request.
type CreateRequest struct {
	ServiceTypeCode string     `json:"serviceTypeCode" validate:"required,servicecode"`
	Description     string     `json:"description" validate:"required,min=10,max=2000"`
	Address         string     `json:"address" validate:"required,min=5,max=500"`
	PreferredDate   *time.Time `json:"preferredDate,omitempty"`
}

// UpdateDetailsRequest contains the fields a customer may change before
// a quotation is issued.
type UpdateDetailsRequest struct {
	Description   *string    `json:"description,omitempty" validate:"omitempty,min=10,max=2000"`
	Address       *string    `json:"address,omitempty" validate:"omitempty,min=5,max=500"`
	PreferredDate *time.Time `json:"preferredDate,omitempty"`
}

// AdvanceStatusRequest names the status a request should move to.
type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListQuery narrows request listings.
type ListQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// RequestResponse represents a service request in API responses.
type RequestResponse struct {
	ID              uuid.UUID  `json:"id"`
	RequestCode     string     `json:"requestCode"`
	CustomerID      uuid.UUID  `json:"customerId"`
	ServiceTypeCode string     `json:"serviceTypeCode"`
	Description     string     `json:"description"`
	Address         string     `json:"address"`
	PreferredDate   *time.Time `json:"preferredDate,omitempty"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// RequestListResponse wraps a page of service requests.
type RequestListResponse struct {
	Items  []RequestResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}
