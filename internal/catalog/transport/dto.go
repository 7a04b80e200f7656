package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateServiceTypeRequest contains data for creating a new service type.
type CreateServiceTypeRequest struct {
	Code        string  `json:"code" validate:"required,servicecode"`
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// UpdateServiceTypeRequest contains data for updating a service type.
type UpdateServiceTypeRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// ServiceTypeResponse represents a service type in API responses.
type ServiceTypeResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ServiceTypeListResponse wraps a list of service types.
type ServiceTypeListResponse struct {
	Items []ServiceTypeResponse `json:"items"`
	Total int                   `json:"total"`
}
