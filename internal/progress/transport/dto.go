package transport

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// CreateProgressRequest contains the fields of a progress update.
type CreateProgressRequest struct {
	Title             string  `json:"title" form:"title" validate:"required,min=3,max=200"`
	Description       *string `json:"description,omitempty" form:"description" validate:"omitempty,max=2000"`
	CompletionPercent int     `json:"completionPercent" form:"completionPercent" validate:"gte=0,lte=100"`
}

// MediaFile is an uploaded attachment streamed from the request body.
type MediaFile struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// MediaLink is a time-limited download link for a stored attachment.
type MediaLink struct {
	FileKey   string    `json:"fileKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProgressResponse represents a progress entry in API responses. Media is
// grouped by kind, each group in upload order.
type ProgressResponse struct {
	ID                uuid.UUID   `json:"id"`
	RequestID         uuid.UUID   `json:"requestId"`
	Title             string      `json:"title"`
	Description       *string     `json:"description,omitempty"`
	CompletionPercent int         `json:"completionPercent"`
	Photos            []MediaLink `json:"photos"`
	Videos            []MediaLink `json:"videos"`
	Documents         []MediaLink `json:"documents"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// ProgressListResponse wraps a request's progress entries.
type ProgressListResponse struct {
	Items []ProgressResponse `json:"items"`
	Total int                `json:"total"`
}
