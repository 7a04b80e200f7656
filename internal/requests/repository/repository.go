// Package repository provides persistence for service requests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
)

const requestNotFoundMessage = "service request not found"

// Payment settlement states tracked alongside the workflow status.
const (
	PaymentStatusPending          = "PENDING"
	PaymentStatusAdvanceRequested = "ADVANCE_REQUESTED"
	PaymentStatusAdvancePaid      = "ADVANCE_PAID"
	PaymentStatusPaid             = "PAID"
)

// ServiceRequest is a customer's request for work, moving through the
// portal's lifecycle from REQUESTED to COMPLETED.
type ServiceRequest struct {
	ID              uuid.UUID
	RequestCode     string
	CustomerID      uuid.UUID
	CustomerEmail   string
	ServiceTypeCode string
	Description     string
	Address         string
	PreferredDate   *time.Time
	Status          workflow.Status
	PaymentStatus   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams contains parameters for creating a service request.
type CreateParams struct {
	RequestCode     string
	CustomerID      uuid.UUID
	ServiceTypeCode string
	Description     string
	Address         string
	PreferredDate   *time.Time
}

// UpdateDetailsParams contains the mutable details of a request.
type UpdateDetailsParams struct {
	ID            uuid.UUID
	Description   *string
	Address       *string
	PreferredDate *time.Time
}

// ListFilter narrows request listings.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *workflow.Status
	Limit      int
	Offset     int
}

// Repository defines service request persistence operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (ServiceRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (ServiceRequest, error)
	List(ctx context.Context, filter ListFilter) ([]ServiceRequest, int, error)
	UpdateDetails(ctx context.Context, params UpdateDetailsParams) (ServiceRequest, error)
	// UpdateStatus moves a request from one workflow status to another using
	// compare-and-swap semantics: the row is only touched while still in the
	// expected status. A lost race returns a conflict error.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to workflow.Status) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) error
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new service request repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const requestColumns = `
	r.id, r.request_code, r.customer_id, u.email, r.service_type_code,
	r.description, r.address, r.preferred_date, r.status, r.payment_status,
	r.created_at, r.updated_at`

// Create inserts a new service request in REQUESTED status.
func (r *Repo) Create(ctx context.Context, params CreateParams) (ServiceRequest, error) {
	query := `
		INSERT INTO service_requests (request_code, customer_id, service_type_code, description, address, preferred_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		params.RequestCode, params.CustomerID, params.ServiceTypeCode,
		params.Description, params.Address, params.PreferredDate,
	).Scan(&id)
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("create service request: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a service request with its customer email.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM service_requests r
		JOIN users u ON u.id = r.customer_id
		WHERE r.id = $1`

	sr, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, apperr.NotFound(requestNotFoundMessage)
		}
		return ServiceRequest{}, fmt.Errorf("get service request: %w", err)
	}
	return sr, nil
}

// List retrieves service requests matching the filter, newest first.
func (r *Repo) List(ctx context.Context, filter ListFilter) ([]ServiceRequest, int, error) {
	var customerParam interface{}
	if filter.CustomerID != nil {
		customerParam = *filter.CustomerID
	}
	var statusParam interface{}
	if filter.Status != nil {
		statusParam = string(*filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	countQuery := `
		SELECT COUNT(*)
		FROM service_requests r
		WHERE ($1::uuid IS NULL OR r.customer_id = $1)
			AND ($2::text IS NULL OR r.status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, customerParam, statusParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count service requests: %w", err)
	}

	query := `
		SELECT ` + requestColumns + `
		FROM service_requests r
		JOIN users u ON u.id = r.customer_id
		WHERE ($1::uuid IS NULL OR r.customer_id = $1)
			AND ($2::text IS NULL OR r.status = $2)
		ORDER BY r.created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, customerParam, statusParam, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list service requests: %w", err)
	}
	defer rows.Close()

	var results []ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan service request: %w", err)
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate service requests: %w", err)
	}

	return results, total, nil
}

// UpdateDetails updates the mutable fields of a request.
func (r *Repo) UpdateDetails(ctx context.Context, params UpdateDetailsParams) (ServiceRequest, error) {
	query := `
		UPDATE service_requests SET
			description = COALESCE($2, description),
			address = COALESCE($3, address),
			preferred_date = COALESCE($4, preferred_date),
			updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, params.ID, params.Description, params.Address, params.PreferredDate)
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("update service request details: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ServiceRequest{}, apperr.NotFound(requestNotFoundMessage)
	}

	return r.GetByID(ctx, params.ID)
}

// UpdateStatus performs the compare-and-swap status transition.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to workflow.Status) error {
	return UpdateStatusTx(ctx, r.pool, id, from, to)
}

// Querier is the subset of pgx operations needed for status updates, satisfied
// by both a pool and a transaction. Sibling modules update the parent request
// inside their own transactions through UpdateStatusTx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// UpdateStatusTx applies the CAS status transition using the given querier.
func UpdateStatusTx(ctx context.Context, q Querier, id uuid.UUID, from, to workflow.Status) error {
	query := `
		UPDATE service_requests
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	result, err := q.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update service request status: %w", err)
	}
	if result.RowsAffected() != 0 {
		return nil
	}

	// Distinguish a missing row from a raced transition.
	var current string
	err = q.QueryRow(ctx, `SELECT status FROM service_requests WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(requestNotFoundMessage)
	}
	if err != nil {
		return fmt.Errorf("read service request status: %w", err)
	}
	return apperr.Conflict("request status changed concurrently").WithDetails(map[string]interface{}{
		"expectedStatus": string(from),
		"currentStatus":  current,
	})
}

// SetPaymentStatus updates the settlement state of a request.
func (r *Repo) SetPaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) error {
	query := `UPDATE service_requests SET payment_status = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, paymentStatus)
	if err != nil {
		return fmt.Errorf("set request payment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMessage)
	}
	return nil
}

func scanRequest(row pgx.Row) (ServiceRequest, error) {
	var sr ServiceRequest
	var status string
	err := row.Scan(
		&sr.ID, &sr.RequestCode, &sr.CustomerID, &sr.CustomerEmail, &sr.ServiceTypeCode,
		&sr.Description, &sr.Address, &sr.PreferredDate, &status, &sr.PaymentStatus,
		&sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return ServiceRequest{}, err
	}
	sr.Status = workflow.Status(status)
	return sr, nil
}
