// Package repository provides persistence for the service catalog.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contractor_portal_backend/platform/apperr"
)

const serviceTypeNotFoundMessage = "service type not found"

// ServiceType is an offered category of work, e.g. painting or renovation.
type ServiceType struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams contains parameters for creating a service type.
type CreateParams struct {
	Code        string
	Name        string
	Description *string
}

// UpdateParams contains parameters for updating a service type.
type UpdateParams struct {
	ID          uuid.UUID
	Name        *string
	Description *string
}

// Repository defines catalog persistence operations.
type Repository interface {
	List(ctx context.Context) ([]ServiceType, error)
	ListActive(ctx context.Context) ([]ServiceType, error)
	GetByCode(ctx context.Context, code string) (ServiceType, error)
	Create(ctx context.Context, params CreateParams) (ServiceType, error)
	Update(ctx context.Context, params UpdateParams) (ServiceType, error)
	SetActive(ctx context.Context, id uuid.UUID, isActive bool) error
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const serviceTypeColumns = `id, code, name, description, is_active, created_at, updated_at`

// List retrieves all service types ordered by code.
func (r *Repo) List(ctx context.Context) ([]ServiceType, error) {
	query := `SELECT ` + serviceTypeColumns + ` FROM service_types ORDER BY code ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list service types: %w", err)
	}
	defer rows.Close()

	return scanServiceTypes(rows)
}

// ListActive retrieves only active service types ordered by code.
func (r *Repo) ListActive(ctx context.Context) ([]ServiceType, error) {
	query := `SELECT ` + serviceTypeColumns + ` FROM service_types WHERE is_active = true ORDER BY code ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active service types: %w", err)
	}
	defer rows.Close()

	return scanServiceTypes(rows)
}

// GetByCode retrieves a service type by its business code.
func (r *Repo) GetByCode(ctx context.Context, code string) (ServiceType, error) {
	query := `SELECT ` + serviceTypeColumns + ` FROM service_types WHERE code = $1`

	var st ServiceType
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&st.ID, &st.Code, &st.Name, &st.Description, &st.IsActive, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceType{}, apperr.NotFound(serviceTypeNotFoundMessage)
		}
		return ServiceType{}, fmt.Errorf("get service type by code: %w", err)
	}
	return st, nil
}

// Create inserts a new service type.
func (r *Repo) Create(ctx context.Context, params CreateParams) (ServiceType, error) {
	query := `
		INSERT INTO service_types (code, name, description)
		VALUES ($1, $2, $3)
		RETURNING ` + serviceTypeColumns

	var st ServiceType
	err := r.pool.QueryRow(ctx, query, params.Code, params.Name, params.Description).Scan(
		&st.ID, &st.Code, &st.Name, &st.Description, &st.IsActive, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return ServiceType{}, fmt.Errorf("create service type: %w", err)
	}
	return st, nil
}

// Update updates a service type's name and description.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (ServiceType, error) {
	query := `
		UPDATE service_types SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + serviceTypeColumns

	var st ServiceType
	err := r.pool.QueryRow(ctx, query, params.ID, params.Name, params.Description).Scan(
		&st.ID, &st.Code, &st.Name, &st.Description, &st.IsActive, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceType{}, apperr.NotFound(serviceTypeNotFoundMessage)
		}
		return ServiceType{}, fmt.Errorf("update service type: %w", err)
	}
	return st, nil
}

// SetActive sets the is_active flag for a service type.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, isActive bool) error {
	query := `UPDATE service_types SET is_active = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, isActive)
	if err != nil {
		return fmt.Errorf("set service type active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(serviceTypeNotFoundMessage)
	}
	return nil
}

func scanServiceTypes(rows pgx.Rows) ([]ServiceType, error) {
	var results []ServiceType
	for rows.Next() {
		var st ServiceType
		err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Description, &st.IsActive, &st.CreatedAt, &st.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan service type: %w", err)
		}
		results = append(results, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service types: %w", err)
	}
	return results, nil
}
