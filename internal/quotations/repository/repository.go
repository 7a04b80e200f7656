// Package repository provides persistence for quotations. Mutations that move
// the parent request run in the same transaction as the quotation write.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
)

const quotationNotFoundMessage = "quotation not found"

// Quotation statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Quotation is a priced offer for a service request.
type Quotation struct {
	ID              uuid.UUID
	QuotationNumber string
	RequestID       uuid.UUID
	BaseAmount      decimal.Decimal
	ServiceTax      decimal.Decimal
	GSTRate         decimal.Decimal
	GSTAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          string
	Notes           *string
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams contains parameters for creating a quotation.
type CreateParams struct {
	QuotationNumber string
	RequestID       uuid.UUID
	BaseAmount      decimal.Decimal
	ServiceTax      decimal.Decimal
	GSTRate         decimal.Decimal
	GSTAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Notes           *string
}

// Repository defines quotation persistence operations.
type Repository interface {
	// CreateWithTransition inserts the quotation and moves the parent request
	// from one status to another atomically.
	CreateWithTransition(ctx context.Context, params CreateParams, from, to workflow.Status) (Quotation, error)
	GetByID(ctx context.Context, id uuid.UUID) (Quotation, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Quotation, error)
	GetApprovedByRequest(ctx context.Context, requestID uuid.UUID) (Quotation, error)
	// DecideWithTransition flips a PENDING quotation to APPROVED or REJECTED
	// and moves the parent request in the same transaction.
	DecideWithTransition(ctx context.Context, id uuid.UUID, status string, reason *string, requestID uuid.UUID, from, to workflow.Status) (Quotation, error)
	// DeleteWithTransition removes a PENDING quotation and moves the parent
	// request back in the same transaction.
	DeleteWithTransition(ctx context.Context, id uuid.UUID, requestID uuid.UUID, from, to workflow.Status) error
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new quotation repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const quotationColumns = `
	id, quotation_number, request_id, base_amount, service_tax, gst_rate,
	gst_amount, total_amount, status, notes, rejection_reason, created_at, updated_at`

// CreateWithTransition inserts a quotation and advances the parent request.
func (r *Repo) CreateWithTransition(ctx context.Context, params CreateParams, from, to workflow.Status) (Quotation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Quotation{}, fmt.Errorf("begin create quotation: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO quotations (quotation_number, request_id, base_amount, service_tax, gst_rate, gst_amount, total_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + quotationColumns

	q, err := scanQuotation(tx.QueryRow(ctx, query,
		params.QuotationNumber, params.RequestID, params.BaseAmount,
		params.ServiceTax, params.GSTRate, params.GSTAmount, params.TotalAmount, params.Notes,
	))
	if err != nil {
		return Quotation{}, fmt.Errorf("create quotation: %w", err)
	}

	if err := requestsrepo.UpdateStatusTx(ctx, tx, params.RequestID, from, to); err != nil {
		return Quotation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Quotation{}, fmt.Errorf("commit create quotation: %w", err)
	}
	return q, nil
}

// GetByID retrieves a quotation.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM quotations WHERE id = $1`

	q, err := scanQuotation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, apperr.NotFound(quotationNotFoundMessage)
		}
		return Quotation{}, fmt.Errorf("get quotation: %w", err)
	}
	return q, nil
}

// ListByRequest retrieves all quotations for a request, newest first.
func (r *Repo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM quotations WHERE request_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	defer rows.Close()

	var results []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quotation: %w", err)
		}
		results = append(results, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotations: %w", err)
	}
	return results, nil
}

// GetApprovedByRequest retrieves the most recent approved quotation for a request.
func (r *Repo) GetApprovedByRequest(ctx context.Context, requestID uuid.UUID) (Quotation, error) {
	query := `
		SELECT ` + quotationColumns + `
		FROM quotations
		WHERE request_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	q, err := scanQuotation(r.pool.QueryRow(ctx, query, requestID, StatusApproved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, apperr.NotFound("no approved quotation for request")
		}
		return Quotation{}, fmt.Errorf("get approved quotation: %w", err)
	}
	return q, nil
}

// DecideWithTransition applies an approve/reject decision on a PENDING
// quotation and moves the parent request atomically.
func (r *Repo) DecideWithTransition(ctx context.Context, id uuid.UUID, status string, reason *string, requestID uuid.UUID, from, to workflow.Status) (Quotation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Quotation{}, fmt.Errorf("begin decide quotation: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE quotations
		SET status = $2, rejection_reason = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + quotationColumns

	q, err := scanQuotation(tx.QueryRow(ctx, query, id, status, reason, StatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, apperr.Conflict("quotation was already decided or removed")
		}
		return Quotation{}, fmt.Errorf("decide quotation: %w", err)
	}

	if err := requestsrepo.UpdateStatusTx(ctx, tx, requestID, from, to); err != nil {
		return Quotation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Quotation{}, fmt.Errorf("commit decide quotation: %w", err)
	}
	return q, nil
}

// DeleteWithTransition removes a PENDING quotation and moves the parent
// request back atomically.
func (r *Repo) DeleteWithTransition(ctx context.Context, id uuid.UUID, requestID uuid.UUID, from, to workflow.Status) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete quotation: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1 AND status = $2`, id, StatusPending)
	if err != nil {
		return fmt.Errorf("delete quotation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("quotation was already decided or removed")
	}

	if err := requestsrepo.UpdateStatusTx(ctx, tx, requestID, from, to); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete quotation: %w", err)
	}
	return nil
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	err := row.Scan(
		&q.ID, &q.QuotationNumber, &q.RequestID, &q.BaseAmount, &q.ServiceTax,
		&q.GSTRate, &q.GSTAmount, &q.TotalAmount, &q.Status, &q.Notes,
		&q.RejectionReason, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}
