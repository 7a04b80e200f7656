// Package repository provides persistence for work progress entries.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
)

const notFoundMessage = "progress entry not found"

// WorkProgress is a progress update posted on a request by the company.
// Media keys are kept in upload order per kind.
type WorkProgress struct {
	ID                uuid.UUID
	RequestID         uuid.UUID
	Title             string
	Description       *string
	CompletionPercent int
	PhotoKeys         []string
	VideoKeys         []string
	DocumentKeys      []string
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
}

// AllMediaKeys returns every stored object key on the entry.
func (wp WorkProgress) AllMediaKeys() []string {
	out := make([]string, 0, len(wp.PhotoKeys)+len(wp.VideoKeys)+len(wp.DocumentKeys))
	out = append(out, wp.PhotoKeys...)
	out = append(out, wp.VideoKeys...)
	out = append(out, wp.DocumentKeys...)
	return out
}

// CreateParams contains parameters for posting a progress entry.
type CreateParams struct {
	RequestID         uuid.UUID
	Title             string
	Description       *string
	CompletionPercent int
	PhotoKeys         []string
	VideoKeys         []string
	DocumentKeys      []string
	CreatedBy         uuid.UUID
}

// Repository defines progress persistence operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (WorkProgress, error)
	// CreateWithTransition posts the entry and moves the parent request in
	// the same transaction. Used for the first entry on a PAYMENT request.
	CreateWithTransition(ctx context.Context, params CreateParams, from, to workflow.Status) (WorkProgress, error)
	GetByID(ctx context.Context, id uuid.UUID) (WorkProgress, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]WorkProgress, error)
	List(ctx context.Context) ([]WorkProgress, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new progress repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const progressColumns = `id, request_id, title, description, completion_percent, photo_keys, video_keys, document_keys, created_by, created_at`

const insertProgress = `
	INSERT INTO work_progress (id, request_id, title, description, completion_percent, photo_keys, video_keys, document_keys, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	RETURNING ` + progressColumns

// Create inserts a progress entry.
func (r *Repo) Create(ctx context.Context, params CreateParams) (WorkProgress, error) {
	row := r.pool.QueryRow(ctx, insertProgress,
		uuid.New(), params.RequestID, params.Title, params.Description, params.CompletionPercent,
		params.PhotoKeys, params.VideoKeys, params.DocumentKeys, params.CreatedBy)
	return scanProgress(row)
}

// CreateWithTransition inserts a progress entry and moves the parent request
// atomically.
func (r *Repo) CreateWithTransition(ctx context.Context, params CreateParams, from, to workflow.Status) (WorkProgress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return WorkProgress{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, insertProgress,
		uuid.New(), params.RequestID, params.Title, params.Description, params.CompletionPercent,
		params.PhotoKeys, params.VideoKeys, params.DocumentKeys, params.CreatedBy)
	wp, err := scanProgress(row)
	if err != nil {
		return WorkProgress{}, err
	}

	if err := requestsrepo.UpdateStatusTx(ctx, tx, params.RequestID, from, to); err != nil {
		return WorkProgress{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WorkProgress{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return wp, nil
}

// GetByID retrieves a progress entry by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (WorkProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM work_progress WHERE id = $1`
	return scanProgress(r.pool.QueryRow(ctx, query, id))
}

// ListByRequest retrieves all progress entries for a request, newest first.
func (r *Repo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]WorkProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM work_progress WHERE request_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries: %w", err)
	}
	return collectProgress(rows)
}

// List retrieves all progress entries across requests, newest first.
func (r *Repo) List(ctx context.Context) ([]WorkProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM work_progress ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries: %w", err)
	}
	return collectProgress(rows)
}

// Delete removes a progress entry.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_progress WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete progress entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(notFoundMessage)
	}
	return nil
}

func collectProgress(rows pgx.Rows) ([]WorkProgress, error) {
	defer rows.Close()

	var out []WorkProgress
	for rows.Next() {
		wp, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wp)
	}
	return out, rows.Err()
}

func scanProgress(row pgx.Row) (WorkProgress, error) {
	var wp WorkProgress
	err := row.Scan(&wp.ID, &wp.RequestID, &wp.Title, &wp.Description, &wp.CompletionPercent,
		&wp.PhotoKeys, &wp.VideoKeys, &wp.DocumentKeys, &wp.CreatedBy, &wp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkProgress{}, apperr.NotFound(notFoundMessage)
		}
		return WorkProgress{}, fmt.Errorf("failed to scan progress entry: %w", err)
	}
	return wp, nil
}
