// Package repository provides persistence for gateway payments and advance
// payments. Mutations that move the parent request run in one transaction.
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

const (
	paymentNotFoundMessage = "payment not found"
	advanceNotFoundMessage = "advance payment not found"
)

// Gateway payment statuses.
const (
	PaymentPending  = "PENDING"
	PaymentCaptured = "CAPTURED"
)

// Payment types. The portal only collects the full quotation amount through
// the gateway; partial collections go through advance payments.
const (
	PaymentTypeFull = "FULL"
)

// Advance payment statuses.
const (
	AdvancePending  = "PENDING"
	AdvanceApproved = "APPROVED"
	AdvancePaid     = "PAID"
)

// Payment is a full gateway payment against an approved quotation.
type Payment struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	QuotationID uuid.UUID
	OrderRef    string
	PaymentRef  *string
	Amount      decimal.Decimal
	Currency    string
	Type        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AdvancePayment is a partial upfront payment requested by the company,
// tied to a named work stage and optionally to a posted progress update.
type AdvancePayment struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	QuotationID uuid.UUID
	ProgressID  *uuid.UUID
	Stage       string
	Amount      decimal.Decimal
	Status      string
	Description *string
	RequestedBy uuid.UUID
	InvoiceID   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePaymentParams contains parameters for recording a new gateway order.
type CreatePaymentParams struct {
	RequestID   uuid.UUID
	QuotationID uuid.UUID
	OrderRef    string
	Amount      decimal.Decimal
	Currency    string
}

// CreateAdvanceParams contains parameters for requesting an advance payment.
type CreateAdvanceParams struct {
	RequestID   uuid.UUID
	QuotationID uuid.UUID
	ProgressID  *uuid.UUID
	Stage       string
	Amount      decimal.Decimal
	Description *string
	RequestedBy uuid.UUID
}

// Repository defines payment persistence operations.
type Repository interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error)
	GetPaymentByID(ctx context.Context, id uuid.UUID) (Payment, error)
	ListPaymentsByRequest(ctx context.Context, requestID uuid.UUID) ([]Payment, error)
	// CapturePayment flips a PENDING payment to CAPTURED, moves the parent
	// request and marks it PAID, all atomically.
	CapturePayment(ctx context.Context, id uuid.UUID, paymentRef string, requestID uuid.UUID, from, to workflow.Status) (Payment, error)
	HasCapturedPayment(ctx context.Context, requestID uuid.UUID) (bool, error)
	// ListPayments retrieves payments across requests; a non-nil customerID
	// restricts the result to that customer's requests.
	ListPayments(ctx context.Context, customerID *uuid.UUID) ([]Payment, error)

	CreateAdvance(ctx context.Context, params CreateAdvanceParams) (AdvancePayment, error)
	GetAdvanceByID(ctx context.Context, id uuid.UUID) (AdvancePayment, error)
	ListAdvancesByRequest(ctx context.Context, requestID uuid.UUID) ([]AdvancePayment, error)
	// ListAdvances retrieves advance payments across requests; a non-nil
	// customerID restricts the result to that customer's requests.
	ListAdvances(ctx context.Context, customerID *uuid.UUID) ([]AdvancePayment, error)
	ApproveAdvance(ctx context.Context, id uuid.UUID) (AdvancePayment, error)
	// PayAdvance settles an APPROVED advance. When no sibling advances remain
	// outstanding, the parent request's payment_status flips to ADVANCE_PAID.
	// Returns whether all are settled.
	PayAdvance(ctx context.Context, id uuid.UUID, requestID uuid.UUID) (AdvancePayment, bool, error)
	SetAdvanceInvoice(ctx context.Context, id uuid.UUID, invoiceID uuid.UUID) error
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new payments repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const paymentColumns = `
	id, request_id, quotation_id, order_ref, payment_ref, amount, currency,
	type, status, created_at, updated_at`

const advanceColumns = `
	id, request_id, quotation_id, progress_id, stage, amount, status, description,
	requested_by, invoice_id, created_at, updated_at`

// CreatePayment records a new pending gateway order.
func (r *Repo) CreatePayment(ctx context.Context, params CreatePaymentParams) (Payment, error) {
	query := `
		INSERT INTO payments (request_id, quotation_id, order_ref, amount, currency, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, query,
		params.RequestID, params.QuotationID, params.OrderRef, params.Amount, params.Currency, PaymentTypeFull,
	))
	if err != nil {
		return Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// GetPaymentByID retrieves a payment.
func (r *Repo) GetPaymentByID(ctx context.Context, id uuid.UUID) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, apperr.NotFound(paymentNotFoundMessage)
		}
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// ListPaymentsByRequest retrieves all payments for a request, newest first.
func (r *Repo) ListPaymentsByRequest(ctx context.Context, requestID uuid.UUID) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE request_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var results []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return results, nil
}

// ListPayments retrieves payments across requests, newest first. A non-nil
// customerID restricts the result to requests owned by that customer.
func (r *Repo) ListPayments(ctx context.Context, customerID *uuid.UUID) ([]Payment, error) {
	query := `
		SELECT p.id, p.request_id, p.quotation_id, p.order_ref, p.payment_ref, p.amount,
		       p.currency, p.type, p.status, p.created_at, p.updated_at
		FROM payments p
		JOIN service_requests sr ON sr.id = p.request_id
		WHERE $1::uuid IS NULL OR sr.customer_id = $1
		ORDER BY p.created_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var results []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return results, nil
}

// CapturePayment marks the payment captured and advances the parent request.
func (r *Repo) CapturePayment(ctx context.Context, id uuid.UUID, paymentRef string, requestID uuid.UUID, from, to workflow.Status) (Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Payment{}, fmt.Errorf("begin capture payment: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE payments
		SET status = $2, payment_ref = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING ` + paymentColumns

	p, err := scanPayment(tx.QueryRow(ctx, query, id, PaymentCaptured, paymentRef, PaymentPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, apperr.Conflict("payment was already captured or removed")
		}
		return Payment{}, fmt.Errorf("capture payment: %w", err)
	}

	if err := requestsrepo.UpdateStatusTx(ctx, tx, requestID, from, to); err != nil {
		return Payment{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE service_requests SET payment_status = $2, updated_at = now() WHERE id = $1`,
		requestID, requestsrepo.PaymentStatusPaid,
	); err != nil {
		return Payment{}, fmt.Errorf("mark request paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Payment{}, fmt.Errorf("commit capture payment: %w", err)
	}
	return p, nil
}

// HasCapturedPayment reports whether the request has any captured payment.
func (r *Repo) HasCapturedPayment(ctx context.Context, requestID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE request_id = $1 AND status = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, requestID, PaymentCaptured).Scan(&exists); err != nil {
		return false, fmt.Errorf("check captured payment: %w", err)
	}
	return exists, nil
}

// CreateAdvance records a new advance payment request and flags the parent.
// A progress link, when present, must point at an update on the same request.
func (r *Repo) CreateAdvance(ctx context.Context, params CreateAdvanceParams) (AdvancePayment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AdvancePayment{}, fmt.Errorf("begin create advance: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.ProgressID != nil {
		var linked bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM work_progress WHERE id = $1 AND request_id = $2)`,
			*params.ProgressID, params.RequestID,
		).Scan(&linked)
		if err != nil {
			return AdvancePayment{}, fmt.Errorf("check progress link: %w", err)
		}
		if !linked {
			return AdvancePayment{}, apperr.NotFound("progress update not found on this request")
		}
	}

	query := `
		INSERT INTO advance_payments (request_id, quotation_id, progress_id, stage, amount, description, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + advanceColumns

	a, err := scanAdvance(tx.QueryRow(ctx, query,
		params.RequestID, params.QuotationID, params.ProgressID, params.Stage, params.Amount, params.Description, params.RequestedBy,
	))
	if err != nil {
		return AdvancePayment{}, fmt.Errorf("create advance payment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE service_requests SET payment_status = $2, updated_at = now() WHERE id = $1`,
		params.RequestID, requestsrepo.PaymentStatusAdvanceRequested,
	); err != nil {
		return AdvancePayment{}, fmt.Errorf("flag advance requested: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AdvancePayment{}, fmt.Errorf("commit create advance: %w", err)
	}
	return a, nil
}

// GetAdvanceByID retrieves an advance payment.
func (r *Repo) GetAdvanceByID(ctx context.Context, id uuid.UUID) (AdvancePayment, error) {
	query := `SELECT ` + advanceColumns + ` FROM advance_payments WHERE id = $1`

	a, err := scanAdvance(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdvancePayment{}, apperr.NotFound(advanceNotFoundMessage)
		}
		return AdvancePayment{}, fmt.Errorf("get advance payment: %w", err)
	}
	return a, nil
}

// ListAdvancesByRequest retrieves all advance payments for a request.
func (r *Repo) ListAdvancesByRequest(ctx context.Context, requestID uuid.UUID) ([]AdvancePayment, error) {
	query := `SELECT ` + advanceColumns + ` FROM advance_payments WHERE request_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list advance payments: %w", err)
	}
	defer rows.Close()

	var results []AdvancePayment
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan advance payment: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advance payments: %w", err)
	}
	return results, nil
}

// ListAdvances retrieves advance payments across requests, newest first. A
// non-nil customerID restricts the result to requests owned by that customer.
func (r *Repo) ListAdvances(ctx context.Context, customerID *uuid.UUID) ([]AdvancePayment, error) {
	query := `
		SELECT a.id, a.request_id, a.quotation_id, a.progress_id, a.stage, a.amount,
		       a.status, a.description, a.requested_by, a.invoice_id, a.created_at, a.updated_at
		FROM advance_payments a
		JOIN service_requests sr ON sr.id = a.request_id
		WHERE $1::uuid IS NULL OR sr.customer_id = $1
		ORDER BY a.created_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list advance payments: %w", err)
	}
	defer rows.Close()

	var results []AdvancePayment
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan advance payment: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advance payments: %w", err)
	}
	return results, nil
}

// ApproveAdvance flips a PENDING advance to APPROVED.
func (r *Repo) ApproveAdvance(ctx context.Context, id uuid.UUID) (AdvancePayment, error) {
	query := `
		UPDATE advance_payments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + advanceColumns

	a, err := scanAdvance(r.pool.QueryRow(ctx, query, id, AdvanceApproved, AdvancePending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdvancePayment{}, apperr.Conflict("advance payment was already decided or removed")
		}
		return AdvancePayment{}, fmt.Errorf("approve advance payment: %w", err)
	}
	return a, nil
}

// PayAdvance settles an approved advance and applies the last-outstanding
// check. Only the parent's payment_status moves; the request status itself
// advances exclusively through payment verification and the status endpoint.
func (r *Repo) PayAdvance(ctx context.Context, id uuid.UUID, requestID uuid.UUID) (AdvancePayment, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AdvancePayment{}, false, fmt.Errorf("begin pay advance: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE advance_payments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + advanceColumns

	a, err := scanAdvance(tx.QueryRow(ctx, query, id, AdvancePaid, AdvanceApproved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdvancePayment{}, false, apperr.Conflict("advance payment is not approved or was removed")
		}
		return AdvancePayment{}, false, fmt.Errorf("pay advance payment: %w", err)
	}

	var outstanding bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM advance_payments WHERE request_id = $1 AND status IN ($2, $3))`,
		requestID, AdvancePending, AdvanceApproved,
	).Scan(&outstanding)
	if err != nil {
		return AdvancePayment{}, false, fmt.Errorf("check outstanding advances: %w", err)
	}

	if !outstanding {
		if _, err := tx.Exec(ctx,
			`UPDATE service_requests SET payment_status = $2, updated_at = now() WHERE id = $1`,
			requestID, requestsrepo.PaymentStatusAdvancePaid,
		); err != nil {
			return AdvancePayment{}, false, fmt.Errorf("mark advance paid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return AdvancePayment{}, false, fmt.Errorf("commit pay advance: %w", err)
	}
	return a, !outstanding, nil
}

// SetAdvanceInvoice links the invoice generated for a settled advance.
func (r *Repo) SetAdvanceInvoice(ctx context.Context, id uuid.UUID, invoiceID uuid.UUID) error {
	query := `UPDATE advance_payments SET invoice_id = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, invoiceID)
	if err != nil {
		return fmt.Errorf("set advance invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(advanceNotFoundMessage)
	}
	return nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.RequestID, &p.QuotationID, &p.OrderRef, &p.PaymentRef,
		&p.Amount, &p.Currency, &p.Type, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func scanAdvance(row pgx.Row) (AdvancePayment, error) {
	var a AdvancePayment
	err := row.Scan(
		&a.ID, &a.RequestID, &a.QuotationID, &a.ProgressID, &a.Stage, &a.Amount,
		&a.Status, &a.Description, &a.RequestedBy, &a.InvoiceID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return AdvancePayment{}, err
	}
	return a, nil
}
