// Package repository provides persistence for invoices.
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

	"contractor_portal_backend/platform/apperr"
)

const notFoundMessage = "invoice not found"

// Invoice statuses.
const (
	StatusIssued = "ISSUED"
	StatusPaid   = "PAID"
)

// Invoice is a tax invoice generated against a settled advance payment. The
// company details are snapshotted at issue time.
type Invoice struct {
	ID               uuid.UUID
	InvoiceNumber    string
	RequestID        uuid.UUID
	QuotationID      uuid.UUID
	AdvancePaymentID uuid.UUID
	CompanyName      string
	GSTNumber        string
	ItemDescription  string
	BaseAmount       decimal.Decimal
	GSTRate          decimal.Decimal
	GSTAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	AdvanceAmount    decimal.Decimal
	BalanceAmount    decimal.Decimal
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateParams contains parameters for issuing an invoice.
type CreateParams struct {
	InvoiceNumber    string
	RequestID        uuid.UUID
	QuotationID      uuid.UUID
	AdvancePaymentID uuid.UUID
	CompanyName      string
	GSTNumber        string
	ItemDescription  string
	BaseAmount       decimal.Decimal
	GSTRate          decimal.Decimal
	GSTAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	AdvanceAmount    decimal.Decimal
	BalanceAmount    decimal.Decimal
}

// Repository defines invoice persistence operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetByAdvancePayment(ctx context.Context, advancePaymentID uuid.UUID) (Invoice, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	// MarkPaid flips an ISSUED invoice to PAID. Already-paid invoices return
	// a Conflict.
	MarkPaid(ctx context.Context, id uuid.UUID) (Invoice, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new invoice repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const invoiceColumns = `
	id, invoice_number, request_id, quotation_id, advance_payment_id,
	company_name, gst_number, item_description, base_amount, gst_rate,
	gst_amount, total_amount, advance_amount, balance_amount, status,
	created_at, updated_at`

// Create inserts an invoice in ISSUED status.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Invoice, error) {
	query := `
		INSERT INTO invoices (
			invoice_number, request_id, quotation_id, advance_payment_id,
			company_name, gst_number, item_description, base_amount, gst_rate,
			gst_amount, total_amount, advance_amount, balance_amount, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query,
		params.InvoiceNumber, params.RequestID, params.QuotationID, params.AdvancePaymentID,
		params.CompanyName, params.GSTNumber, params.ItemDescription, params.BaseAmount, params.GSTRate,
		params.GSTAmount, params.TotalAmount, params.AdvanceAmount, params.BalanceAmount, StatusIssued,
	))
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// GetByID retrieves an invoice.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return getOne(r.pool.QueryRow(ctx, query, id))
}

// GetByAdvancePayment retrieves the invoice issued against an advance payment.
func (r *Repo) GetByAdvancePayment(ctx context.Context, advancePaymentID uuid.UUID) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE advance_payment_id = $1`
	return getOne(r.pool.QueryRow(ctx, query, advancePaymentID))
}

// ListByRequest retrieves all invoices for a request, newest first.
func (r *Repo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE request_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return collectInvoices(rows)
}

// List retrieves all invoices, newest first.
func (r *Repo) List(ctx context.Context) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return collectInvoices(rows)
}

// MarkPaid flips an ISSUED invoice to PAID.
func (r *Repo) MarkPaid(ctx context.Context, id uuid.UUID) (Invoice, error) {
	query := `
		UPDATE invoices
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id, StatusPaid, StatusIssued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return Invoice{}, getErr
			}
			return Invoice{}, apperr.Conflict("invoice was already paid")
		}
		return Invoice{}, fmt.Errorf("mark invoice paid: %w", err)
	}
	return inv, nil
}

func getOne(row pgx.Row) (Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, apperr.NotFound(notFoundMessage)
		}
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()

	var results []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		results = append(results, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return results, nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.RequestID, &inv.QuotationID, &inv.AdvancePaymentID,
		&inv.CompanyName, &inv.GSTNumber, &inv.ItemDescription, &inv.BaseAmount, &inv.GSTRate,
		&inv.GSTAmount, &inv.TotalAmount, &inv.AdvanceAmount, &inv.BalanceAmount, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
