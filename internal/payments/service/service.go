// Package service implements payment business logic: gateway payments against
// approved quotations and advance payments requested by the company.
package service

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/payments/gateway"
	"contractor_portal_backend/internal/payments/repository"
	"contractor_portal_backend/internal/payments/transport"
	quotationsrepo "contractor_portal_backend/internal/quotations/repository"
	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

const qrImageSize = 256

// Caller identifies who is performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// RequestReader is the slice of the requests module the payments service needs.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (requestsrepo.ServiceRequest, error)
}

// QuotationReader resolves the approved quotation a payment is collected against.
type QuotationReader interface {
	GetApprovedByRequest(ctx context.Context, requestID uuid.UUID) (quotationsrepo.Quotation, error)
}

// Service provides payment operations.
type Service struct {
	repo       repository.Repository
	requests   RequestReader
	quotations QuotationReader
	gw         gateway.Gateway
	company    config.CompanyConfig
	bus        events.Bus
	log        *logger.Logger
}

// New creates a new payments service.
func New(repo repository.Repository, requests RequestReader, quotations QuotationReader, gw gateway.Gateway, company config.CompanyConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, requests: requests, quotations: quotations, gw: gw, company: company, bus: bus, log: log}
}

// Initiate registers a gateway order for the full approved quotation amount.
// The request must be in APPROVED status.
func (s *Service) Initiate(ctx context.Context, caller Caller, req transport.InitiatePaymentRequest) (transport.PaymentResponse, error) {
	sr, err := s.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpPaymentInitiate, sr.CustomerID == caller.ID); err != nil {
		return transport.PaymentResponse{}, err
	}
	if sr.Status != workflow.StatusApproved {
		return transport.PaymentResponse{}, apperr.InvalidState("payment can only be initiated for an approved request").
			WithDetails(map[string]interface{}{"currentStatus": string(sr.Status)})
	}

	q, err := s.approvedQuotation(ctx, sr.ID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	order, err := s.gw.CreateOrder(ctx, q.TotalAmount, "INR", sr.RequestCode)
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	p, err := s.repo.CreatePayment(ctx, repository.CreatePaymentParams{
		RequestID:   sr.ID,
		QuotationID: q.ID,
		OrderRef:    order.OrderRef,
		Amount:      order.Amount,
		Currency:    order.Currency,
	})
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	s.log.PaymentEvent("order_created", sr.RequestCode, order.OrderRef)

	out := toPaymentResponse(p)
	out.GatewayKey = order.KeyID
	return out, nil
}

// Verify checks the gateway capture signature and marks the payment captured.
// On success the request moves from APPROVED to PAYMENT and is marked PAID.
func (s *Service) Verify(ctx context.Context, caller Caller, paymentID uuid.UUID, req transport.VerifyPaymentRequest) (transport.PaymentResponse, error) {
	p, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	sr, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpPaymentVerify, sr.CustomerID == caller.ID); err != nil {
		return transport.PaymentResponse{}, err
	}

	if p.Status != repository.PaymentPending {
		return transport.PaymentResponse{}, apperr.InvalidState("payment is not awaiting capture").
			WithDetails(map[string]interface{}{"paymentStatus": p.Status})
	}
	if req.OrderRef != "" && req.OrderRef != p.OrderRef {
		return transport.PaymentResponse{}, apperr.BadRequest("order reference does not match this payment")
	}

	if err := s.gw.VerifyCapture(p.OrderRef, req.PaymentRef, req.Signature); err != nil {
		s.log.PaymentEvent("signature_rejected", sr.RequestCode, p.OrderRef)
		return transport.PaymentResponse{}, err
	}

	to, err := workflow.Apply(sr.Status, workflow.TriggerPaymentCaptured)
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	captured, err := s.repo.CapturePayment(ctx, p.ID, req.PaymentRef, sr.ID, sr.Status, to)
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	s.log.PaymentEvent("payment_captured", sr.RequestCode, p.OrderRef)
	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(workflow.TriggerPaymentCaptured))
	s.bus.Publish(ctx, events.PaymentCaptured{
		BaseEvent:     events.NewBaseEvent(),
		PaymentID:     captured.ID,
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerEmail: sr.CustomerEmail,
		Amount:        captured.Amount,
		OrderRef:      captured.OrderRef,
	})

	return toPaymentResponse(captured), nil
}

// Get retrieves a single payment.
func (s *Service) Get(ctx context.Context, caller Caller, paymentID uuid.UUID) (transport.PaymentResponse, error) {
	p, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	sr, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpPaymentRead, sr.CustomerID == caller.ID); err != nil {
		return transport.PaymentResponse{}, err
	}
	return toPaymentResponse(p), nil
}

// List returns payments and advances across requests. Customers see only
// their own; admins see everything.
func (s *Service) List(ctx context.Context, caller Caller) (transport.PaymentListResponse, error) {
	var customerID *uuid.UUID
	if caller.Role != authz.RoleAdmin {
		customerID = &caller.ID
	}

	payments, err := s.repo.ListPayments(ctx, customerID)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}
	advances, err := s.repo.ListAdvances(ctx, customerID)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}

	out := transport.PaymentListResponse{
		Payments: make([]transport.PaymentResponse, 0, len(payments)),
		Advances: make([]transport.AdvancePaymentResponse, 0, len(advances)),
	}
	for _, p := range payments {
		out.Payments = append(out.Payments, toPaymentResponse(p))
	}
	for _, a := range advances {
		out.Advances = append(out.Advances, toAdvanceResponse(a, false))
	}
	return out, nil
}

// ListByRequest returns a request's gateway payments and advance payments.
func (s *Service) ListByRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (transport.PaymentListResponse, error) {
	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpPaymentRead, sr.CustomerID == caller.ID); err != nil {
		return transport.PaymentListResponse{}, err
	}

	payments, err := s.repo.ListPaymentsByRequest(ctx, requestID)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}
	advances, err := s.repo.ListAdvancesByRequest(ctx, requestID)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}

	out := transport.PaymentListResponse{
		Payments: make([]transport.PaymentResponse, 0, len(payments)),
		Advances: make([]transport.AdvancePaymentResponse, 0, len(advances)),
	}
	for _, p := range payments {
		out.Payments = append(out.Payments, toPaymentResponse(p))
	}
	for _, a := range advances {
		out.Advances = append(out.Advances, toAdvanceResponse(a, false))
	}
	return out, nil
}

// QRCode renders a UPI payment QR for a pending gateway payment as a PNG.
func (s *Service) QRCode(ctx context.Context, caller Caller, paymentID uuid.UUID) ([]byte, error) {
	p, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	sr, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(caller.Role, authz.OpPaymentRead, sr.CustomerID == caller.ID); err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(upiPayload(s.company.GetCompanyName(), p), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to render payment QR", err)
	}
	return png, nil
}

// RequestAdvance records an advance payment demand against a request that has
// an approved quotation. Advances fund work stages, so they can be raised at
// any point from quotation approval through active work, optionally tied to
// a posted progress update.
func (s *Service) RequestAdvance(ctx context.Context, caller Caller, req transport.CreateAdvanceRequest) (transport.AdvancePaymentResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpAdvanceRequest, false); err != nil {
		return transport.AdvancePaymentResponse{}, err
	}

	sr, err := s.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	switch sr.Status {
	case workflow.StatusApproved, workflow.StatusPayment, workflow.StatusInProgress:
	default:
		return transport.AdvancePaymentResponse{}, apperr.InvalidState("advance payment cannot be requested before quotation approval or after completion").
			WithDetails(map[string]interface{}{"currentStatus": string(sr.Status)})
	}

	q, err := s.approvedQuotation(ctx, sr.ID)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return transport.AdvancePaymentResponse{}, apperr.Validation("advance amount must be greater than zero")
	}
	if req.Amount.GreaterThan(q.TotalAmount) {
		return transport.AdvancePaymentResponse{}, apperr.Validation("advance amount cannot exceed the quotation total").
			WithDetails(map[string]interface{}{"quotationTotal": q.TotalAmount.StringFixed(2)})
	}

	adv, err := s.repo.CreateAdvance(ctx, repository.CreateAdvanceParams{
		RequestID:   sr.ID,
		QuotationID: q.ID,
		ProgressID:  req.ProgressID,
		Stage:       req.Stage,
		Amount:      req.Amount,
		Description: req.Description,
		RequestedBy: caller.ID,
	})
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}

	s.bus.Publish(ctx, events.AdvancePaymentRequested{
		BaseEvent:        events.NewBaseEvent(),
		AdvancePaymentID: adv.ID,
		RequestID:        sr.ID,
		RequestCode:      sr.RequestCode,
		CustomerEmail:    sr.CustomerEmail,
		Stage:            adv.Stage,
		Amount:           adv.Amount,
	})

	return toAdvanceResponse(adv, false), nil
}

// ApproveAdvance moves a pending advance into APPROVED.
func (s *Service) ApproveAdvance(ctx context.Context, caller Caller, id uuid.UUID) (transport.AdvancePaymentResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpAdvanceApprove, false); err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	adv, err := s.repo.GetAdvanceByID(ctx, id)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	if adv.Status != repository.AdvancePending {
		return transport.AdvancePaymentResponse{}, apperr.InvalidState("advance payment is not awaiting approval").
			WithDetails(map[string]interface{}{"advanceStatus": adv.Status})
	}

	approved, err := s.repo.ApproveAdvance(ctx, id)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	return toAdvanceResponse(approved, false), nil
}

// PayAdvance settles an approved advance. When the last outstanding advance on
// a request settles, the request's payment status flips to ADVANCE_PAID. The
// request status itself is untouched; it only advances through payment
// verification and the explicit status endpoint.
func (s *Service) PayAdvance(ctx context.Context, caller Caller, id uuid.UUID) (transport.AdvancePaymentResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpAdvancePay, false); err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	adv, err := s.repo.GetAdvanceByID(ctx, id)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	sr, err := s.requests.GetByID(ctx, adv.RequestID)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}
	if adv.Status != repository.AdvanceApproved {
		return transport.AdvancePaymentResponse{}, apperr.InvalidState("advance payment must be approved before it can be paid").
			WithDetails(map[string]interface{}{"advanceStatus": adv.Status})
	}

	paid, allSettled, err := s.repo.PayAdvance(ctx, id, sr.ID)
	if err != nil {
		return transport.AdvancePaymentResponse{}, err
	}

	s.log.PaymentEvent("advance_paid", sr.RequestCode, "")
	s.bus.Publish(ctx, events.AdvancePaymentPaid{
		BaseEvent:        events.NewBaseEvent(),
		AdvancePaymentID: paid.ID,
		RequestID:        sr.ID,
		RequestCode:      sr.RequestCode,
		CustomerEmail:    sr.CustomerEmail,
		Amount:           paid.Amount,
		AllSettled:       allSettled,
	})

	return toAdvanceResponse(paid, allSettled), nil
}

func (s *Service) approvedQuotation(ctx context.Context, requestID uuid.UUID) (quotationsrepo.Quotation, error) {
	q, err := s.quotations.GetApprovedByRequest(ctx, requestID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return quotationsrepo.Quotation{}, apperr.InvalidState("request has no approved quotation")
		}
		return quotationsrepo.Quotation{}, err
	}
	return q, nil
}

// upiPayload builds the upi:// deep link encoded into the payment QR.
func upiPayload(payeeName string, p repository.Payment) string {
	v := url.Values{}
	v.Set("pn", payeeName)
	v.Set("am", p.Amount.StringFixed(2))
	v.Set("cu", p.Currency)
	v.Set("tn", p.OrderRef)
	return "upi://pay?" + v.Encode()
}

func toPaymentResponse(p repository.Payment) transport.PaymentResponse {
	return transport.PaymentResponse{
		ID:          p.ID,
		RequestID:   p.RequestID,
		QuotationID: p.QuotationID,
		OrderRef:    p.OrderRef,
		PaymentRef:  p.PaymentRef,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Type:        p.Type,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toAdvanceResponse(a repository.AdvancePayment, allSettled bool) transport.AdvancePaymentResponse {
	return transport.AdvancePaymentResponse{
		ID:          a.ID,
		RequestID:   a.RequestID,
		QuotationID: a.QuotationID,
		ProgressID:  a.ProgressID,
		Stage:       a.Stage,
		Amount:      a.Amount,
		Status:      a.Status,
		Description: a.Description,
		RequestedBy: a.RequestedBy,
		InvoiceID:   a.InvoiceID,
		AllSettled:  allSettled,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
