// Package notification subscribes to domain events and turns them into
// outgoing emails. Domain modules publish events without knowing anything
// about recipients, templates, or delivery; this module owns all of that.
// Messages are written to the notification outbox first and then enqueued
// for delivery, so a Redis outage never loses a notification.
package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/notification/outbox"
	"contractor_portal_backend/internal/scheduler"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// outboxWriter is the slice of the outbox repository this module needs.
type outboxWriter interface {
	Insert(ctx context.Context, params outbox.InsertParams) (uuid.UUID, error)
}

// Module translates domain events into customer and admin emails.
type Module struct {
	outbox   outboxWriter
	enqueuer scheduler.NotificationEnqueuer
	cfg      config.SMTPConfig
	log      *logger.Logger
}

// NewModule wires the notification module. The enqueuer may be nil when the
// scheduler is not configured; the outbox dispatcher sweep still delivers.
func NewModule(pool *pgxpool.Pool, enqueuer scheduler.NotificationEnqueuer, cfg config.SMTPConfig, log *logger.Logger) *Module {
	return newModule(outbox.New(pool), enqueuer, cfg, log)
}

func newModule(store outboxWriter, enqueuer scheduler.NotificationEnqueuer, cfg config.SMTPConfig, log *logger.Logger) *Module {
	return &Module{
		outbox:   store,
		enqueuer: enqueuer,
		cfg:      cfg,
		log:      log,
	}
}

// RegisterHandlers subscribes the module to every event it emails about.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.UserRegistered{}.EventName(), m)
	bus.Subscribe(events.RequestCreated{}.EventName(), m)
	bus.Subscribe(events.RequestStatusAdvanced{}.EventName(), m)
	bus.Subscribe(events.RequestCompleted{}.EventName(), m)
	bus.Subscribe(events.QuotationIssued{}.EventName(), m)
	bus.Subscribe(events.QuotationApproved{}.EventName(), m)
	bus.Subscribe(events.QuotationRejected{}.EventName(), m)
	bus.Subscribe(events.PaymentCaptured{}.EventName(), m)
	bus.Subscribe(events.AdvancePaymentRequested{}.EventName(), m)
	bus.Subscribe(events.AdvancePaymentPaid{}.EventName(), m)
	bus.Subscribe(events.WorkProgressAdded{}.EventName(), m)
	bus.Subscribe(events.InvoiceIssued{}.EventName(), m)
}

// Handle dispatches a single event to its typed handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.UserRegistered:
		return m.handleUserRegistered(ctx, e)
	case events.RequestCreated:
		return m.handleRequestCreated(ctx, e)
	case events.RequestStatusAdvanced:
		return m.handleRequestStatusAdvanced(ctx, e)
	case events.RequestCompleted:
		return m.handleRequestCompleted(ctx, e)
	case events.QuotationIssued:
		return m.handleQuotationIssued(ctx, e)
	case events.QuotationApproved:
		return m.handleQuotationApproved(ctx, e)
	case events.QuotationRejected:
		return m.handleQuotationRejected(ctx, e)
	case events.PaymentCaptured:
		return m.handlePaymentCaptured(ctx, e)
	case events.AdvancePaymentRequested:
		return m.handleAdvanceRequested(ctx, e)
	case events.AdvancePaymentPaid:
		return m.handleAdvancePaid(ctx, e)
	case events.WorkProgressAdded:
		return m.handleWorkProgressAdded(ctx, e)
	case events.InvoiceIssued:
		return m.handleInvoiceIssued(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleUserRegistered(ctx context.Context, e events.UserRegistered) error {
	body := emailBody("Welcome aboard",
		fmt.Sprintf("Hi %s,", e.Name),
		"Your account has been created. You can now submit service requests and track them from your dashboard.",
	)
	return m.queue(ctx, e.EventName(), e.Email, "Welcome to the portal", body)
}

func (m *Module) handleRequestCreated(ctx context.Context, e events.RequestCreated) error {
	custBody := emailBody("Request received",
		fmt.Sprintf("Your service request %s (%s) has been received.", e.RequestCode, e.ServiceType),
		"Our team will review it and issue a quotation shortly.",
	)
	if err := m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Request %s received", e.RequestCode), custBody); err != nil {
		return err
	}

	adminBody := emailBody("New service request",
		fmt.Sprintf("A new %s request %s is waiting for a quotation.", e.ServiceType, e.RequestCode),
	)
	return m.queueAdmin(ctx, e.EventName(),
		fmt.Sprintf("New request %s", e.RequestCode), adminBody)
}

func (m *Module) handleRequestStatusAdvanced(ctx context.Context, e events.RequestStatusAdvanced) error {
	body := emailBody("Request update",
		fmt.Sprintf("Your request %s moved from %s to %s.", e.RequestCode, e.FromStatus, e.ToStatus),
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Request %s is now %s", e.RequestCode, e.ToStatus), body)
}

func (m *Module) handleRequestCompleted(ctx context.Context, e events.RequestCompleted) error {
	body := emailBody("Work completed",
		fmt.Sprintf("All work on your request %s has been completed.", e.RequestCode),
		"Thank you for choosing us. We would love to hear your feedback.",
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Request %s completed", e.RequestCode), body)
}

func (m *Module) handleQuotationIssued(ctx context.Context, e events.QuotationIssued) error {
	body := emailBody("Quotation ready",
		fmt.Sprintf("Quotation %s for your request %s is ready.", e.QuotationNumber, e.RequestCode),
		fmt.Sprintf("Total amount (incl. GST): %s.", money(e.TotalAmount)),
		"Log in to review and approve or reject it.",
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Quotation %s for request %s", e.QuotationNumber, e.RequestCode), body)
}

func (m *Module) handleQuotationApproved(ctx context.Context, e events.QuotationApproved) error {
	custBody := emailBody("Quotation approved",
		fmt.Sprintf("You approved quotation %s for request %s.", e.QuotationNumber, e.RequestCode),
		fmt.Sprintf("Amount payable: %s. You can proceed to payment from your dashboard.", money(e.TotalAmount)),
	)
	if err := m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Quotation %s approved", e.QuotationNumber), custBody); err != nil {
		return err
	}

	adminBody := emailBody("Quotation approved",
		fmt.Sprintf("The customer approved quotation %s for request %s (%s).",
			e.QuotationNumber, e.RequestCode, money(e.TotalAmount)),
	)
	return m.queueAdmin(ctx, e.EventName(),
		fmt.Sprintf("Quotation %s approved by customer", e.QuotationNumber), adminBody)
}

func (m *Module) handleQuotationRejected(ctx context.Context, e events.QuotationRejected) error {
	lines := []string{
		fmt.Sprintf("The customer rejected quotation %s for request %s.", e.QuotationNumber, e.RequestCode),
	}
	if strings.TrimSpace(e.Reason) != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", e.Reason))
	}
	lines = append(lines, "The request is back in REQUESTED state and a revised quotation can be issued.")
	return m.queueAdmin(ctx, e.EventName(),
		fmt.Sprintf("Quotation %s rejected", e.QuotationNumber),
		emailBody("Quotation rejected", lines...))
}

func (m *Module) handlePaymentCaptured(ctx context.Context, e events.PaymentCaptured) error {
	custBody := emailBody("Payment received",
		fmt.Sprintf("We received your payment of %s for request %s.", money(e.Amount), e.RequestCode),
		fmt.Sprintf("Payment reference: %s.", e.OrderRef),
		"Work on your request will begin shortly.",
	)
	if err := m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Payment received for request %s", e.RequestCode), custBody); err != nil {
		return err
	}

	adminBody := emailBody("Payment captured",
		fmt.Sprintf("Payment of %s was captured for request %s (order %s).",
			money(e.Amount), e.RequestCode, e.OrderRef),
	)
	return m.queueAdmin(ctx, e.EventName(),
		fmt.Sprintf("Payment captured for request %s", e.RequestCode), adminBody)
}

func (m *Module) handleAdvanceRequested(ctx context.Context, e events.AdvancePaymentRequested) error {
	body := emailBody("Advance payment requested",
		fmt.Sprintf("An advance payment of %s has been requested for the %s stage of your request %s.",
			money(e.Amount), e.Stage, e.RequestCode),
		"Log in to review the details.",
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Advance payment requested for request %s", e.RequestCode), body)
}

func (m *Module) handleAdvancePaid(ctx context.Context, e events.AdvancePaymentPaid) error {
	lines := []string{
		fmt.Sprintf("Your advance payment of %s for request %s has been settled.", money(e.Amount), e.RequestCode),
	}
	if e.AllSettled {
		lines = append(lines, "All requested advances are now settled. Work on your request will begin shortly.")
	}
	if err := m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Advance payment settled for request %s", e.RequestCode),
		emailBody("Advance payment settled", lines...)); err != nil {
		return err
	}

	adminBody := emailBody("Advance payment settled",
		fmt.Sprintf("Advance of %s for request %s was settled (all settled: %t).",
			money(e.Amount), e.RequestCode, e.AllSettled),
	)
	return m.queueAdmin(ctx, e.EventName(),
		fmt.Sprintf("Advance settled for request %s", e.RequestCode), adminBody)
}

func (m *Module) handleWorkProgressAdded(ctx context.Context, e events.WorkProgressAdded) error {
	body := emailBody("Work progress update",
		fmt.Sprintf("A new progress update was posted on your request %s:", e.RequestCode),
		e.Title,
		"Log in to view photos and details.",
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Progress update on request %s", e.RequestCode), body)
}

func (m *Module) handleInvoiceIssued(ctx context.Context, e events.InvoiceIssued) error {
	body := emailBody("Invoice issued",
		fmt.Sprintf("Invoice %s has been issued for your request %s.", e.InvoiceNumber, e.RequestCode),
		fmt.Sprintf("Invoice total: %s. Remaining balance on the request: %s.",
			money(e.TotalAmount), money(e.BalanceAmount)),
	)
	return m.queue(ctx, e.EventName(), e.CustomerEmail,
		fmt.Sprintf("Invoice %s for request %s", e.InvoiceNumber, e.RequestCode), body)
}

// queue writes the message to the outbox and asks the scheduler to deliver
// it. Enqueue failures are only logged; the dispatcher sweep picks the
// record up from the outbox.
func (m *Module) queue(ctx context.Context, event, recipient, subject, body string) error {
	if strings.TrimSpace(recipient) == "" {
		m.log.Warn("notification skipped: no recipient", "event", event, "subject", subject)
		return nil
	}
	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Event:     event,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		m.log.Error("failed to write notification outbox", "event", event, "recipient", recipient, "error", err)
		return err
	}
	if m.enqueuer == nil {
		return nil
	}
	if err := m.enqueuer.EnqueueNotificationDelivery(ctx, scheduler.NotificationDeliverPayload{OutboxID: id.String()}); err != nil {
		m.log.Error("failed to enqueue notification delivery", "outboxId", id, "event", event, "error", err)
	}
	return nil
}

func (m *Module) queueAdmin(ctx context.Context, event, subject, body string) error {
	return m.queue(ctx, event, m.cfg.GetAdminEmail(), subject, body)
}

// emailBody renders a minimal HTML email with a heading and paragraphs.
func emailBody(heading string, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">`)
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(heading)))
	for _, p := range paragraphs {
		b.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(p)))
	}
	b.WriteString("</div>")
	return b.String()
}

func money(amount decimal.Decimal) string {
	return "₹" + amount.StringFixed(2)
}
