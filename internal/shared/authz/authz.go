// Package authz holds the single access policy for portal operations.
// Handlers resolve the caller's role and ownership once and ask the policy,
// instead of scattering role checks through services.
package authz

import (
	"contractor_portal_backend/platform/apperr"
)

// Roles known to the portal.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Operation identifies a protected portal action.
type Operation string

const (
	OpRequestCreate   Operation = "requests.create"
	OpRequestRead     Operation = "requests.read"
	OpRequestList     Operation = "requests.list"
	OpRequestUpdate   Operation = "requests.update"
	OpRequestAdvance  Operation = "requests.advance"
	OpQuotationIssue  Operation = "quotations.issue"
	OpQuotationRead   Operation = "quotations.read"
	OpQuotationDecide Operation = "quotations.decide"
	OpQuotationDelete Operation = "quotations.delete"
	OpPaymentInitiate Operation = "payments.initiate"
	OpPaymentVerify   Operation = "payments.verify"
	OpPaymentRead     Operation = "payments.read"
	OpAdvanceRequest  Operation = "payments.advance.request"
	OpAdvanceApprove  Operation = "payments.advance.approve"
	OpAdvancePay      Operation = "payments.advance.pay"
	OpProgressPost    Operation = "progress.post"
	OpProgressRead    Operation = "progress.read"
	OpProgressDelete  Operation = "progress.delete"
	OpWorkComplete    Operation = "progress.complete"
	OpInvoiceIssue    Operation = "invoices.issue"
	OpInvoiceRead     Operation = "invoices.read"
)

// access describes how broadly a role may exercise an operation.
type access int

const (
	deny access = iota
	owned       // only on resources the caller owns
	any
)

// policy is the complete operation x role table. Operations absent from the
// table are denied for everyone.
var policy = map[Operation]map[string]access{
	OpRequestCreate:   {RoleUser: any, RoleAdmin: any},
	OpRequestRead:     {RoleUser: owned, RoleAdmin: any},
	OpRequestList:     {RoleUser: owned, RoleAdmin: any},
	OpRequestUpdate:   {RoleUser: owned, RoleAdmin: any},
	OpRequestAdvance:  {RoleAdmin: any},
	OpQuotationIssue:  {RoleAdmin: any},
	OpQuotationRead:   {RoleUser: owned, RoleAdmin: any},
	// Deciding a quotation and paying for it belong to the owning user
	// alone; admins get no override.
	OpQuotationDecide: {RoleUser: owned},
	OpQuotationDelete: {RoleAdmin: any},
	OpPaymentInitiate: {RoleUser: owned},
	OpPaymentVerify:   {RoleUser: owned},
	OpPaymentRead:     {RoleUser: owned, RoleAdmin: any},
	OpAdvanceRequest:  {RoleAdmin: any},
	OpAdvanceApprove:  {RoleAdmin: any},
	OpAdvancePay:      {RoleAdmin: any},
	OpProgressPost:    {RoleAdmin: any},
	OpProgressRead:    {RoleUser: owned, RoleAdmin: any},
	OpProgressDelete:  {RoleAdmin: any},
	OpWorkComplete:    {RoleAdmin: any},
	OpInvoiceIssue:    {RoleAdmin: any},
	OpInvoiceRead:     {RoleUser: owned, RoleAdmin: any},
}

// Authorize checks whether a caller with the given role may perform op on a
// resource, where isOwner reports whether the caller owns that resource.
// Returns a forbidden error on denial.
func Authorize(role string, op Operation, isOwner bool) error {
	grants, ok := policy[op]
	if !ok {
		return apperr.Forbidden("operation not permitted")
	}

	switch grants[role] {
	case any:
		return nil
	case owned:
		if isOwner {
			return nil
		}
	}
	return apperr.Forbidden("operation not permitted")
}
