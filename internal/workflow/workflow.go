// Package workflow defines the service request lifecycle: the ordered status
// sequence, the triggers that move a request between statuses, and the guard
// that rejects out-of-order transitions.
package workflow

import (
	"contractor_portal_backend/platform/apperr"
)

// Status is a service request lifecycle state.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusQuoted     Status = "QUOTED"
	StatusApproved   Status = "APPROVED"
	StatusPayment    Status = "PAYMENT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// sequence is the canonical forward order of the lifecycle.
var sequence = []Status{
	StatusRequested,
	StatusQuoted,
	StatusApproved,
	StatusPayment,
	StatusInProgress,
	StatusCompleted,
}

// Trigger identifies the business action that moves a request between statuses.
type Trigger string

const (
	TriggerQuotationIssued   Trigger = "QUOTATION_ISSUED"
	TriggerQuotationApproved Trigger = "QUOTATION_APPROVED"
	TriggerQuotationRejected Trigger = "QUOTATION_REJECTED"
	TriggerQuotationDeleted  Trigger = "QUOTATION_DELETED"
	TriggerPaymentCaptured   Trigger = "PAYMENT_CAPTURED"
	TriggerWorkStarted       Trigger = "WORK_STARTED"
	TriggerWorkCompleted     Trigger = "WORK_COMPLETED"
)

// transitions maps (current status, trigger) to the resulting status.
// Statuses and triggers absent from the table are invalid combinations.
var transitions = map[Status]map[Trigger]Status{
	StatusRequested: {
		TriggerQuotationIssued: StatusQuoted,
	},
	StatusQuoted: {
		// Re-issuing replaces the active quotation without moving the request.
		TriggerQuotationIssued:   StatusQuoted,
		TriggerQuotationApproved: StatusApproved,
		TriggerQuotationRejected: StatusRequested,
		TriggerQuotationDeleted:  StatusRequested,
	},
	StatusApproved: {
		TriggerQuotationIssued: StatusQuoted,
		TriggerPaymentCaptured: StatusPayment,
	},
	StatusPayment: {
		TriggerQuotationIssued: StatusQuoted,
		TriggerWorkStarted:     StatusInProgress,
	},
	StatusInProgress: {
		TriggerQuotationIssued: StatusQuoted,
		TriggerWorkCompleted:   StatusCompleted,
	},
	StatusCompleted: {},
}

// Sequence returns the canonical lifecycle order.
func Sequence() []Status {
	out := make([]Status, len(sequence))
	copy(out, sequence)
	return out
}

// IsValid reports whether s is a known lifecycle status.
func IsValid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether a request in status s can never move again.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0 && IsValid(s)
}

// Next returns the immediate successor of s in the canonical sequence.
// The second return value is false for the final status and unknown statuses.
func Next(s Status) (Status, bool) {
	for i, status := range sequence {
		if status == s && i+1 < len(sequence) {
			return sequence[i+1], true
		}
	}
	return "", false
}

// CanAdvance validates a direct status update from current to target.
// Only the immediate next status in the sequence is allowed; anything else
// returns an invalid-state error carrying the current status and the allowed
// next status so callers can report what would have been accepted.
func CanAdvance(current, target Status) error {
	if !IsValid(current) {
		return apperr.InvalidState("unknown current status").
			WithDetails(map[string]interface{}{"currentStatus": string(current)})
	}
	if !IsValid(target) {
		return invalidTransition(current, "unknown target status")
	}

	next, ok := Next(current)
	if !ok {
		return invalidTransition(current, "request is already in its final status")
	}
	if target != next {
		return invalidTransition(current, "status can only advance to the next step")
	}
	return nil
}

// Apply resolves the status a request moves to when trigger fires in the
// current status. An undefined combination returns an invalid-state error.
func Apply(current Status, trigger Trigger) (Status, error) {
	allowed, ok := transitions[current]
	if !ok {
		return "", apperr.InvalidState("unknown current status").
			WithDetails(map[string]interface{}{"currentStatus": string(current)})
	}

	next, ok := allowed[trigger]
	if !ok {
		return "", invalidTransition(current, "action not allowed in current status").
			WithDetails(transitionDetails(current, map[string]interface{}{
				"trigger": string(trigger),
			}))
	}
	return next, nil
}

func invalidTransition(current Status, message string) *apperr.Error {
	return apperr.InvalidState(message).WithDetails(transitionDetails(current, nil))
}

func transitionDetails(current Status, extra map[string]interface{}) map[string]interface{} {
	details := map[string]interface{}{
		"currentStatus": string(current),
	}
	if next, ok := Next(current); ok {
		details["allowedNextStatus"] = string(next)
	} else {
		details["allowedNextStatus"] = nil
	}
	for k, v := range extra {
		details[k] = v
	}
	return details
}
