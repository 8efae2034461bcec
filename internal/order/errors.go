package order

import (
	"fmt"

	"tg_certbot/internal/model"
)

// ValidationError reports a user-correctable domain or type problem.
// Reason is the user-facing message; no state change has happened.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// QuotaExhaustedError reports that the user has no issuance attempts left
type QuotaExhaustedError struct {
	Privileged bool
	Remaining  int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted (remaining=%d)", e.Remaining)
}

// StateGuardError reports an operation that is illegal for the order's
// current status. No state change has happened.
type StateGuardError struct {
	Message string
}

func (e *StateGuardError) Error() string { return e.Message }

// DuplicateOrderError reports that another non-issued order already claims
// the domain. Carries the conflicting order so the caller can render its
// status instead.
type DuplicateOrderError struct {
	Order *model.CertOrder
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("active order %d already claims domain %s", e.Order.ID, e.Order.Domain)
}

// ExternalToolError reports a failed acme.sh invocation. Output is surfaced
// verbatim to the user.
type ExternalToolError struct {
	Step   string // dry_run|renew|install
	Output string
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("acme.sh %s failed: %s", e.Step, e.Output)
}

// DNSNotPropagatedError is the soft failure: the TXT record is not visible
// yet, the order stays in dns_wait and the user should retry later.
type DNSNotPropagatedError struct {
	Host string
}

func (e *DNSNotPropagatedError) Error() string {
	return fmt.Sprintf("TXT record for %s not visible yet", e.Host)
}

// NotFoundError reports an unknown order or user
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// OrderBusyError reports that another transition currently holds the
// per-order lock (e.g. a double-tap on verify).
type OrderBusyError struct {
	OrderID int
}

func (e *OrderBusyError) Error() string {
	return fmt.Sprintf("order %d is being processed", e.OrderID)
}
