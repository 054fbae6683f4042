package sale

import "errors"

// Class groups rejection reasons by what went wrong.
type Class string

const (
	ClassAvailability  Class = "availability"
	ClassEligibility   Class = "eligibility"
	ClassQuota         Class = "quota"
	ClassPayment       Class = "payment"
	ClassAuthorization Class = "authorization"
	ClassConfiguration Class = "configuration"
)

// Reason is a typed rejection. Every Reason is a package-level sentinel, so
// callers compare with errors.Is.
type Reason struct {
	Class Class
	Code  string
	msg   string
}

func (r *Reason) Error() string { return r.msg }

func newReason(class Class, code, msg string) *Reason {
	return &Reason{Class: class, Code: code, msg: msg}
}

// Rejection reasons.
var (
	ErrSalePaused         = newReason(ClassAvailability, "SALE_PAUSED", "sale is currently paused")
	ErrPhaseNotStartedYet = newReason(ClassAvailability, "PHASE_NOT_STARTED_YET", "phase not started yet")

	ErrNotEligible = newReason(ClassEligibility, "NOT_ELIGIBLE", "address is not eligible for this phase")

	ErrAlreadyClaimed          = newReason(ClassQuota, "ALREADY_CLAIMED", "early mint already claimed")
	ErrEarlyCapReached         = newReason(ClassQuota, "EARLY_CAP_REACHED", "early mint limit reached")
	ErrPerRequestLimitExceeded = newReason(ClassQuota, "PER_REQUEST_LIMIT_EXCEEDED", "quantity exceeds per-request limit")
	ErrSupplyCapReached        = newReason(ClassQuota, "SUPPLY_CAP_REACHED", "max supply reached")
	ErrZeroQuantity            = newReason(ClassQuota, "ZERO_QUANTITY", "quantity must be at least 1")

	ErrInsufficientFunds = newReason(ClassPayment, "INSUFFICIENT_FUNDS", "insufficient funds")

	ErrNotAuthority = newReason(ClassAuthorization, "NOT_AUTHORITY", "caller is not the sale authority")

	ErrInvalidPhaseTransition = newReason(ClassConfiguration, "INVALID_PHASE_TRANSITION", "phase can only move forward")
	ErrInvalidRecipient       = newReason(ClassConfiguration, "INVALID_RECIPIENT", "recipient must not be the zero address")
)

// AsReason extracts the rejection reason from err, if any.
func AsReason(err error) (*Reason, bool) {
	var r *Reason
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ClassOf returns the class of a rejection, or "" for other errors.
func ClassOf(err error) Class {
	if r, ok := AsReason(err); ok {
		return r.Class
	}
	return ""
}

// CodeOf returns the stable code of a rejection, or "" for other errors.
func CodeOf(err error) string {
	if r, ok := AsReason(err); ok {
		return r.Code
	}
	return ""
}
