package quote

import (
	"errors"

	"adportal/internal/pricing"
)

var (
	ErrNotFound          = errors.New("quote not found")
	ErrInvalidDraft      = errors.New("invalid draft")
	ErrInvalidContact    = errors.New("invalid contact details")
	ErrInvalidStatus     = errors.New("invalid quote status")
	ErrInvalidTransition = errors.New("status change not allowed")
	ErrVoucherExhausted  = errors.New("voucher usage limit reached")
)

// IsUserError reports whether err was caused by the customer's input rather
// than by the service.
func IsUserError(err error) bool {
	return pricing.IsValidation(err) ||
		errors.Is(err, ErrInvalidDraft) ||
		errors.Is(err, ErrInvalidContact) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrVoucherExhausted)
}
