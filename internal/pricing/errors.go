package pricing

import "errors"

var (
	ErrUnknownArea         = errors.New("unknown area")
	ErrNoAreas             = errors.New("no paid areas selected")
	ErrBOGOFDisabled       = errors.New("buy one get one free is not available")
	ErrNoBOGOFMatch        = errors.New("free area has no matching paid area")
	ErrInvalidSize         = errors.New("invalid size")
	ErrInvalidDuration     = errors.New("invalid campaign duration")
	ErrInvalidRateCard     = errors.New("invalid rate card")
	ErrVoucherNotStackable = errors.New("voucher cannot be combined with other vouchers")
	ErrVoucherRejected     = errors.New("voucher rejected")
	ErrAllowanceExceeded   = errors.New("month allowance exceeded")
	ErrInvalidMonth        = errors.New("invalid month")
)

// IsValidation reports whether err is a customer input problem rather than
// an internal failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrUnknownArea, ErrNoAreas, ErrBOGOFDisabled, ErrNoBOGOFMatch,
		ErrInvalidSize, ErrInvalidDuration, ErrVoucherNotStackable,
		ErrVoucherRejected, ErrAllowanceExceeded, ErrInvalidMonth,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var sv *ScheduleViolations
	return errors.As(err, &sv)
}
