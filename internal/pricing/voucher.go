package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product string

const (
	ProductAny         Product = "any"
	ProductAdvertising Product = "advertising"
	ProductLeafleting  Product = "leafleting"
)

type VoucherKind string

const (
	VoucherPercent VoucherKind = "percent"
	VoucherFixed   VoucherKind = "fixed"
)

// Voucher is a promotional code. Value is a percentage for percent vouchers
// and an amount for fixed ones.
type Voucher struct {
	Code        string           `json:"code" db:"code"`
	Kind        VoucherKind      `json:"kind" db:"kind"`
	Value       decimal.Decimal  `json:"value" db:"value"`
	MaxDiscount *decimal.Decimal `json:"max_discount,omitempty" db:"max_discount"`
	MinSpend    decimal.Decimal  `json:"min_spend" db:"min_spend"`
	Product     Product          `json:"product" db:"product"`
	Stackable   bool             `json:"stackable" db:"stackable"`
	Active      bool             `json:"active" db:"active"`
	ValidFrom   *time.Time       `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil  *time.Time       `json:"valid_until,omitempty" db:"valid_until"`
	MaxUses     int              `json:"max_uses" db:"max_uses"`
	Used        int              `json:"used" db:"used"`
}

// Reasons a voucher is refused.
const (
	VoucherOK           = ""
	VoucherInactive     = "inactive"
	VoucherNotStarted   = "not_started"
	VoucherExpired      = "expired"
	VoucherUsageLimit   = "usage_limit_reached"
	VoucherWrongProduct = "wrong_product"
	VoucherBelowMin     = "below_min_spend"
	VoucherUnsupported  = "unsupported_kind"
)

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckVoucher returns VoucherOK when v may be applied to an order of the
// given product and subtotal at time now, otherwise the refusal reason.
func CheckVoucher(v Voucher, product Product, subtotal decimal.Decimal, now time.Time) string {
	switch {
	case !v.Active:
		return VoucherInactive
	case v.Kind != VoucherPercent && v.Kind != VoucherFixed:
		return VoucherUnsupported
	case v.ValidFrom != nil && now.Before(*v.ValidFrom):
		return VoucherNotStarted
	case v.ValidUntil != nil && now.After(*v.ValidUntil):
		return VoucherExpired
	case v.MaxUses > 0 && v.Used >= v.MaxUses:
		return VoucherUsageLimit
	case v.Product != "" && v.Product != ProductAny && v.Product != product:
		return VoucherWrongProduct
	case subtotal.LessThan(v.MinSpend):
		return VoucherBelowMin
	}
	return VoucherOK
}

// AppliedVoucher records how much one voucher took off.
type AppliedVoucher struct {
	Code     string          `json:"code"`
	Kind     VoucherKind     `json:"kind"`
	Discount decimal.Decimal `json:"discount"`
}

// RejectedVoucher is a voucher that failed CheckVoucher.
type RejectedVoucher struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ApplyVouchers stacks vouchers onto net (the amount left after volume,
// duration and combo discounts). Percent vouchers go first in submitted order,
// then fixed ones; each works on the running net and none can take it below
// zero. It errors when a non-stackable voucher is combined with another.
func ApplyVouchers(vouchers []Voucher, product Product, subtotal, net decimal.Decimal, now time.Time) ([]AppliedVoucher, []RejectedVoucher, error) {
	vouchers = dedupe(vouchers)

	var eligible []Voucher
	var rejected []RejectedVoucher
	for _, v := range vouchers {
		if reason := CheckVoucher(v, product, subtotal, now); reason != VoucherOK {
			rejected = append(rejected, RejectedVoucher{Code: v.Code, Reason: reason})
			continue
		}
		eligible = append(eligible, v)
	}

	if len(eligible) > 1 {
		for _, v := range eligible {
			if !v.Stackable {
				return nil, rejected, fmt.Errorf("%w: %s", ErrVoucherNotStackable, v.Code)
			}
		}
	}

	ordered := make([]Voucher, 0, len(eligible))
	for _, v := range eligible {
		if v.Kind == VoucherPercent {
			ordered = append(ordered, v)
		}
	}
	for _, v := range eligible {
		if v.Kind == VoucherFixed {
			ordered = append(ordered, v)
		}
	}

	running := net
	applied := make([]AppliedVoucher, 0, len(ordered))
	for _, v := range ordered {
		var off decimal.Decimal
		switch v.Kind {
		case VoucherPercent:
			off = percentOf(running, v.Value)
			if v.MaxDiscount != nil {
				off = minDecimal(off, *v.MaxDiscount)
			}
		case VoucherFixed:
			off = Round(v.Value)
		}
		off = minDecimal(off, running)
		if off.IsNegative() {
			off = decimal.Zero
		}
		running = running.Sub(off)
		applied = append(applied, AppliedVoucher{Code: v.Code, Kind: v.Kind, Discount: off})
	}
	return applied, rejected, nil
}

func dedupe(vouchers []Voucher) []Voucher {
	seen := make(map[string]bool, len(vouchers))
	out := make([]Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		code := NormalizeCode(v.Code)
		if seen[code] {
			continue
		}
		seen[code] = true
		v.Code = code
		out = append(out, v)
	}
	return out
}
