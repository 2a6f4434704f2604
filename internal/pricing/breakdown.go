package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Breakdown is the priced result of one product line.
type Breakdown struct {
	Product          Product           `json:"product"`
	Currency         string            `json:"currency"`
	PaidAreas        int               `json:"paid_areas"`
	FreeAreas        int               `json:"free_areas"`
	Months           int               `json:"months"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	VolumePercent    decimal.Decimal   `json:"volume_percent"`
	VolumeDiscount   decimal.Decimal   `json:"volume_discount"`
	DurationPercent  decimal.Decimal   `json:"duration_percent"`
	DurationDiscount decimal.Decimal   `json:"duration_discount"`
	ComboDiscount    decimal.Decimal   `json:"combo_discount"`
	Vouchers         []AppliedVoucher  `json:"vouchers,omitempty"`
	Rejected         []RejectedVoucher `json:"rejected_vouchers,omitempty"`
	TotalDiscount    decimal.Decimal   `json:"total_discount"`
	Net              decimal.Decimal   `json:"net"`
	VAT              decimal.Decimal   `json:"vat"`
	Total            decimal.Decimal   `json:"total"`
	Circulation      int               `json:"circulation"`
	Impressions      int               `json:"impressions"`
}

// Line is one labelled row of a breakdown for display.
type Line struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Lines lists the breakdown in display order. Discount rows that are zero are
// left out; discounts are shown negative.
func (b Breakdown) Lines() []Line {
	lines := []Line{{Label: "Subtotal", Amount: b.Subtotal}}
	if !b.VolumeDiscount.IsZero() {
		lines = append(lines, Line{
			Label:  fmt.Sprintf("Multi-area discount (%s%%)", b.VolumePercent.String()),
			Amount: b.VolumeDiscount.Neg(),
		})
	}
	if !b.DurationDiscount.IsZero() {
		lines = append(lines, Line{
			Label:  fmt.Sprintf("%d-month discount (%s%%)", b.Months, b.DurationPercent.String()),
			Amount: b.DurationDiscount.Neg(),
		})
	}
	if !b.ComboDiscount.IsZero() {
		lines = append(lines, Line{Label: "Advert + leaflet combo", Amount: b.ComboDiscount.Neg()})
	}
	for _, v := range b.Vouchers {
		if v.Discount.IsZero() {
			continue
		}
		lines = append(lines, Line{Label: "Voucher " + v.Code, Amount: v.Discount.Neg()})
	}
	return append(lines,
		Line{Label: "Net", Amount: b.Net},
		Line{Label: "VAT", Amount: b.VAT},
		Line{Label: "Total", Amount: b.Total},
	)
}

// finish applies vouchers on top of the running net, clamps the discount to
// the subtotal and adds VAT.
func (b *Breakdown) finish(card *RateCard, in Options, net decimal.Decimal) error {
	applied, rejected, err := ApplyVouchers(in.Vouchers, b.Product, b.Subtotal, net, in.Now)
	if err != nil {
		return err
	}
	b.Vouchers, b.Rejected = applied, rejected
	for _, v := range applied {
		net = net.Sub(v.Discount)
	}

	discount := b.Subtotal.Sub(net)
	if discount.GreaterThan(b.Subtotal) {
		discount = b.Subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	b.TotalDiscount = discount
	b.Net = b.Subtotal.Sub(discount)
	b.VAT = Round(b.Net.Mul(card.VATRate))
	b.Total = b.Net.Add(b.VAT)
	return nil
}

// Quote is the combined price of a draft that may hold both product lines.
type Quote struct {
	Advertising *Breakdown      `json:"advertising,omitempty"`
	Leafleting  *Breakdown      `json:"leafleting,omitempty"`
	Net         decimal.Decimal `json:"net"`
	VAT         decimal.Decimal `json:"vat"`
	Total       decimal.Decimal `json:"total"`
}

func Combine(adv, leaf *Breakdown) Quote {
	q := Quote{Advertising: adv, Leafleting: leaf}
	for _, b := range []*Breakdown{adv, leaf} {
		if b == nil {
			continue
		}
		q.Net = q.Net.Add(b.Net)
		q.VAT = q.VAT.Add(b.VAT)
		q.Total = q.Total.Add(b.Total)
	}
	return q
}
