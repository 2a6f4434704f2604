package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Options are inputs shared by both calculators.
type Options struct {
	Vouchers []Voucher
	Now      time.Time
}

type AdvertisingRequest struct {
	Paid   []Area
	Free   []Area
	Size   AdSize
	Months int
	Options
}

// CalculateAdvertising prices a display advert booked in the paid areas for
// Months issues. Free areas add circulation but no cost.
func CalculateAdvertising(card *RateCard, req AdvertisingRequest) (Breakdown, error) {
	if len(req.Paid) == 0 {
		return Breakdown{}, ErrNoAreas
	}
	if _, ok := card.AdSize(req.Size); !ok {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrInvalidSize, req.Size)
	}
	durationPct, err := card.DurationPercent(req.Months)
	if err != nil {
		return Breakdown{}, err
	}
	if len(req.Free) > 0 {
		if !card.BOGOFEnabled {
			return Breakdown{}, ErrBOGOFDisabled
		}
		if !MatchBOGOF(req.Paid, req.Free, req.Size) {
			return Breakdown{}, ErrNoBOGOFMatch
		}
	}

	months := decimal.NewFromInt(int64(req.Months))
	subtotal := decimal.Zero
	circulation := 0
	for _, a := range req.Paid {
		price, ok := a.Price(req.Size)
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: %q not sold in %s", ErrInvalidSize, req.Size, a.ID)
		}
		subtotal = subtotal.Add(price.Mul(months))
		circulation += a.Circulation
	}
	for _, a := range req.Free {
		circulation += a.Circulation
	}

	b := Breakdown{
		Product:         ProductAdvertising,
		Currency:        card.Currency,
		PaidAreas:       len(req.Paid),
		FreeAreas:       len(req.Free),
		Months:          req.Months,
		Subtotal:        Round(subtotal),
		VolumePercent:   card.VolumePercent(len(req.Paid)),
		DurationPercent: durationPct,
		Circulation:     circulation,
		Impressions:     circulation * req.Months,
	}
	b.VolumeDiscount = percentOf(b.Subtotal, b.VolumePercent)
	net := b.Subtotal.Sub(b.VolumeDiscount)
	b.DurationDiscount = percentOf(net, b.DurationPercent)
	net = net.Sub(b.DurationDiscount)

	if err := b.finish(card, req.Options, net); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}
