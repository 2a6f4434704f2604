package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

type LeafletingRequest struct {
	Paid  []Area
	Free  []Area
	Size  string
	Drops int
	// Combo is set when the same quote also books advertising.
	Combo bool
	Options
}

// CalculateLeafleting prices door-to-door leaflet drops, one per month.
func CalculateLeafleting(card *RateCard, req LeafletingRequest) (Breakdown, error) {
	if len(req.Paid) == 0 {
		return Breakdown{}, ErrNoAreas
	}
	size, ok := card.LeafletSize(req.Size)
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: leaflet %q", ErrInvalidSize, req.Size)
	}
	durationPct, err := card.LeafletDurationPercent(req.Drops)
	if err != nil {
		return Breakdown{}, err
	}
	if len(req.Free) > 0 {
		if !card.BOGOFEnabled {
			return Breakdown{}, ErrBOGOFDisabled
		}
		if !MatchBOGOF(req.Paid, req.Free, "") {
			return Breakdown{}, ErrNoBOGOFMatch
		}
	}

	drops := decimal.NewFromInt(int64(req.Drops))
	subtotal := decimal.Zero
	households := 0
	for _, a := range req.Paid {
		subtotal = subtotal.Add(DropPrice(card, size, a).Mul(drops))
		households += a.households()
	}
	for _, a := range req.Free {
		households += a.households()
	}

	b := Breakdown{
		Product:         ProductLeafleting,
		Currency:        card.Currency,
		PaidAreas:       len(req.Paid),
		FreeAreas:       len(req.Free),
		Months:          req.Drops,
		Subtotal:        Round(subtotal),
		DurationPercent: durationPct,
		Circulation:     households,
		Impressions:     households * req.Drops,
	}
	b.DurationDiscount = percentOf(b.Subtotal, durationPct)
	net := b.Subtotal.Sub(b.DurationDiscount)
	if req.Combo {
		b.ComboDiscount = percentOf(net, card.ComboPercent)
		net = net.Sub(b.ComboDiscount)
	}

	if err := b.finish(card, req.Options, net); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

// DropPrice is the cost of one drop of size in area, never below the rate
// card minimum.
func DropPrice(card *RateCard, size LeafletSize, a Area) decimal.Decimal {
	price := decimal.NewFromInt(int64(a.households())).Div(thousand).Mul(size.PricePerThousand)
	price = Round(price)
	if price.LessThan(card.LeafletMinimumPerDrop) {
		return card.LeafletMinimumPerDrop
	}
	return price
}
