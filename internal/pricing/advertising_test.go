package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAdvertising(t *testing.T) {
	card := testCard(t)

	b, err := CalculateAdvertising(card, AdvertisingRequest{
		Paid:   pick("north", "south"),
		Size:   "quarter",
		Months: 3,
	})
	require.NoError(t, err)

	assertMoney(t, "540", b.Subtotal, "subtotal")
	assertMoney(t, "27", b.VolumeDiscount, "volume discount")
	assertMoney(t, "25.65", b.DurationDiscount, "duration discount")
	assertMoney(t, "487.35", b.Net, "net")
	assertMoney(t, "97.47", b.VAT, "vat")
	assertMoney(t, "584.82", b.Total, "total")
	assertMoney(t, "52.65", b.TotalDiscount, "total discount")
	assert.Equal(t, 8000, b.Circulation)
	assert.Equal(t, 24000, b.Impressions)
	assert.Equal(t, ProductAdvertising, b.Product)
}

func TestCalculateAdvertising_BOGOF(t *testing.T) {
	card := testCard(t)

	b, err := CalculateAdvertising(card, AdvertisingRequest{
		Paid:   pick("north", "west"),
		Free:   pick("south", "east"),
		Size:   "quarter",
		Months: 1,
	})
	require.NoError(t, err)

	assertMoney(t, "220", b.Subtotal, "free areas are not charged")
	assertMoney(t, "11", b.VolumeDiscount, "only paid areas count toward volume")
	assertMoney(t, "0", b.DurationDiscount, "single month")
	assertMoney(t, "41.80", b.VAT, "vat")
	assertMoney(t, "250.80", b.Total, "total")
	assert.Equal(t, 16000, b.Circulation)
	assert.Equal(t, 2, b.FreeAreas)
}

func TestCalculateAdvertising_Errors(t *testing.T) {
	card := testCard(t)
	noBOGOF := *card
	noBOGOF.BOGOFEnabled = false

	tests := []struct {
		name string
		card *RateCard
		req  AdvertisingRequest
		want error
	}{
		{"no areas", card, AdvertisingRequest{Size: "quarter", Months: 1}, ErrNoAreas},
		{"unknown size", card, AdvertisingRequest{Paid: pick("north"), Size: "poster", Months: 1}, ErrInvalidSize},
		{"size not sold in area", card, AdvertisingRequest{Paid: pick("north"), Size: "full", Months: 1}, ErrInvalidSize},
		{"bad duration", card, AdvertisingRequest{Paid: pick("north"), Size: "quarter", Months: 2}, ErrInvalidDuration},
		{"free area worth more", card, AdvertisingRequest{Paid: pick("east"), Free: pick("north"), Size: "quarter", Months: 1}, ErrNoBOGOFMatch},
		{"more free than paid", card, AdvertisingRequest{Paid: pick("west"), Free: pick("east", "south"), Size: "quarter", Months: 1}, ErrNoBOGOFMatch},
		{"bogof off", &noBOGOF, AdvertisingRequest{Paid: pick("west"), Free: pick("east"), Size: "quarter", Months: 1}, ErrBOGOFDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateAdvertising(tt.card, tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestCalculateAdvertising_VoucherStacking(t *testing.T) {
	card := testCard(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	b, err := CalculateAdvertising(card, AdvertisingRequest{
		Paid:   pick("north"),
		Size:   "quarter",
		Months: 12,
		Options: Options{
			Now: now,
			Vouchers: []Voucher{
				{Code: "fiver", Kind: VoucherFixed, Value: d("50"), Active: true, Stackable: true},
				{Code: "SAVE10", Kind: VoucherPercent, Value: d("10"), Active: true, Stackable: true},
			},
		},
	})
	require.NoError(t, err)

	assertMoney(t, "1200", b.Subtotal, "subtotal")
	assertMoney(t, "180", b.DurationDiscount, "12 month discount")
	require.Len(t, b.Vouchers, 2)
	assert.Equal(t, "SAVE10", b.Vouchers[0].Code, "percent vouchers apply first")
	assertMoney(t, "102", b.Vouchers[0].Discount, "10% of 1020")
	assert.Equal(t, "FIVER", b.Vouchers[1].Code)
	assertMoney(t, "50", b.Vouchers[1].Discount, "fixed")
	assertMoney(t, "868", b.Net, "net")
	assertMoney(t, "173.60", b.VAT, "vat")
	assertMoney(t, "1041.60", b.Total, "total")
	assertMoney(t, "332", b.TotalDiscount, "total discount")
}

func TestCalculateAdvertising_DiscountNeverExceedsSubtotal(t *testing.T) {
	card := testCard(t)

	b, err := CalculateAdvertising(card, AdvertisingRequest{
		Paid:   pick("east"),
		Size:   "quarter",
		Months: 1,
		Options: Options{Vouchers: []Voucher{
			{Code: "BIG", Kind: VoucherFixed, Value: d("100"), Active: true},
		}},
	})
	require.NoError(t, err)

	assertMoney(t, "60", b.TotalDiscount, "clamped to subtotal")
	assertMoney(t, "0", b.Net, "net")
	assertMoney(t, "0", b.Total, "total")
}

func TestBreakdownLines(t *testing.T) {
	card := testCard(t)
	b, err := CalculateAdvertising(card, AdvertisingRequest{Paid: pick("north"), Size: "quarter", Months: 1})
	require.NoError(t, err)

	lines := b.Lines()
	labels := make([]string, 0, len(lines))
	for _, l := range lines {
		labels = append(labels, l.Label)
	}
	assert.Equal(t, []string{"Subtotal", "Net", "VAT", "Total"}, labels, "zero discounts are omitted")

	b, err = CalculateAdvertising(card, AdvertisingRequest{Paid: pick("north", "south"), Size: "quarter", Months: 3})
	require.NoError(t, err)
	lines = b.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "Multi-area discount (5%)", lines[1].Label)
	assert.True(t, lines[1].Amount.IsNegative())
	assert.Equal(t, "3-month discount (5%)", lines[2].Label)
}

func TestCombine(t *testing.T) {
	card := testCard(t)
	adv, err := CalculateAdvertising(card, AdvertisingRequest{Paid: pick("north"), Size: "quarter", Months: 1})
	require.NoError(t, err)

	q := Combine(&adv, nil)
	assertMoney(t, "120", q.Total, "advert only")

	q = Combine(&adv, &adv)
	assertMoney(t, "240", q.Total, "both lines")
	assertMoney(t, "40", q.VAT, "vat")
}
