package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testCard(t *testing.T) *RateCard {
	t.Helper()
	card, err := DefaultRateCard()
	require.NoError(t, err)
	return card
}

func testAreas() map[string]Area {
	return map[string]Area{
		"north": {ID: "north", Name: "North", Circulation: 5000, Households: 4800,
			Prices: map[AdSize]decimal.Decimal{"quarter": d("100"), "half": d("180")}},
		"south": {ID: "south", Name: "South", Circulation: 3000, Households: 3100,
			Prices: map[AdSize]decimal.Decimal{"quarter": d("80"), "half": d("150")}},
		"east": {ID: "east", Name: "East", Circulation: 2000,
			Prices: map[AdSize]decimal.Decimal{"quarter": d("60"), "half": d("110")}},
		"west": {ID: "west", Name: "West", Circulation: 6000, Households: 6000,
			Prices: map[AdSize]decimal.Decimal{"quarter": d("120"), "half": d("200")}},
	}
}

func pick(ids ...string) []Area {
	all := testAreas()
	out := make([]Area, 0, len(ids))
	for _, id := range ids {
		out = append(out, all[id])
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}
