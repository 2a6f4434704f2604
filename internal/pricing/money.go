package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds a money amount to pence.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// percentOf returns amount × pct/100 rounded to pence.
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() || amount.IsZero() {
		return decimal.Zero
	}
	return Round(amount.Mul(pct).Div(hundred))
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// FormatMoney renders an amount as £1,234.50. Negative amounts get a leading minus.
func FormatMoney(symbol string, d decimal.Decimal) string {
	s := Round(d).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := symbol + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// CurrencySymbol maps an ISO currency code to its display symbol.
func CurrencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "GBP", "":
		return "£"
	case "EUR":
		return "€"
	case "USD":
		return "$"
	default:
		return strings.ToUpper(code) + " "
	}
}
