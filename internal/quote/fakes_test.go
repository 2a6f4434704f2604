package quote

import (
	"context"
	"sync"

	"adportal/internal/pricing"

	"github.com/shopspring/decimal"
)

// fakeBackend fails with the queued errors first, then succeeds.
type fakeBackend struct {
	mu     sync.Mutex
	errs   []error
	pushed []string
}

func (b *fakeBackend) PushQuote(ctx context.Context, q *Quote) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return "", err
	}
	b.pushed = append(b.pushed, q.Ref)
	return "bk-" + q.Ref[:8], nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAreas() []pricing.Area {
	return []pricing.Area{
		{ID: "north", Name: "North", Circulation: 5000, Households: 4800,
			Prices: map[pricing.AdSize]decimal.Decimal{"quarter": dec("100"), "half": dec("180")}},
		{ID: "south", Name: "South", Circulation: 3000, Households: 3100,
			Prices: map[pricing.AdSize]decimal.Decimal{"quarter": dec("80"), "half": dec("150")}},
		{ID: "west", Name: "West", Circulation: 6000, Households: 6000,
			Prices: map[pricing.AdSize]decimal.Decimal{"quarter": dec("120"), "half": dec("200")}},
	}
}
