package quote

import (
	"context"
	"slices"
	"sync"
	"time"

	"adportal/internal/pricing"
)

// MemoryRepository keeps everything in process memory. Nothing survives a
// restart; it is meant for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	areas    []pricing.Area
	vouchers map[string]pricing.Voucher
	quotes   []*Quote
	nextID   int64
	now      func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository(areas []pricing.Area, vouchers ...pricing.Voucher) *MemoryRepository {
	r := &MemoryRepository{areas: areas, vouchers: make(map[string]pricing.Voucher), now: time.Now}
	for _, v := range vouchers {
		r.vouchers[pricing.NormalizeCode(v.Code)] = v
	}
	return r
}

func (r *MemoryRepository) Areas(ctx context.Context) ([]pricing.Area, error) {
	return r.areas, nil
}

func (r *MemoryRepository) VouchersByCode(ctx context.Context, codes []string) ([]pricing.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []pricing.Voucher
	for _, c := range codes {
		if v, ok := r.vouchers[c]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateQuote(ctx context.Context, q *Quote, redeem []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range redeem {
		v := r.vouchers[c]
		if v.MaxUses > 0 && v.Used >= v.MaxUses {
			return ErrVoucherExhausted
		}
	}
	for _, c := range redeem {
		v := r.vouchers[c]
		v.Used++
		r.vouchers[c] = v
	}

	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = r.now()
	q.UpdatedAt = q.CreatedAt
	stored := *q
	r.quotes = append(r.quotes, &stored)
	return nil
}

func (r *MemoryRepository) find(match func(*Quote) bool) (*Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.quotes, match)
	if i < 0 {
		return nil, ErrNotFound
	}
	q := *r.quotes[i]
	return &q, nil
}

func (r *MemoryRepository) QuoteByID(ctx context.Context, id int64) (*Quote, error) {
	return r.find(func(q *Quote) bool { return q.ID == id })
}

func (r *MemoryRepository) QuoteByRef(ctx context.Context, ref string) (*Quote, error) {
	return r.find(func(q *Quote) bool { return q.Ref == ref })
}

func (r *MemoryRepository) ListQuotes(ctx context.Context, limit int) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Quote
	for i := len(r.quotes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *r.quotes[i])
	}
	return out, nil
}

func (r *MemoryRepository) UnsyncedQuotes(ctx context.Context, limit int) ([]Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Quote
	for _, q := range r.quotes {
		if !q.Synced && len(out) < limit {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateQuoteStatus(ctx context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range r.quotes {
		if q.ID == id {
			q.Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) MarkSynced(ctx context.Context, id int64, backendID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range r.quotes {
		if q.ID == id {
			q.Synced = true
			q.BackendID = backendID
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) Stats(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &Stats{StatusCounts: make(map[Status]int)}
	for _, q := range r.quotes {
		stats.TotalQuotes++
		stats.TotalValue = stats.TotalValue.Add(q.Price.Total)
		stats.StatusCounts[q.Status]++
		if !q.Synced {
			stats.Unsynced++
		}
	}
	return stats, nil
}
