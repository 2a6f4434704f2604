package quote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"adportal/internal/pricing"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VoucherUnknown is the rejection reason for a code that does not exist.
const VoucherUnknown = "unknown"

// Repository abstracts quote persistence and the area and voucher catalog.
type Repository interface {
	Areas(ctx context.Context) ([]pricing.Area, error)
	VouchersByCode(ctx context.Context, codes []string) ([]pricing.Voucher, error)

	// CreateQuote stores q, filling ID and timestamps, and redeems the given
	// voucher codes in the same transaction.
	CreateQuote(ctx context.Context, q *Quote, redeem []string) error
	QuoteByID(ctx context.Context, id int64) (*Quote, error)
	QuoteByRef(ctx context.Context, ref string) (*Quote, error)
	ListQuotes(ctx context.Context, limit int) ([]Quote, error)
	UnsyncedQuotes(ctx context.Context, limit int) ([]Quote, error)
	UpdateQuoteStatus(ctx context.Context, id int64, status Status) error
	MarkSynced(ctx context.Context, id int64, backendID string) error
	Stats(ctx context.Context) (*Stats, error)
}

// Backend is the hosted persistence service every submitted quote is pushed to.
type Backend interface {
	PushQuote(ctx context.Context, q *Quote) (string, error)
}

type Service struct {
	repo     Repository
	backend  Backend
	card     *pricing.RateCard
	logger   *zap.Logger
	validate *validator.Validate
	clock    func() time.Time
	backOff  func() backoff.BackOff
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithBackOff sets the retry policy used when pushing quotes to the backend.
func WithBackOff(policy func() backoff.BackOff) Option {
	return func(s *Service) { s.backOff = policy }
}

// WithSyncMaxElapsed bounds the default exponential retry policy.
func WithSyncMaxElapsed(d time.Duration) Option {
	return func(s *Service) {
		s.backOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = d
			return b
		}
	}
}

// NewService wires the service. backend may be nil, in which case quotes are
// only stored locally.
func NewService(repo Repository, backend Backend, card *pricing.RateCard, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		backend:  backend,
		card:     card,
		logger:   logger,
		validate: newValidator(),
		clock:    time.Now,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) RateCard() *pricing.RateCard { return s.card }

func (s *Service) Now() time.Time { return s.clock() }

// Catalog lists every bookable area.
func (s *Service) Catalog(ctx context.Context) ([]pricing.Area, error) {
	const operation = "quote.Service.Catalog"

	areas, err := s.repo.Areas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return areas, nil
}

// Selector rebuilds an area selector from a stored draft. Areas that no
// longer exist or no longer satisfy the offer are returned as dropped.
func (s *Service) Selector(ctx context.Context, d Draft) (*pricing.AreaSelector, []string, error) {
	areas, err := s.Catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	sel := pricing.NewAreaSelector(areas, s.card.BOGOFEnabled)
	dropped := sel.Restore(d.Selection, s.selectorSize(d))
	return sel, dropped, nil
}

// selectorSize is the size free areas are matched on. Leaflet-only drafts
// match on households.
func (s *Service) selectorSize(d Draft) pricing.AdSize {
	if d.Product.HasAdvertising() {
		return d.AdSize
	}
	return ""
}

// PriceAdvertising prices the advertising line of a draft on its own.
func (s *Service) PriceAdvertising(ctx context.Context, d Draft) (pricing.Breakdown, error) {
	d.Product = ProductAdvertising
	q, err := s.PriceDraft(ctx, d)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return *q.Advertising, nil
}

// PriceLeafleting prices the leaflet line of a draft on its own.
func (s *Service) PriceLeafleting(ctx context.Context, d Draft) (pricing.Breakdown, error) {
	d.Product = ProductLeafleting
	q, err := s.PriceDraft(ctx, d)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return *q.Leafleting, nil
}

// PriceDraft prices every product line of the draft. In a combined booking
// the leaflet line gets the combo discount and is delivered to free areas
// as well, at full rate.
func (s *Service) PriceDraft(ctx context.Context, d Draft) (pricing.Quote, error) {
	if err := d.Validate(); err != nil {
		return pricing.Quote{}, err
	}

	areas, err := s.Catalog(ctx)
	if err != nil {
		return pricing.Quote{}, err
	}
	paid, err := resolve(areas, d.Selection.Paid)
	if err != nil {
		return pricing.Quote{}, err
	}
	free, err := resolve(areas, d.Selection.Free)
	if err != nil {
		return pricing.Quote{}, err
	}

	vouchers, unknown, err := s.lookupVouchers(ctx, d.Vouchers)
	if err != nil {
		return pricing.Quote{}, err
	}
	now := s.clock()

	var adv, leaf *pricing.Breakdown
	if d.Product.HasAdvertising() {
		b, err := pricing.CalculateAdvertising(s.card, pricing.AdvertisingRequest{
			Paid:   paid,
			Free:   free,
			Size:   d.AdSize,
			Months: d.Months,
			Options: pricing.Options{
				Vouchers: vouchersFor(vouchers, pricing.ProductAdvertising, d.Product),
				Now:      now,
			},
		})
		if err != nil {
			return pricing.Quote{}, err
		}
		b.Rejected = append(b.Rejected, unknown...)
		adv = &b
	}

	if d.Product.HasLeafleting() {
		req := pricing.LeafletingRequest{
			Paid:  paid,
			Free:  free,
			Size:  d.LeafletSize,
			Drops: d.Months,
			Options: pricing.Options{
				Vouchers: vouchersFor(vouchers, pricing.ProductLeafleting, d.Product),
				Now:      now,
			},
		}
		if d.Product == ProductBoth {
			req.Paid = slices.Concat(paid, free)
			req.Free = nil
			req.Combo = true
		}
		b, err := pricing.CalculateLeafleting(s.card, req)
		if err != nil {
			return pricing.Quote{}, err
		}
		if adv == nil {
			b.Rejected = append(b.Rejected, unknown...)
		}
		leaf = &b
	}

	return pricing.Combine(adv, leaf), nil
}

func resolve(areas []pricing.Area, ids []string) ([]pricing.Area, error) {
	out := make([]pricing.Area, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(areas, func(a pricing.Area) bool { return a.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", pricing.ErrUnknownArea, id)
		}
		out = append(out, areas[i])
	}
	return out, nil
}

// vouchersFor picks the vouchers for one line. In a combined booking a
// voucher valid for any product is spent on the advertising line only.
func vouchersFor(all []pricing.Voucher, line pricing.Product, product Product) []pricing.Voucher {
	if product != ProductBoth {
		return all
	}
	var out []pricing.Voucher
	for _, v := range all {
		switch {
		case v.Product == line:
			out = append(out, v)
		case line == pricing.ProductAdvertising && (v.Product == pricing.ProductAny || v.Product == ""):
			out = append(out, v)
		}
	}
	return out
}

// lookupVouchers loads the vouchers for codes. Codes with no voucher are
// returned as rejections. A non-stackable voucher combined with any other
// code fails the whole lookup.
func (s *Service) lookupVouchers(ctx context.Context, codes []string) ([]pricing.Voucher, []pricing.RejectedVoucher, error) {
	const operation = "quote.Service.lookupVouchers"

	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		c = pricing.NormalizeCode(c)
		if c != "" && !slices.Contains(normalized, c) {
			normalized = append(normalized, c)
		}
	}
	if len(normalized) == 0 {
		return nil, nil, nil
	}

	found, err := s.repo.VouchersByCode(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", operation, err)
	}

	vouchers := make([]pricing.Voucher, 0, len(found))
	var unknown []pricing.RejectedVoucher
	for _, code := range normalized {
		i := slices.IndexFunc(found, func(v pricing.Voucher) bool { return pricing.NormalizeCode(v.Code) == code })
		if i < 0 {
			unknown = append(unknown, pricing.RejectedVoucher{Code: code, Reason: VoucherUnknown})
			continue
		}
		vouchers = append(vouchers, found[i])
	}

	if len(normalized) > 1 {
		for _, v := range vouchers {
			if !v.Stackable {
				return nil, nil, fmt.Errorf("%w: %s", pricing.ErrVoucherNotStackable, v.Code)
			}
		}
	}
	return vouchers, unknown, nil
}

type VoucherCheck struct {
	Code    string           `json:"code"`
	Valid   bool             `json:"valid"`
	Reason  string           `json:"reason,omitempty"`
	Voucher *pricing.Voucher `json:"voucher,omitempty"`
}

// CheckVoucher tells whether code can be used for product at the given
// subtotal.
func (s *Service) CheckVoucher(ctx context.Context, code string, product pricing.Product, subtotal decimal.Decimal) (VoucherCheck, error) {
	const operation = "quote.Service.CheckVoucher"

	code = pricing.NormalizeCode(code)
	res := VoucherCheck{Code: code}

	found, err := s.repo.VouchersByCode(ctx, []string{code})
	if err != nil {
		return res, fmt.Errorf("%s: %w", operation, err)
	}
	if len(found) == 0 {
		res.Reason = VoucherUnknown
		return res, nil
	}

	v := found[0]
	res.Voucher = &v
	res.Reason = pricing.CheckVoucher(v, product, subtotal, s.clock())
	res.Valid = res.Reason == pricing.VoucherOK
	return res, nil
}

// ValidateSchedule checks the draft's campaign months against its area
// selection and the booking window.
func (s *Service) ValidateSchedule(d Draft, requireComplete bool) error {
	return pricing.ValidateSchedule(s.card, pricing.ScheduleCheck{
		Schedule:        d.Schedule,
		Selection:       d.Selection,
		Allowance:       d.Months,
		RequireComplete: requireComplete,
		Now:             s.clock(),
	})
}

// ValidateContact normalizes c in place and checks it can be used to reach
// the customer.
func (s *Service) ValidateContact(c *Contact) error {
	c.Normalize()
	if err := s.validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	return nil
}

// Submit prices the draft again, stores it and pushes it to the backend.
// A failed push is logged and retried later by SyncPending.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Quote, error) {
	const operation = "quote.Service.Submit"

	if err := s.ValidateContact(&sub.Contact); err != nil {
		return nil, err
	}

	price, err := s.PriceDraft(ctx, sub.Draft)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateSchedule(sub.Draft, true); err != nil {
		return nil, err
	}

	if sub.Source == "" {
		sub.Source = SourceWeb
	}
	q := &Quote{
		Ref:     uuid.NewString(),
		Source:  sub.Source,
		ChatID:  sub.ChatID,
		Status:  StatusNew,
		Draft:   sub.Draft,
		Contact: sub.Contact,
		Price:   price,
	}

	if err := s.repo.CreateQuote(ctx, q, redeemed(price)); err != nil {
		if errors.Is(err, ErrVoucherExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	s.logger.Info("Quote submitted",
		zap.String("quote_ref", q.Ref),
		zap.Int64("quote_id", q.ID),
		zap.String("source", string(q.Source)),
		zap.String("total", price.Total.StringFixed(2)))

	if err := s.Sync(ctx, q); err != nil {
		s.logger.Warn("Quote left unsynced",
			zap.String("quote_ref", q.Ref),
			zap.Error(err))
	}
	return q, nil
}

func redeemed(price pricing.Quote) []string {
	var codes []string
	for _, b := range []*pricing.Breakdown{price.Advertising, price.Leafleting} {
		if b == nil {
			continue
		}
		for _, v := range b.Vouchers {
			if !slices.Contains(codes, v.Code) {
				codes = append(codes, v.Code)
			}
		}
	}
	return codes
}

// Sync pushes q to the backend, retrying temporary failures.
func (s *Service) Sync(ctx context.Context, q *Quote) error {
	const operation = "quote.Service.Sync"

	if s.backend == nil || q.Synced {
		return nil
	}

	backendID, err := backoff.RetryNotifyWithData(
		func() (string, error) {
			id, err := s.backend.PushQuote(ctx, q)
			if err != nil && !isTemporary(err) {
				return "", backoff.Permanent(err)
			}
			return id, err
		},
		backoff.WithContext(s.backOff(), ctx),
		func(err error, next time.Duration) {
			s.logger.Warn("Backend push failed, retrying...",
				zap.String("quote_ref", q.Ref),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	if err := s.repo.MarkSynced(ctx, q.ID, backendID); err != nil {
		return fmt.Errorf("%s: mark synced: %w", operation, err)
	}
	q.Synced = true
	q.BackendID = backendID
	return nil
}

// SyncPending retries the push for up to limit unsynced quotes and returns
// how many went through.
func (s *Service) SyncPending(ctx context.Context, limit int) (int, error) {
	const operation = "quote.Service.SyncPending"

	if s.backend == nil {
		return 0, nil
	}
	pending, err := s.repo.UnsyncedQuotes(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", operation, err)
	}

	synced := 0
	for i := range pending {
		if err := s.Sync(ctx, &pending[i]); err != nil {
			s.logger.Warn("Pending quote sync failed",
				zap.String("quote_ref", pending[i].Ref),
				zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}

func (s *Service) Get(ctx context.Context, ref string) (*Quote, error) {
	const operation = "quote.Service.Get"

	if _, err := uuid.Parse(ref); err != nil {
		return nil, ErrNotFound
	}
	q, err := s.repo.QuoteByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return q, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Quote, error) {
	const operation = "quote.Service.GetByID"

	q, err := s.repo.QuoteByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return q, nil
}

// UpdateStatus moves a quote to a new status and returns the updated quote.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Quote, error) {
	const operation = "quote.Service.UpdateStatus"

	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, operation, q, status)
}

// UpdateStatusByRef is UpdateStatus for callers that only know the reference.
func (s *Service) UpdateStatusByRef(ctx context.Context, ref string, status Status) (*Quote, error) {
	const operation = "quote.Service.UpdateStatusByRef"

	q, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, operation, q, status)
}

func (s *Service) changeStatus(ctx context.Context, operation string, q *Quote, status Status) (*Quote, error) {
	if q.Status == status {
		return q, nil
	}
	if !q.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, status)
	}
	if err := s.repo.UpdateQuoteStatus(ctx, q.ID, status); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	s.logger.Info("Quote status changed",
		zap.String("quote_ref", q.Ref),
		zap.String("from", string(q.Status)),
		zap.String("to", string(status)))

	q.Status = status
	q.UpdatedAt = s.clock()
	return q, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Quote, error) {
	const operation = "quote.Service.Recent"

	quotes, err := s.repo.ListQuotes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return quotes, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	const operation = "quote.Service.Stats"

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return stats, nil
}
