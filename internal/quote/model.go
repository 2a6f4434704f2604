package quote

import (
	"fmt"
	"time"

	"adportal/internal/pricing"

	"github.com/shopspring/decimal"
)

// Product is what the customer is booking.
type Product string

const (
	ProductAdvertising Product = "advertising"
	ProductLeafleting  Product = "leafleting"
	ProductBoth        Product = "both"
)

func (p Product) Valid() bool {
	switch p {
	case ProductAdvertising, ProductLeafleting, ProductBoth:
		return true
	}
	return false
}

func (p Product) HasAdvertising() bool { return p == ProductAdvertising || p == ProductBoth }
func (p Product) HasLeafleting() bool  { return p == ProductLeafleting || p == ProductBoth }

func (p Product) Title() string {
	switch p {
	case ProductAdvertising:
		return "Magazine advertising"
	case ProductLeafleting:
		return "Leaflet distribution"
	case ProductBoth:
		return "Advertising + leaflets"
	}
	return string(p)
}

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusNew:       {StatusContacted, StatusBooked, StatusCancelled},
	StatusContacted: {StatusBooked, StatusCancelled},
	StatusBooked:    {StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNew, StatusContacted, StatusBooked, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// CanTransition reports whether a quote in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Source is the front door a quote was submitted through.
type Source string

const (
	SourceTelegram Source = "telegram"
	SourceWeb      Source = "web"
)

// Draft is a quote being built. Months is the campaign length: advert issues,
// leaflet drops, or both when the product is ProductBoth.
type Draft struct {
	Product     Product           `json:"product"`
	Selection   pricing.Selection `json:"selection"`
	AdSize      pricing.AdSize    `json:"ad_size,omitempty"`
	LeafletSize string            `json:"leaflet_size,omitempty"`
	Months      int               `json:"months"`
	Schedule    pricing.Schedule  `json:"schedule,omitempty"`
	Vouchers    []string          `json:"vouchers,omitempty"`
}

// Validate checks the draft is complete enough to be priced.
func (d Draft) Validate() error {
	switch {
	case !d.Product.Valid():
		return fmt.Errorf("%w: unknown product %q", ErrInvalidDraft, d.Product)
	case len(d.Selection.Paid) == 0:
		return pricing.ErrNoAreas
	case d.Product.HasAdvertising() && d.AdSize == "":
		return fmt.Errorf("%w: ad size is required", ErrInvalidDraft)
	case d.Product.HasLeafleting() && d.LeafletSize == "":
		return fmt.Errorf("%w: leaflet size is required", ErrInvalidDraft)
	case d.Months < 1:
		return fmt.Errorf("%w: duration is required", ErrInvalidDraft)
	}
	return nil
}

type Contact struct {
	Name    string `json:"name" validate:"required,max=120"`
	Company string `json:"company,omitempty" validate:"max=120"`
	Email   string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone   string `json:"phone,omitempty" validate:"required_without=Email,omitempty,phone"`
}

// Quote is a submitted, priced draft.
type Quote struct {
	ID        int64         `json:"id" db:"id"`
	Ref       string        `json:"ref" db:"ref"`
	Source    Source        `json:"source" db:"source"`
	ChatID    int64         `json:"-" db:"chat_id"`
	Status    Status        `json:"status" db:"status"`
	Draft     Draft         `json:"draft"`
	Contact   Contact       `json:"contact"`
	Price     pricing.Quote `json:"price"`
	Synced    bool          `json:"synced" db:"synced"`
	BackendID string        `json:"backend_id,omitempty" db:"backend_id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Lines flattens both product lines for display.
func (q *Quote) Lines() []pricing.Line {
	var lines []pricing.Line
	for _, b := range []*pricing.Breakdown{q.Price.Advertising, q.Price.Leafleting} {
		if b == nil {
			continue
		}
		lines = append(lines, b.Lines()...)
	}
	return lines
}

type Submission struct {
	Draft   Draft
	Contact Contact
	Source  Source
	ChatID  int64
}

type Stats struct {
	TotalQuotes  int             `json:"total_quotes" db:"total_quotes"`
	TotalValue   decimal.Decimal `json:"total_value" db:"total_value"`
	TodayQuotes  int             `json:"today_quotes"`
	TodayValue   decimal.Decimal `json:"today_value"`
	WeekQuotes   int             `json:"week_quotes"`
	WeekValue    decimal.Decimal `json:"week_value"`
	MonthQuotes  int             `json:"month_quotes"`
	MonthValue   decimal.Decimal `json:"month_value"`
	BookedValue  decimal.Decimal `json:"booked_value"`
	Unsynced     int             `json:"unsynced"`
	StatusCounts map[Status]int  `json:"status_counts"`
}
