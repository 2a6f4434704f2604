package pricing

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed ratecard.yaml
var defaultRateCard []byte

type SizeOption struct {
	Code AdSize `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

type LeafletSize struct {
	Code             string          `json:"code" yaml:"code"`
	Name             string          `json:"name" yaml:"name"`
	PricePerThousand decimal.Decimal `json:"price_per_thousand" yaml:"price_per_thousand"`
}

// VolumeTier grants Percent off once at least MinAreas paid areas are booked.
type VolumeTier struct {
	MinAreas int             `json:"min_areas" yaml:"min_areas"`
	Percent  decimal.Decimal `json:"percent" yaml:"percent"`
}

// DurationOption is a bookable campaign length and its discount.
type DurationOption struct {
	Months  int             `json:"months" yaml:"months"`
	Percent decimal.Decimal `json:"percent" yaml:"percent"`
}

// RateCard holds every tariff and discount table the calculators need.
type RateCard struct {
	Currency              string           `json:"currency" yaml:"currency"`
	VATRate               decimal.Decimal  `json:"vat_rate" yaml:"vat_rate"`
	BOGOFEnabled          bool             `json:"bogof_enabled" yaml:"bogof_enabled"`
	AdSizes               []SizeOption     `json:"ad_sizes" yaml:"ad_sizes"`
	VolumeTiers           []VolumeTier     `json:"volume_tiers" yaml:"volume_tiers"`
	Durations             []DurationOption `json:"durations" yaml:"durations"`
	LeafletSizes          []LeafletSize    `json:"leaflet_sizes" yaml:"leaflet_sizes"`
	LeafletDurations      []DurationOption `json:"leaflet_durations" yaml:"leaflet_durations"`
	LeafletMinimumPerDrop decimal.Decimal  `json:"leaflet_minimum_per_drop" yaml:"leaflet_minimum_per_drop"`
	ComboPercent          decimal.Decimal  `json:"combo_percent" yaml:"combo_percent"`
	CopyDeadlineDay       int              `json:"copy_deadline_day" yaml:"copy_deadline_day"`
	BookingHorizonMonths  int              `json:"booking_horizon_months" yaml:"booking_horizon_months"`
}

// DefaultRateCard returns the tariff shipped with the binary.
func DefaultRateCard() (*RateCard, error) {
	return LoadRateCard(bytes.NewReader(defaultRateCard))
}

func LoadRateCardFile(path string) (*RateCard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rate card: %w", err)
	}
	defer f.Close()
	return LoadRateCard(f)
}

func LoadRateCard(r io.Reader) (*RateCard, error) {
	var card RateCard
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&card); err != nil {
		return nil, fmt.Errorf("decode rate card: %w", err)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	card.normalize()
	return &card, nil
}

func (c *RateCard) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidRateCard, fmt.Sprintf(format, args...))
	}

	if c.VATRate.IsNegative() || c.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fail("vat_rate %s outside [0,1)", c.VATRate)
	}
	if len(c.Durations) == 0 {
		return fail("no advertising durations")
	}
	if len(c.LeafletDurations) == 0 {
		return fail("no leafleting durations")
	}
	if err := validDurations("durations", c.Durations); err != nil {
		return fail("%v", err)
	}
	if err := validDurations("leaflet_durations", c.LeafletDurations); err != nil {
		return fail("%v", err)
	}

	seen := make(map[int]bool)
	for _, t := range c.VolumeTiers {
		if t.MinAreas < 1 {
			return fail("volume tier min_areas %d < 1", t.MinAreas)
		}
		if seen[t.MinAreas] {
			return fail("duplicate volume tier for %d areas", t.MinAreas)
		}
		seen[t.MinAreas] = true
		if !validPercent(t.Percent) {
			return fail("volume tier percent %s outside [0,100]", t.Percent)
		}
	}

	sizes := make(map[AdSize]bool)
	for _, s := range c.AdSizes {
		if s.Code == "" || sizes[s.Code] {
			return fail("empty or duplicate ad size %q", s.Code)
		}
		sizes[s.Code] = true
	}
	leaflets := make(map[string]bool)
	for _, s := range c.LeafletSizes {
		if s.Code == "" || leaflets[s.Code] {
			return fail("empty or duplicate leaflet size %q", s.Code)
		}
		leaflets[s.Code] = true
		if !s.PricePerThousand.IsPositive() {
			return fail("leaflet size %s has non-positive price", s.Code)
		}
	}

	if c.LeafletMinimumPerDrop.IsNegative() {
		return fail("negative leaflet minimum")
	}
	if !validPercent(c.ComboPercent) {
		return fail("combo_percent %s outside [0,100]", c.ComboPercent)
	}
	if c.CopyDeadlineDay < 0 || c.CopyDeadlineDay > 28 {
		return fail("copy_deadline_day %d outside [0,28]", c.CopyDeadlineDay)
	}
	if c.BookingHorizonMonths < 1 {
		return fail("booking_horizon_months must be positive")
	}
	return nil
}

func validDurations(name string, opts []DurationOption) error {
	seen := make(map[int]bool)
	for _, d := range opts {
		if d.Months < 1 || seen[d.Months] {
			return fmt.Errorf("%s: bad or duplicate months %d", name, d.Months)
		}
		seen[d.Months] = true
		if !validPercent(d.Percent) {
			return fmt.Errorf("%s: percent %s outside [0,100]", name, d.Percent)
		}
	}
	return nil
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

func (c *RateCard) normalize() {
	sort.Slice(c.VolumeTiers, func(i, j int) bool { return c.VolumeTiers[i].MinAreas < c.VolumeTiers[j].MinAreas })
	sort.Slice(c.Durations, func(i, j int) bool { return c.Durations[i].Months < c.Durations[j].Months })
	sort.Slice(c.LeafletDurations, func(i, j int) bool { return c.LeafletDurations[i].Months < c.LeafletDurations[j].Months })
}

// VolumePercent returns the discount of the highest tier reached by paidAreas.
func (c *RateCard) VolumePercent(paidAreas int) decimal.Decimal {
	pct := decimal.Zero
	for _, t := range c.VolumeTiers {
		if paidAreas >= t.MinAreas {
			pct = t.Percent
		}
	}
	return pct
}

func (c *RateCard) DurationPercent(months int) (decimal.Decimal, error) {
	return lookupDuration(c.Durations, months)
}

func (c *RateCard) LeafletDurationPercent(drops int) (decimal.Decimal, error) {
	return lookupDuration(c.LeafletDurations, drops)
}

func lookupDuration(opts []DurationOption, months int) (decimal.Decimal, error) {
	for _, d := range opts {
		if d.Months == months {
			return d.Percent, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %d months", ErrInvalidDuration, months)
}

func (c *RateCard) AdSize(code AdSize) (SizeOption, bool) {
	for _, s := range c.AdSizes {
		if s.Code == code {
			return s, true
		}
	}
	return SizeOption{}, false
}

func (c *RateCard) LeafletSize(code string) (LeafletSize, bool) {
	for _, s := range c.LeafletSizes {
		if s.Code == code {
			return s, true
		}
	}
	return LeafletSize{}, false
}
