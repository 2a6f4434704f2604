package pricing

import (
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
)

// AdSize identifies a display advertisement format, e.g. "quarter" or "full".
type AdSize string

// Area is a distribution area (one magazine edition / leaflet round).
type Area struct {
	ID          string                     `json:"id" yaml:"id"`
	Name        string                     `json:"name" yaml:"name"`
	Circulation int                        `json:"circulation" yaml:"circulation"`
	Households  int                        `json:"households" yaml:"households"`
	Prices      map[AdSize]decimal.Decimal `json:"prices" yaml:"prices"`
}

// Price returns the per-issue price of an advert of the given size in this area.
func (a Area) Price(size AdSize) (decimal.Decimal, bool) {
	p, ok := a.Prices[size]
	return p, ok
}

// households falls back to circulation for areas that were never surveyed.
func (a Area) households() int {
	if a.Households > 0 {
		return a.Households
	}
	return a.Circulation
}

// SelectionKind is how an area takes part in a booking.
type SelectionKind string

const (
	KindNone SelectionKind = "none"
	KindPaid SelectionKind = "paid"
	KindFree SelectionKind = "free"
)

// Selection is the serialisable form of an AreaSelector.
type Selection struct {
	Paid []string `json:"paid"`
	Free []string `json:"free,omitempty"`
}

// Count is the number of areas in the selection, paid and free.
func (s Selection) Count() int {
	return len(s.Paid) + len(s.Free)
}

// Contains reports whether the area is selected in any kind.
func (s Selection) Contains(id string) bool {
	return slices.Contains(s.Paid, id) || slices.Contains(s.Free, id)
}

// AreaSelector tracks which areas a customer picked and keeps the BOGOF
// pairing valid: every free area must be covered by a distinct paid area that
// is worth at least as much.
type AreaSelector struct {
	catalog map[string]Area
	bogof   bool
	size    AdSize
	paid    []string
	free    []string
}

func NewAreaSelector(areas []Area, bogof bool) *AreaSelector {
	catalog := make(map[string]Area, len(areas))
	for _, a := range areas {
		catalog[a.ID] = a
	}
	return &AreaSelector{catalog: catalog, bogof: bogof}
}

// Restore replays a stored selection. Areas that no longer exist in the
// catalog or can no longer be matched are dropped and returned.
func (s *AreaSelector) Restore(sel Selection, size AdSize) []string {
	s.size = size
	s.paid, s.free = nil, nil

	var dropped []string
	for _, id := range sel.Paid {
		if err := s.Select(id, KindPaid); err != nil {
			dropped = append(dropped, id)
		}
	}
	for _, id := range sel.Free {
		if err := s.Select(id, KindFree); err != nil {
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// SetSize changes the ad size used to value areas for BOGOF matching.
// Free areas that lose their cover are released, newest first.
func (s *AreaSelector) SetSize(size AdSize) []string {
	s.size = size
	return s.rebalance()
}

func (s *AreaSelector) Select(id string, kind SelectionKind) error {
	if _, ok := s.catalog[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArea, id)
	}

	switch kind {
	case KindNone:
		s.Deselect(id)
		return nil
	case KindPaid:
		s.free = remove(s.free, id)
		if !slices.Contains(s.paid, id) {
			s.paid = append(s.paid, id)
		}
		return nil
	case KindFree:
		if !s.bogof {
			return ErrBOGOFDisabled
		}
		if slices.Contains(s.free, id) {
			return nil
		}
		paid := remove(slices.Clone(s.paid), id)
		free := append(slices.Clone(s.free), id)
		if !s.matches(paid, free) {
			return fmt.Errorf("%w: %s", ErrNoBOGOFMatch, id)
		}
		s.paid, s.free = paid, free
		return nil
	default:
		return fmt.Errorf("unknown selection kind %q", kind)
	}
}

// Deselect returns an area to plain and reports any free areas released
// because they lost their paid cover.
func (s *AreaSelector) Deselect(id string) []string {
	if slices.Contains(s.free, id) {
		s.free = remove(s.free, id)
		return nil
	}
	if !slices.Contains(s.paid, id) {
		return nil
	}
	s.paid = remove(s.paid, id)
	return s.rebalance()
}

func (s *AreaSelector) rebalance() []string {
	var released []string
	for len(s.free) > 0 && !s.matches(s.paid, s.free) {
		last := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		released = append(released, last)
	}
	return released
}

func (s *AreaSelector) Kind(id string) SelectionKind {
	switch {
	case slices.Contains(s.paid, id):
		return KindPaid
	case slices.Contains(s.free, id):
		return KindFree
	default:
		return KindNone
	}
}

func (s *AreaSelector) Paid() []Area { return s.lookup(s.paid) }
func (s *AreaSelector) Free() []Area { return s.lookup(s.free) }
func (s *AreaSelector) Len() int     { return len(s.paid) + len(s.free) }

func (s *AreaSelector) Selection() Selection {
	return Selection{Paid: slices.Clone(s.paid), Free: slices.Clone(s.free)}
}

func (s *AreaSelector) lookup(ids []string) []Area {
	out := make([]Area, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.catalog[id])
	}
	return out
}

func (s *AreaSelector) matches(paid, free []string) bool {
	return MatchBOGOF(s.lookup(paid), s.lookup(free), s.size)
}

// MatchBOGOF reports whether every free area can be paired with a distinct
// paid area of equal or greater value. Areas are valued by their price for
// size, or by households when size is empty or unpriced.
//
// Pairing both lists sorted by value descending is optimal, so a single pass
// decides it.
func MatchBOGOF(paid, free []Area, size AdSize) bool {
	if len(free) == 0 {
		return true
	}
	if len(free) > len(paid) {
		return false
	}

	pv := values(paid, size)
	fv := values(free, size)
	for i := range fv {
		if fv[i].GreaterThan(pv[i]) {
			return false
		}
	}
	return true
}

func values(areas []Area, size AdSize) []decimal.Decimal {
	out := make([]decimal.Decimal, len(areas))
	for i, a := range areas {
		out[i] = areaValue(a, size)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GreaterThan(out[j]) })
	return out
}

func areaValue(a Area, size AdSize) decimal.Decimal {
	if size != "" {
		if p, ok := a.Price(size); ok {
			return p
		}
	}
	return decimal.NewFromInt(int64(a.households()))
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}
