package pricing

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Month is a calendar month in which an advert runs or a leaflet drops.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label renders the month as "Nov 2026".
func (m Month) Label() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}

func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

func (m Month) AddMonths(n int) Month {
	i := m.index() + n
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}

func (m Month) Before(o Month) bool { return m.index() < o.index() }

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FirstBookableMonth is the current month until the copy deadline passes,
// then the next one.
func FirstBookableMonth(card *RateCard, now time.Time) Month {
	m := MonthOf(now)
	if card.CopyDeadlineDay > 0 && now.Day() > card.CopyDeadlineDay {
		return m.AddMonths(1)
	}
	return m
}

// BookableMonths lists every month a campaign may start or run in.
func BookableMonths(card *RateCard, now time.Time) []Month {
	first := FirstBookableMonth(card, now)
	out := make([]Month, card.BookingHorizonMonths)
	for i := range out {
		out[i] = first.AddMonths(i)
	}
	return out
}

// Schedule maps an area ID to the months it runs in.
type Schedule map[string][]Month

// Toggle adds the month to the area, or removes it if already present.
// Adding past the allowance fails and leaves the schedule unchanged.
func (s Schedule) Toggle(areaID string, m Month, allowance int) error {
	months := s[areaID]
	if i := slices.Index(months, m); i >= 0 {
		s[areaID] = slices.Delete(months, i, i+1)
		if len(s[areaID]) == 0 {
			delete(s, areaID)
		}
		return nil
	}
	if len(months) >= allowance {
		return fmt.Errorf("%w: %s already has %d of %d months", ErrAllowanceExceeded, areaID, len(months), allowance)
	}
	months = append(months, m)
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	s[areaID] = months
	return nil
}

func (s Schedule) Remaining(areaID string, allowance int) int {
	r := allowance - len(s[areaID])
	if r < 0 {
		return 0
	}
	return r
}

// Complete reports whether every listed area has its full allowance.
func (s Schedule) Complete(areaIDs []string, allowance int) bool {
	for _, id := range areaIDs {
		if len(s[id]) != allowance {
			return false
		}
	}
	return true
}

// Retain drops areas that are no longer selected.
func (s Schedule) Retain(sel Selection) {
	for id := range s {
		if !sel.Contains(id) {
			delete(s, id)
		}
	}
}

// Violation reasons.
const (
	ViolationNotSelected   = "area_not_selected"
	ViolationDuplicate     = "duplicate_month"
	ViolationOverAllowance = "over_allowance"
	ViolationTooEarly      = "before_first_bookable_month"
	ViolationTooLate       = "beyond_booking_horizon"
	ViolationIncomplete    = "incomplete"
)

type Violation struct {
	AreaID string `json:"area_id"`
	Month  string `json:"month,omitempty"`
	Reason string `json:"reason"`
}

// ScheduleViolations collects every problem found in a schedule.
type ScheduleViolations struct {
	Violations []Violation
}

func (e *ScheduleViolations) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Month != "" {
			parts = append(parts, fmt.Sprintf("%s %s: %s", v.AreaID, v.Month, v.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", v.AreaID, v.Reason))
		}
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

// ScheduleCheck is the input to ValidateSchedule.
type ScheduleCheck struct {
	Schedule  Schedule
	Selection Selection
	Allowance int
	// RequireComplete also flags selected areas with unused allowance.
	RequireComplete bool
	Now             time.Time
}

// ValidateSchedule returns nil or a *ScheduleViolations listing every problem.
func ValidateSchedule(card *RateCard, in ScheduleCheck) error {
	first := FirstBookableMonth(card, in.Now)
	last := first.AddMonths(card.BookingHorizonMonths - 1)

	var out []Violation
	ids := make([]string, 0, len(in.Schedule))
	for id := range in.Schedule {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		months := in.Schedule[id]
		if !in.Selection.Contains(id) {
			out = append(out, Violation{AreaID: id, Reason: ViolationNotSelected})
			continue
		}
		seen := make(map[Month]bool, len(months))
		for _, m := range months {
			switch {
			case seen[m]:
				out = append(out, Violation{AreaID: id, Month: m.String(), Reason: ViolationDuplicate})
			case m.Before(first):
				out = append(out, Violation{AreaID: id, Month: m.String(), Reason: ViolationTooEarly})
			case last.Before(m):
				out = append(out, Violation{AreaID: id, Month: m.String(), Reason: ViolationTooLate})
			}
			seen[m] = true
		}
		if len(seen) > in.Allowance {
			out = append(out, Violation{AreaID: id, Reason: ViolationOverAllowance})
		}
	}

	if in.RequireComplete {
		selected := append(slices.Clone(in.Selection.Paid), in.Selection.Free...)
		for _, id := range selected {
			if len(in.Schedule[id]) < in.Allowance {
				out = append(out, Violation{AreaID: id, Reason: ViolationIncomplete})
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return &ScheduleViolations{Violations: out}
}
