package redis

import (
	"slices"
	"time"

	"adportal/internal/quote"
)

// UserState is one customer's wizard progress.
type UserState struct {
	Step            string        `json:"step"`
	History         []string      `json:"history,omitempty"`
	PrivacyAccepted bool          `json:"privacy_accepted,omitempty"`
	Draft           quote.Draft   `json:"draft"`
	Contact         quote.Contact `json:"contact"`
	// ScheduleArea is the area whose months are being picked.
	ScheduleArea string    `json:"schedule_area,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Advance moves to step, remembering the current one for Back.
func (s *UserState) Advance(step string) {
	if s.Step != "" && s.Step != step {
		s.History = append(s.History, s.Step)
	}
	s.Step = step
}

// Back returns to the previous step. It reports false when there is none.
func (s *UserState) Back() bool {
	if len(s.History) == 0 {
		return false
	}
	s.Step = s.History[len(s.History)-1]
	s.History = slices.Delete(s.History, len(s.History)-1, len(s.History))
	return true
}
