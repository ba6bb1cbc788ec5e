// Package attendance implements the daily check-in/check-out state machine.
package attendance

import (
	"time"

	"geoattend/internal/clock"
)

// State is the position of a record in the daily lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateCheckedIn  State = "checked_in"
	StateCheckedOut State = "checked_out"
)

// Stamp captures where and from what a transition was made.
type Stamp struct {
	At        time.Time `json:"at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	IP        string    `json:"ip,omitempty"`
	Device    string    `json:"device,omitempty"`
}

// Record is the single attendance fact of a user for one day.
type Record struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	Day               time.Time        `json:"-"`
	CheckIn           *Stamp           `json:"check_in,omitempty"`
	CheckOut          *Stamp           `json:"check_out,omitempty"`
	IsLate            bool             `json:"is_late"`
	ExpectedStartTime *clock.TimeOfDay `json:"expected_start_time,omitempty"`
	Notes             string           `json:"notes"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// State derives the lifecycle state from the stamps.
func (r *Record) State() State {
	switch {
	case r == nil || r.CheckIn == nil:
		return StateNotStarted
	case r.CheckOut == nil:
		return StateCheckedIn
	default:
		return StateCheckedOut
	}
}

// DayString renders Day as YYYY-MM-DD.
func (r Record) DayString() string {
	return r.Day.Format(clock.DateLayout)
}

// Filter narrows record listings. Zero values match everything.
type Filter struct {
	UserIDs  []string
	From     *time.Time
	To       *time.Time
	LateOnly bool
	Limit    int
	Offset   int
}

func (f Filter) matches(r Record) bool {
	if len(f.UserIDs) > 0 {
		found := false
		for _, id := range f.UserIDs {
			if id == r.UserID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && r.Day.Before(clock.Date(*f.From)) {
		return false
	}
	if f.To != nil && r.Day.After(clock.Date(*f.To)) {
		return false
	}
	if f.LateOnly && !r.IsLate {
		return false
	}
	return true
}
