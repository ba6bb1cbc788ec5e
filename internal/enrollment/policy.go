// Package enrollment decides whether an account may mark attendance on a given day.
package enrollment

import (
	"time"

	"geoattend/internal/clock"
	"geoattend/internal/user"
)

// IsActive reports whether acct is enrolled on the civil date of asOf.
// Employees and admins are always active. Students and interns need both
// window dates, asOf inside [start, end] and the active-period flag set.
// A missing window is not an error; it is simply inactive.
func IsActive(acct user.Account, asOf time.Time) bool {
	if !acct.Role.NeedsEnrollmentWindow() {
		return acct.Role.Valid()
	}
	if acct.StartDate == nil || acct.EndDate == nil {
		return false
	}
	day := clock.Date(asOf)
	start := clock.Date(*acct.StartDate)
	end := clock.Date(*acct.EndDate)
	return !day.Before(start) && !day.After(end) && acct.ActivePeriod
}

// Policy binds IsActive to a clock and the office time zone so "today" is
// the office's day, not the server's.
type Policy struct {
	loc *time.Location
	now func() time.Time
}

// NewPolicy creates a policy evaluated in loc.
func NewPolicy(loc *time.Location, now func() time.Time) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Policy{loc: loc, now: now}
}

// ActiveToday reports whether acct is enrolled on the current office day.
func (p *Policy) ActiveToday(acct user.Account) bool {
	return IsActive(acct, p.now().In(p.loc))
}

// ActiveOn reports whether acct is enrolled on the given date.
func (p *Policy) ActiveOn(acct user.Account, date time.Time) bool {
	return IsActive(acct, date)
}
