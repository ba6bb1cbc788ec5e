// Package shift keeps the per-role shift schedule used to decide lateness.
package shift

import (
	"errors"
	"fmt"
	"time"

	"geoattend/internal/clock"
	"geoattend/internal/user"
)

// Defaults applied when a role is looked up for the first time.
var (
	DefaultStart        = clock.At(9, 0)
	DefaultEnd          = clock.At(18, 0)
	DefaultGraceMinutes = 15
)

// ErrNoShift is returned for roles that do not take part in shift timing.
var ErrNoShift = errors.New("role has no shift timing")

// Timing is the expected working window of a role.
type Timing struct {
	Role               user.Role       `json:"role"`
	StartTime          clock.TimeOfDay `json:"start_time"`
	EndTime            clock.TimeOfDay `json:"end_time"`
	GracePeriodMinutes int             `json:"grace_period_minutes"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DefaultTiming returns the default schedule for role.
func DefaultTiming(role user.Role) Timing {
	return Timing{
		Role:               role,
		StartTime:          DefaultStart,
		EndTime:            DefaultEnd,
		GracePeriodMinutes: DefaultGraceMinutes,
	}
}

// GraceDeadline is the last on-time instant of the day.
func (t Timing) GraceDeadline() clock.TimeOfDay {
	return t.StartTime.Add(time.Duration(t.GracePeriodMinutes) * time.Minute)
}

// IsLate reports whether a check-in at the given time of day is past the grace deadline.
// Checking in exactly at the deadline is on time.
func (t Timing) IsLate(checkIn clock.TimeOfDay) bool {
	return checkIn > t.GraceDeadline()
}

// Validate enforces start < end and a non-negative grace period.
func (t Timing) Validate() error {
	if t.StartTime >= t.EndTime {
		return &ConfigError{Field: "start_time", Message: "start time must be before end time"}
	}
	if t.GracePeriodMinutes < 0 {
		return &ConfigError{Field: "grace_period_minutes", Message: "grace period cannot be negative"}
	}
	return nil
}

// ConfigError rejects a shift timing that cannot be applied.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid shift timing: %s: %s", e.Field, e.Message)
}
