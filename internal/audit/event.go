// Package audit records security events raised by policy violations. Events
// are append-only; recording never fails the operation that triggered it.
package audit

import (
	"time"
)

// Kind classifies a security event.
type Kind string

const (
	KindFailedGeofence     Kind = "failed_geo"
	KindDuplicateAttempt   Kind = "duplicate_attempt"
	KindInvalidPeriod      Kind = "invalid_period"
	KindSuspiciousActivity Kind = "suspicious_activity"
)

// Kinds lists every event kind.
var Kinds = []Kind{KindFailedGeofence, KindDuplicateAttempt, KindInvalidPeriod, KindSuspiciousActivity}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is a single security audit entry.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	IP          string    `json:"ip"`
	Device      string    `json:"device"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filter narrows a listing of events.
type Filter struct {
	UserID string
	Kind   Kind
	Limit  int
	Offset int
}
