package attendance

import "errors"

// Rejections returned by Service. All are request scoped; none are retried.
var (
	ErrEnrollmentInactive = errors.New("enrollment period is not active")
	ErrGeofenceViolation  = errors.New("location is outside the office perimeter")
	ErrDuplicateCheckIn   = errors.New("already checked in today")
	ErrDuplicateCheckOut  = errors.New("already checked out today")
	ErrNoCheckInFound     = errors.New("no check-in found for today")
	ErrForbidden          = errors.New("record belongs to another user")
	ErrRecordNotFound     = errors.New("attendance record not found")
	ErrNotToday           = errors.New("only today's record can be changed")
)

// MaxNotesLength bounds the notes attached to a record, in characters.
const MaxNotesLength = 500
