package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"geoattend/internal/audit"
	"geoattend/internal/clock"
	"geoattend/internal/enrollment"
	"geoattend/internal/geo"
	"geoattend/internal/metrics"
	"geoattend/internal/shift"
	"geoattend/internal/store"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

// ShiftSource looks up the shift timing of a role.
type ShiftSource interface {
	Get(ctx context.Context, role user.Role) (shift.Timing, error)
}

// MarkRequest carries the coordinates of a transition plus request context.
type MarkRequest struct {
	Latitude  float64
	Longitude float64
	Notes     string
	IP        string
	Device    string
}

// MarkInResult reports the outcome of a successful check-in.
type MarkInResult struct {
	Record            *Record
	Time              time.Time
	IsLate            bool
	ExpectedStartTime *clock.TimeOfDay
	NotesEnabled      bool
}

// MarkOutResult reports the outcome of a successful check-out.
type MarkOutResult struct {
	Record *Record
	Time   time.Time
}

// Service coordinates enrollment, geofence and shift checks around the
// per-day record lifecycle.
type Service struct {
	store   Store
	shifts  ShiftSource
	fence   geo.Fence
	sink    audit.Sink
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
}

// Option customises a Service.
type Option func(*Service)

// WithLocation sets the office time zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a service. fence is the office perimeter every
// transition is checked against.
func NewService(st Store, shifts ShiftSource, fence geo.Fence, sink audit.Sink, opts ...Option) *Service {
	s := &Service{
		store:  st,
		shifts: shifts,
		fence:  fence,
		sink:   sink,
		loc:    time.UTC,
		now:    time.Now,
		log:    zap.NewNop(),
		tracer: otel.Tracer("geoattend/attendance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current office date.
func (s *Service) Today() time.Time {
	return clock.DateIn(s.now(), s.loc)
}

// MarkIn records the day's check-in for acct.
func (s *Service) MarkIn(ctx context.Context, acct user.Account, req MarkRequest) (MarkInResult, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.MarkIn", trace.WithAttributes(
		attribute.String("user.id", acct.ID),
		attribute.String("user.role", string(acct.Role)),
	))
	defer span.End()
	started := time.Now()

	res, err := s.markIn(ctx, acct, req)
	s.observe("mark_in", started, span, err)
	return res, err
}

func (s *Service) markIn(ctx context.Context, acct user.Account, req MarkRequest) (MarkInResult, error) {
	if err := validateNotes(req.Notes); err != nil {
		return MarkInResult{}, err
	}
	now := s.now().In(s.loc)
	if err := s.admit(ctx, acct, req, now, "check-in"); err != nil {
		return MarkInResult{}, err
	}

	var timing *shift.Timing
	if acct.Role.HasShift() {
		t, err := s.shifts.Get(ctx, acct.Role)
		if err != nil {
			return MarkInResult{}, fmt.Errorf("shift timing for %s: %w", acct.Role, err)
		}
		timing = &t
	}

	day := clock.Date(now)
	rec, err := s.store.Transition(ctx, acct.ID, day, func(cur *Record) (*Record, error) {
		if cur != nil && cur.CheckIn != nil {
			return nil, ErrDuplicateCheckIn
		}
		next := &Record{}
		if cur != nil {
			*next = *cur
		}
		next.CheckIn = &Stamp{
			At:        now,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			IP:        req.IP,
			Device:    req.Device,
		}
		next.Notes = req.Notes
		s.applyLateness(next, timing)
		return next, nil
	})
	if errors.Is(err, ErrDuplicateCheckIn) {
		s.raise(ctx, acct, req, audit.KindDuplicateAttempt,
			fmt.Sprintf("Duplicate check-in attempt for %s", day.Format(clock.DateLayout)))
		return MarkInResult{}, err
	}
	if err != nil {
		return MarkInResult{}, err
	}

	if rec.IsLate && s.metrics != nil {
		s.metrics.LateArrivals.Inc()
	}
	s.log.Info("checked in",
		zap.String("user_id", acct.ID),
		zap.String("record_id", rec.ID),
		zap.Bool("is_late", rec.IsLate))

	return MarkInResult{
		Record:            rec,
		Time:              rec.CheckIn.At,
		IsLate:            rec.IsLate,
		ExpectedStartTime: rec.ExpectedStartTime,
		NotesEnabled:      rec.IsLate,
	}, nil
}

// applyLateness sets IsLate and ExpectedStartTime from the check-in stamp.
// A nil timing means the role takes no part in shift timing.
func (s *Service) applyLateness(rec *Record, timing *shift.Timing) {
	rec.IsLate = false
	rec.ExpectedStartTime = nil
	if timing == nil || rec.CheckIn == nil {
		return
	}
	start := timing.StartTime
	rec.ExpectedStartTime = &start
	rec.IsLate = timing.IsLate(clock.Of(rec.CheckIn.At, s.loc))
}

// MarkOut records the day's check-out for acct.
func (s *Service) MarkOut(ctx context.Context, acct user.Account, req MarkRequest) (MarkOutResult, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.MarkOut", trace.WithAttributes(
		attribute.String("user.id", acct.ID),
		attribute.String("user.role", string(acct.Role)),
	))
	defer span.End()
	started := time.Now()

	res, err := s.markOut(ctx, acct, req)
	s.observe("mark_out", started, span, err)
	return res, err
}

func (s *Service) markOut(ctx context.Context, acct user.Account, req MarkRequest) (MarkOutResult, error) {
	now := s.now().In(s.loc)
	if err := s.admit(ctx, acct, req, now, "check-out"); err != nil {
		return MarkOutResult{}, err
	}

	day := clock.Date(now)
	rec, err := s.store.Transition(ctx, acct.ID, day, func(cur *Record) (*Record, error) {
		if cur == nil || cur.CheckIn == nil {
			return nil, ErrNoCheckInFound
		}
		if cur.CheckOut != nil {
			return nil, ErrDuplicateCheckOut
		}
		next := *cur
		next.CheckOut = &Stamp{
			At:        now,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			IP:        req.IP,
			Device:    req.Device,
		}
		return &next, nil
	})
	if errors.Is(err, ErrDuplicateCheckOut) {
		s.raise(ctx, acct, req, audit.KindDuplicateAttempt,
			fmt.Sprintf("Duplicate check-out attempt for %s", day.Format(clock.DateLayout)))
		return MarkOutResult{}, err
	}
	if err != nil {
		return MarkOutResult{}, err
	}

	s.log.Info("checked out", zap.String("user_id", acct.ID), zap.String("record_id", rec.ID))
	return MarkOutResult{Record: rec, Time: rec.CheckOut.At}, nil
}

// admit applies the gates shared by both transitions: enrollment first, then
// the geofence. Only a geofence failure is reported to the audit sink.
func (s *Service) admit(ctx context.Context, acct user.Account, req MarkRequest, now time.Time, action string) error {
	if !enrollment.IsActive(acct, now) {
		return ErrEnrollmentInactive
	}
	p := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}
	if !s.fence.Contains(p) {
		s.raise(ctx, acct, req, audit.KindFailedGeofence,
			fmt.Sprintf("Geofence validation failed on %s. Location: %v, %v (%.0fm from office)",
				action, req.Latitude, req.Longitude, s.fence.DistanceFrom(p)))
		return ErrGeofenceViolation
	}
	return nil
}

func (s *Service) raise(ctx context.Context, acct user.Account, req MarkRequest, kind audit.Kind, desc string) {
	lat, lon := req.Latitude, req.Longitude
	evt := audit.Event{
		UserID:      acct.ID,
		Kind:        kind,
		Description: desc,
		IP:          req.IP,
		Device:      req.Device,
		Latitude:    &lat,
		Longitude:   &lon,
		Timestamp:   s.now().UTC(),
	}
	if s.metrics != nil {
		s.metrics.SecurityEvents.WithLabelValues(string(kind)).Inc()
	}
	s.log.Warn("security event",
		zap.String("user_id", acct.ID),
		zap.String("kind", string(kind)),
		zap.String("ip", req.IP))
	s.sink.Record(ctx, evt)
}

// UpdateNotes replaces the notes of one of acct's records for today. Lateness
// is left as it was.
func (s *Service) UpdateNotes(ctx context.Context, acct user.Account, recordID, notes string) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.UpdateNotes", trace.WithAttributes(
		attribute.String("user.id", acct.ID),
		attribute.String("record.id", recordID),
	))
	defer span.End()

	rec, err := s.store.Get(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if rec.UserID != acct.ID {
		return nil, ErrForbidden
	}
	if !rec.Day.Equal(s.Today()) {
		return nil, ErrNotToday
	}
	if err := validateNotes(notes); err != nil {
		return nil, err
	}
	if err := s.store.SetNotes(ctx, rec.ID, notes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	rec.Notes = notes
	return rec, nil
}

// History returns the records of a single user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	return s.store.List(ctx, Filter{UserIDs: []string{userID}, Limit: limit})
}

// List returns records for the admin surface.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.List(ctx, f)
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return validation.New("notes", fmt.Sprintf("must be at most %d characters", MaxNotesLength))
	}
	return nil
}

func (s *Service) observe(action string, started time.Time, span trace.Span, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("attendance transition failed", zap.String("action", action), zap.Error(err))
	}
	if s.metrics == nil {
		return
	}
	s.metrics.Transitions.WithLabelValues(action, outcome).Inc()
	s.metrics.Latency.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEnrollmentInactive):
		return "enrollment_inactive"
	case errors.Is(err, ErrGeofenceViolation):
		return "geofence"
	case errors.Is(err, ErrDuplicateCheckIn), errors.Is(err, ErrDuplicateCheckOut):
		return "duplicate"
	case errors.Is(err, ErrNoCheckInFound):
		return "no_check_in"
	}
	if _, ok := validation.As(err); ok {
		return "invalid"
	}
	return "error"
}
