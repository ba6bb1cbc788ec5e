package attendance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"geoattend/internal/audit"
	"geoattend/internal/clock"
	"geoattend/internal/geo"
	"geoattend/internal/metrics"
	"geoattend/internal/shift"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const (
	officeLat = 17.4375
	officeLon = 78.4483
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type failingRepo struct {
	mock.Mock
}

func (m *failingRepo) Append(ctx context.Context, evt audit.Event) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *failingRepo) List(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	return nil, m.Called(ctx, f).Error(1)
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *fakeClock
	store    *MemoryStore
	shifts   *shift.Registry
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	svc      *Service

	employee user.Account
	student  user.Account
	admin    user.Account
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &fakeClock{now: time.Date(2026, 10, 16, 9, 5, 0, 0, ist)}
	s.store = NewMemoryStore()
	s.shifts = shift.NewRegistry(shift.NewMemoryRepository())
	s.recorder = &audit.Recorder{}
	s.metrics = metrics.Discard()
	s.svc = s.newService(s.recorder)

	start := time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
	s.employee = user.Account{ID: "emp-1", Username: "emp", Role: user.RoleEmployee}
	s.student = user.Account{ID: "stu-1", Username: "stu", Role: user.RoleStudent, StartDate: &start, EndDate: &end, ActivePeriod: true}
	s.admin = user.Account{ID: "adm-1", Username: "adm", Role: user.RoleAdmin}
}

func (s *ServiceSuite) newService(sink audit.Sink) *Service {
	return NewService(s.store, s.shifts, geo.NewFence(officeLat, officeLon, 100), sink,
		WithLocation(ist),
		WithClock(s.clock.Now),
		WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) at(hour, minute, second, nsec int) {
	s.clock.Set(time.Date(2026, 10, 16, hour, minute, second, nsec, ist))
}

func atOffice() MarkRequest {
	return MarkRequest{Latitude: officeLat, Longitude: officeLon, IP: "10.0.0.1", Device: "test"}
}

func (s *ServiceSuite) records(userID string) []Record {
	recs, err := s.store.List(s.ctx, Filter{UserIDs: []string{userID}})
	s.Require().NoError(err)
	return recs
}

func (s *ServiceSuite) TestMarkInAtOfficeCreatesOneRecord() {
	res, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.Equal(StateCheckedIn, res.Record.State())
	s.Len(s.records(s.employee.ID), 1)
	s.Equal(clock.Date(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)), res.Record.Day)

	_, err = s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.ErrorIs(err, ErrDuplicateCheckIn)
	s.Len(s.records(s.employee.ID), 1)
	s.Equal(1, s.recorder.Count(audit.KindDuplicateAttempt))

	evt := s.recorder.Events()[0]
	s.Equal(s.employee.ID, evt.UserID)
	s.Equal("10.0.0.1", evt.IP)
	s.Require().NotNil(evt.Latitude)
	s.Require().NotNil(evt.Longitude)
	s.Equal(officeLat, *evt.Latitude)
	s.Equal(officeLon, *evt.Longitude)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SecurityEvents.WithLabelValues(string(audit.KindDuplicateAttempt))))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("mark_in", "ok")))
}

func (s *ServiceSuite) TestDuplicateDoesNotMutate() {
	first, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)

	s.at(9, 30, 0, 0)
	req := atOffice()
	req.Notes = "second try"
	_, err = s.svc.MarkIn(s.ctx, s.employee, req)
	s.ErrorIs(err, ErrDuplicateCheckIn)

	got, err := s.store.Get(s.ctx, first.Record.ID)
	s.Require().NoError(err)
	s.Equal(first.Time, got.CheckIn.At)
	s.Empty(got.Notes)
	s.False(got.IsLate)
}

func (s *ServiceSuite) TestMarkInOutsideGeofence() {
	req := MarkRequest{Latitude: officeLat + 0.07, Longitude: officeLon}
	_, err := s.svc.MarkIn(s.ctx, s.employee, req)
	s.ErrorIs(err, ErrGeofenceViolation)
	s.Empty(s.records(s.employee.ID))

	s.Require().Len(s.recorder.Events(), 1)
	evt := s.recorder.Events()[0]
	s.Equal(audit.KindFailedGeofence, evt.Kind)
	s.Require().NotNil(evt.Latitude)
	s.Require().NotNil(evt.Longitude)
	s.InDelta(officeLat+0.07, *evt.Latitude, 1e-9)
	s.InDelta(officeLon, *evt.Longitude, 1e-9)
}

func (s *ServiceSuite) TestMarkInAtFenceEdge() {
	// ~90m north of the office center.
	req := MarkRequest{Latitude: officeLat + 0.00081, Longitude: officeLon}
	_, err := s.svc.MarkIn(s.ctx, s.employee, req)
	s.NoError(err)
}

func (s *ServiceSuite) TestInactiveEnrollmentRaisesNoEvent() {
	s.student.ActivePeriod = false
	_, err := s.svc.MarkIn(s.ctx, s.student, atOffice())
	s.ErrorIs(err, ErrEnrollmentInactive)

	outside := s.student
	outside.ActivePeriod = true
	before := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	outside.StartDate = &before
	_, err = s.svc.MarkIn(s.ctx, outside, MarkRequest{Latitude: 0, Longitude: 0})
	s.ErrorIs(err, ErrEnrollmentInactive, "enrollment is checked before the geofence")

	s.Empty(s.recorder.Events())
	s.Empty(s.records(s.student.ID))
}

func (s *ServiceSuite) TestLateness() {
	cases := []struct {
		name                 string
		hour, min, sec, nsec int
		late                 bool
	}{
		{"well before grace", 9, 10, 0, 0, false},
		{"exactly at grace deadline", 9, 15, 0, 0, false},
		{"just past grace deadline", 9, 15, 0, 1, true},
		{"late", 9, 20, 0, 0, true},
		{"early morning", 7, 0, 0, 0, false},
	}
	for i, tc := range cases {
		s.Run(tc.name, func() {
			acct := s.employee
			acct.ID = "late-" + string(rune('a'+i))
			s.at(tc.hour, tc.min, tc.sec, tc.nsec)

			res, err := s.svc.MarkIn(s.ctx, acct, atOffice())
			s.Require().NoError(err)
			s.Equal(tc.late, res.IsLate)
			s.Equal(tc.late, res.NotesEnabled)
			s.Require().NotNil(res.ExpectedStartTime)
			s.Equal(clock.At(9, 0), *res.ExpectedStartTime)
		})
	}
}

func (s *ServiceSuite) TestLatenessUsesRoleTiming() {
	start := clock.At(8, 0)
	grace := 0
	_, err := s.shifts.Update(s.ctx, user.RoleStudent, shift.Update{StartTime: &start, GracePeriodMinutes: &grace})
	s.Require().NoError(err)

	s.at(8, 1, 0, 0)
	res, err := s.svc.MarkIn(s.ctx, s.student, atOffice())
	s.Require().NoError(err)
	s.True(res.IsLate)
	s.Equal(clock.At(8, 0), *res.ExpectedStartTime)

	res, err = s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.False(res.IsLate)
}

func (s *ServiceSuite) TestAdminSkipsLateness() {
	s.at(11, 0, 0, 0)
	res, err := s.svc.MarkIn(s.ctx, s.admin, atOffice())
	s.Require().NoError(err)
	s.False(res.IsLate)
	s.Nil(res.ExpectedStartTime)
	s.False(res.NotesEnabled)
}

func (s *ServiceSuite) TestDayFollowsOfficeTimeZone() {
	// 03:45 UTC is 09:15 IST.
	s.clock.Set(time.Date(2026, 10, 16, 3, 45, 0, 0, time.UTC))
	res, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.False(res.IsLate)

	// 20:00 UTC on the 16th is already the 17th in the office.
	s.clock.Set(time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC))
	res, err = s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.Equal("2026-10-17", res.Record.DayString())
}

func (s *ServiceSuite) TestNotesPersistedRegardlessOfLateness() {
	req := atOffice()
	req.Notes = "traffic"
	res, err := s.svc.MarkIn(s.ctx, s.employee, req)
	s.Require().NoError(err)
	s.False(res.IsLate)
	s.Equal("traffic", res.Record.Notes)
}

func (s *ServiceSuite) TestMarkInRejectsLongNotes() {
	req := atOffice()
	req.Notes = strings.Repeat("x", MaxNotesLength+1)
	_, err := s.svc.MarkIn(s.ctx, s.employee, req)
	verr, ok := validation.As(err)
	s.Require().True(ok)
	s.Contains(verr.FieldErrors, "notes")
	s.Empty(s.records(s.employee.ID))
}

func (s *ServiceSuite) TestDefensiveOverwriteOfEmptyRecord() {
	day := clock.Date(s.clock.Now())
	_, err := s.store.Transition(s.ctx, s.employee.ID, day, func(*Record) (*Record, error) {
		return &Record{Notes: "placeholder"}, nil
	})
	s.Require().NoError(err)

	s.at(9, 45, 0, 0)
	req := atOffice()
	req.Notes = "late bus"
	res, err := s.svc.MarkIn(s.ctx, s.employee, req)
	s.Require().NoError(err)
	s.True(res.IsLate)
	s.Equal("late bus", res.Record.Notes)
	s.Len(s.records(s.employee.ID), 1)
	s.Empty(s.recorder.Events())
}

func (s *ServiceSuite) TestMarkOut() {
	s.Run("before mark-in", func() {
		_, err := s.svc.MarkOut(s.ctx, s.employee, atOffice())
		s.ErrorIs(err, ErrNoCheckInFound)
		s.Empty(s.recorder.Events())
	})

	s.Run("geofence is checked before the missing check-in", func() {
		_, err := s.svc.MarkOut(s.ctx, s.employee, MarkRequest{Latitude: 0, Longitude: 0})
		s.ErrorIs(err, ErrGeofenceViolation)
		s.Equal(1, s.recorder.Count(audit.KindFailedGeofence))
	})

	s.Run("after late mark-in keeps lateness", func() {
		s.at(9, 30, 0, 0)
		in, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
		s.Require().NoError(err)
		s.Require().True(in.IsLate)

		s.at(18, 5, 0, 0)
		out, err := s.svc.MarkOut(s.ctx, s.employee, atOffice())
		s.Require().NoError(err)
		s.Equal(StateCheckedOut, out.Record.State())
		s.True(out.Record.IsLate)
		s.Equal(in.Time, out.Record.CheckIn.At)
		s.Equal(time.Date(2026, 10, 16, 18, 5, 0, 0, ist), out.Time)
	})

	s.Run("second mark-out is a duplicate", func() {
		_, err := s.svc.MarkOut(s.ctx, s.employee, atOffice())
		s.ErrorIs(err, ErrDuplicateCheckOut)
		s.Equal(1, s.recorder.Count(audit.KindDuplicateAttempt))

		events := s.recorder.Events()
		evt := events[len(events)-1]
		s.Equal(audit.KindDuplicateAttempt, evt.Kind)
		s.Require().NotNil(evt.Latitude)
		s.Require().NotNil(evt.Longitude)
		s.Equal(officeLat, *evt.Latitude)
		s.Equal(officeLon, *evt.Longitude)
	})
}

func (s *ServiceSuite) TestConcurrentMarkInHasOneWinner() {
	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateCheckIn):
				dups++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(attempts-1, dups)
	s.Len(s.records(s.employee.ID), 1)
	s.Equal(attempts-1, s.recorder.Count(audit.KindDuplicateAttempt))
}

func (s *ServiceSuite) TestConcurrentMarkOutHasOneWinner() {
	_, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.at(18, 0, 0, 0)

	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.MarkOut(s.ctx, s.employee, atOffice())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateCheckOut):
				dups++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(attempts-1, dups)
	recs := s.records(s.employee.ID)
	s.Require().Len(recs, 1)
	s.Equal(StateCheckedOut, recs[0].State())
	s.Equal(attempts-1, s.recorder.Count(audit.KindDuplicateAttempt))
}

func (s *ServiceSuite) TestFailingAuditDoesNotMaskRejection() {
	repo := new(failingRepo)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("audit store down"))
	svc := s.newService(audit.NewStoreSink(repo, nil))

	_, err := svc.MarkIn(s.ctx, s.employee, MarkRequest{Latitude: 0, Longitude: 0})
	s.ErrorIs(err, ErrGeofenceViolation)

	_, err = svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	_, err = svc.MarkIn(s.ctx, s.employee, atOffice())
	s.ErrorIs(err, ErrDuplicateCheckIn)

	repo.AssertNumberOfCalls(s.T(), "Append", 2)
}

func (s *ServiceSuite) TestUpdateNotes() {
	res, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	id := res.Record.ID

	s.Run("unknown record", func() {
		_, err := s.svc.UpdateNotes(s.ctx, s.employee, "missing", "x")
		s.ErrorIs(err, ErrRecordNotFound)
	})

	s.Run("other user", func() {
		_, err := s.svc.UpdateNotes(s.ctx, s.student, id, "x")
		s.ErrorIs(err, ErrForbidden)
	})

	s.Run("too long", func() {
		_, err := s.svc.UpdateNotes(s.ctx, s.employee, id, strings.Repeat("é", MaxNotesLength+1))
		_, ok := validation.As(err)
		s.True(ok)
	})

	s.Run("exactly at the limit in runes", func() {
		_, err := s.svc.UpdateNotes(s.ctx, s.employee, id, strings.Repeat("é", MaxNotesLength))
		s.NoError(err)
	})

	s.Run("owner today", func() {
		rec, err := s.svc.UpdateNotes(s.ctx, s.employee, id, "doctor visit")
		s.Require().NoError(err)
		s.Equal("doctor visit", rec.Notes)
		s.False(rec.IsLate)

		stored, err := s.store.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("doctor visit", stored.Notes)
		s.Equal(res.Record.IsLate, stored.IsLate)
		s.Equal(StateCheckedIn, stored.State())
	})

	s.Run("next day", func() {
		s.clock.Set(time.Date(2026, 10, 17, 10, 0, 0, 0, ist))
		_, err := s.svc.UpdateNotes(s.ctx, s.employee, id, "too late")
		s.ErrorIs(err, ErrNotToday)
	})
}

func (s *ServiceSuite) TestHistory() {
	_, err := s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	s.clock.Set(time.Date(2026, 10, 17, 9, 0, 0, 0, ist))
	_, err = s.svc.MarkIn(s.ctx, s.employee, atOffice())
	s.Require().NoError(err)
	_, err = s.svc.MarkIn(s.ctx, s.admin, atOffice())
	s.Require().NoError(err)

	recs, err := s.svc.History(s.ctx, s.employee.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal("2026-10-17", recs[0].DayString())
	s.Equal("2026-10-16", recs[1].DayString())
}
