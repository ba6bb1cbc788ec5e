package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoattend/internal/audit"
	"geoattend/internal/clock"
	"geoattend/internal/report"
	"geoattend/internal/shift"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

// ListShiftTimings returns the timing of every shift role.
func (h *Handler) ListShiftTimings(c *gin.Context) {
	timings, err := h.shifts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, timings)
}

// GetShiftTiming returns one role's timing, creating the default on first use.
func (h *Handler) GetShiftTiming(c *gin.Context) {
	role, ok := shiftRole(c)
	if !ok {
		return
	}
	t, err := h.shifts.Get(c.Request.Context(), role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type shiftRequest struct {
	StartTime          *clock.TimeOfDay `json:"start_time"`
	EndTime            *clock.TimeOfDay `json:"end_time"`
	GracePeriodMinutes *int             `json:"grace_period_minutes"`
}

// UpdateShiftTiming changes a role's timing.
func (h *Handler) UpdateShiftTiming(c *gin.Context) {
	role, ok := shiftRole(c)
	if !ok {
		return
	}
	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.shifts.Update(c.Request.Context(), role, shift.Update{
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		GracePeriodMinutes: req.GracePeriodMinutes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func shiftRole(c *gin.Context) (user.Role, bool) {
	role := user.Role(strings.ToLower(c.Param("role")))
	if !role.HasShift() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student, intern or employee"})
		return "", false
	}
	return role, true
}

type userView struct {
	user.Account
	EnrollmentActive bool `json:"enrollment_active"`
}

// ListUsers returns every account ordered by username.
func (h *Handler) ListUsers(c *gin.Context) {
	accounts, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]userView, 0, len(accounts))
	for _, acct := range accounts {
		views = append(views, userView{Account: acct, EnrollmentActive: h.enrollment.ActiveToday(acct)})
	}
	c.JSON(http.StatusOK, views)
}

type enrollmentRequest struct {
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	ActivePeriod *bool   `json:"is_active_period"`
}

// UpdateEnrollment changes a user's enrollment window.
func (h *Handler) UpdateEnrollment(c *gin.Context) {
	var req enrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	verr := &validation.Error{}
	upd := user.EnrollmentUpdate{ActivePeriod: req.ActivePeriod}
	if req.StartDate != nil {
		upd.StartDate = parseDateField(verr, "start_date", *req.StartDate)
	}
	if req.EndDate != nil {
		upd.EndDate = parseDateField(verr, "end_date", *req.EndDate)
	}
	if err := verr.OrNil(); err != nil {
		h.fail(c, err)
		return
	}
	acct, err := h.users.UpdateEnrollment(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userView{Account: *acct, EnrollmentActive: h.enrollment.ActiveToday(*acct)})
}

// reportQuery reads the shared report filters. Unparseable dates are ignored.
func reportQuery(c *gin.Context) report.Query {
	q := report.Query{
		UserID:   c.Query("user_id"),
		Role:     user.Role(strings.ToLower(c.Query("role"))),
		LateOnly: strings.EqualFold(c.Query("late_only"), "true"),
	}
	if d, err := clock.ParseDate(c.Query("from_date")); err == nil {
		q.From = &d
	}
	if d, err := clock.ParseDate(c.Query("to_date")); err == nil {
		q.To = &d
	}
	return q
}

// ListAttendance returns filtered records, newest first.
func (h *Handler) ListAttendance(c *gin.Context) {
	rows, err := h.reports.Attendance(c.Request.Context(), reportQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]recordView, 0, len(rows))
	for i := range rows {
		views = append(views, newRecordView(rows[i].Record, &rows[i].Account, h.loc))
	}
	c.JSON(http.StatusOK, views)
}

// ExportAttendance streams filtered records as CSV.
func (h *Handler) ExportAttendance(c *gin.Context) {
	rows, err := h.reports.Export(c.Request.Context(), reportQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows, h.loc); err != nil {
		h.fail(c, err)
		return
	}
	filename := report.Filename(h.attendance.Today())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// ListSecurityLogs returns security events, newest first.
func (h *Handler) ListSecurityLogs(c *gin.Context) {
	f := audit.Filter{
		UserID: c.Query("user_id"),
		Kind:   audit.Kind(c.Query("kind")),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event kind"})
		return
	}
	if f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	events, err := h.events.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, events)
}
