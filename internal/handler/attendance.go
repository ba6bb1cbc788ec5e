package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/clock"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

type markRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
	Notes     string   `json:"notes"`
}

func (h *Handler) bindMark(c *gin.Context) (attendance.MarkRequest, bool) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return attendance.MarkRequest{}, false
	}
	return attendance.MarkRequest{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Notes:     req.Notes,
		IP:        c.ClientIP(),
		Device:    clientDevice(c),
	}, true
}

// MarkIn records the caller's check-in.
func (h *Handler) MarkIn(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	req, ok := h.bindMark(c)
	if !ok {
		return
	}
	res, err := h.attendance.MarkIn(c.Request.Context(), *acct, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{
		"message":       "Marked in successfully",
		"time":          res.Time,
		"is_late":       res.IsLate,
		"notes_enabled": res.NotesEnabled,
	}
	if res.ExpectedStartTime != nil {
		body["expected_start_time"] = res.ExpectedStartTime.String()
	}
	c.JSON(http.StatusOK, body)
}

// MarkOut records the caller's check-out.
func (h *Handler) MarkOut(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	req, ok := h.bindMark(c)
	if !ok {
		return
	}
	res, err := h.attendance.MarkOut(c.Request.Context(), *acct, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked out successfully", "time": res.Time})
}

type notesRequest struct {
	Notes *string `json:"notes" binding:"required"`
}

// UpdateNotes replaces the notes on one of today's records.
func (h *Handler) UpdateNotes(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.attendance.UpdateNotes(c.Request.Context(), *acct, c.Param("id"), *req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notes updated successfully", "notes": rec.Notes})
}

// MyAttendance lists the caller's records, newest first.
func (h *Handler) MyAttendance(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "31"))
	recs, err := h.attendance.History(c.Request.Context(), acct.ID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newRecordView(rec, acct, h.loc))
	}
	c.JSON(http.StatusOK, views)
}

// Enrollment reports whether the caller may mark attendance today, or on the
// day given by ?date=YYYY-MM-DD.
func (h *Handler) Enrollment(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	day := h.attendance.Today()
	if raw := c.Query("date"); raw != "" {
		d, err := clock.ParseDate(raw)
		if err != nil {
			h.fail(c, validation.New("date", "date must be YYYY-MM-DD"))
			return
		}
		day = d
	}
	c.JSON(http.StatusOK, gin.H{
		"active":     h.enrollment.ActiveOn(*acct, day),
		"date":       day.Format(clock.DateLayout),
		"role":       acct.Role,
		"start_date": formatDate(acct.StartDate),
		"end_date":   formatDate(acct.EndDate),
		"today":      h.attendance.Today().Format(clock.DateLayout),
	})
}

type recordView struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	Username          string   `json:"username,omitempty"`
	FullName          string   `json:"full_name,omitempty"`
	Role              string   `json:"role,omitempty"`
	Date              string   `json:"date"`
	Status            string   `json:"status"`
	CheckInTime       *string  `json:"check_in_time"`
	CheckInLatitude   *float64 `json:"check_in_latitude"`
	CheckInLongitude  *float64 `json:"check_in_longitude"`
	CheckOutTime      *string  `json:"check_out_time"`
	CheckOutLatitude  *float64 `json:"check_out_latitude"`
	CheckOutLongitude *float64 `json:"check_out_longitude"`
	IsLate            bool     `json:"is_late"`
	ExpectedStartTime *string  `json:"expected_start_time"`
	Notes             string   `json:"notes"`
}

func newRecordView(rec attendance.Record, acct *user.Account, loc *time.Location) recordView {
	v := recordView{
		ID:     rec.ID,
		UserID: rec.UserID,
		Date:   rec.DayString(),
		Status: string(rec.State()),
		IsLate: rec.IsLate,
		Notes:  rec.Notes,
	}
	if acct != nil {
		v.Username = acct.Username
		v.FullName = acct.FullName()
		v.Role = string(acct.Role)
	}
	if s := rec.CheckIn; s != nil {
		at := s.At.In(loc).Format(time.RFC3339)
		lat, lon := s.Latitude, s.Longitude
		v.CheckInTime, v.CheckInLatitude, v.CheckInLongitude = &at, &lat, &lon
	}
	if s := rec.CheckOut; s != nil {
		at := s.At.In(loc).Format(time.RFC3339)
		lat, lon := s.Latitude, s.Longitude
		v.CheckOutTime, v.CheckOutLatitude, v.CheckOutLongitude = &at, &lat, &lon
	}
	if rec.ExpectedStartTime != nil {
		start := rec.ExpectedStartTime.String()
		v.ExpectedStartTime = &start
	}
	return v
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(clock.DateLayout)
	return &s
}
