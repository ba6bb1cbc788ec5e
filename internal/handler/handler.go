// Package handler exposes the attendance API over gin.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/device"
	"geoattend/internal/enrollment"
	"geoattend/internal/report"
	"geoattend/internal/shift"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

// Deps are the services the handlers delegate to.
type Deps struct {
	Users      *user.Service
	Attendance *attendance.Service
	Shifts     *shift.Registry
	Enrollment *enrollment.Policy
	Reports    *report.Service
	Events     audit.Repository
	Tokens     *auth.Manager
	Location   *time.Location
	Logger     *zap.Logger
}

// Handler serves HTTP requests.
type Handler struct {
	users      *user.Service
	attendance *attendance.Service
	shifts     *shift.Registry
	enrollment *enrollment.Policy
	reports    *report.Service
	events     audit.Repository
	tokens     *auth.Manager
	loc        *time.Location
	log        *zap.Logger
}

// New creates a handler.
func New(d Deps) *Handler {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		users:      d.Users,
		attendance: d.Attendance,
		shifts:     d.Shifts,
		enrollment: d.Enrollment,
		reports:    d.Reports,
		events:     d.Events,
		tokens:     d.Tokens,
		loc:        d.Location,
		log:        d.Logger,
	}
}

// Routes mounts the API under /api/v1.
func (h *Handler) Routes(r gin.IRouter) {
	RegisterValidators()

	api := r.Group("/api/v1")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/token/refresh", h.Refresh)

	authed := api.Group("", auth.UserAuth(h.tokens))
	authed.GET("/profile", h.Profile)
	authed.GET("/enrollment", h.Enrollment)
	authed.POST("/attendance/mark-in", h.MarkIn)
	authed.POST("/attendance/mark-out", h.MarkOut)
	authed.PATCH("/attendance/:id/notes", h.UpdateNotes)
	authed.GET("/attendance/my", h.MyAttendance)

	admin := authed.Group("/admin", auth.RequireRole(string(user.RoleAdmin)))
	admin.GET("/shift-timings", h.ListShiftTimings)
	admin.GET("/shift-timings/:role", h.GetShiftTiming)
	admin.PUT("/shift-timings/:role", h.UpdateShiftTiming)
	admin.GET("/users", h.ListUsers)
	admin.PATCH("/users/:id/enrollment", h.UpdateEnrollment)
	admin.GET("/attendance", h.ListAttendance)
	admin.GET("/export", h.ExportAttendance)
	admin.GET("/security-logs", h.ListSecurityLogs)
}

// currentAccount loads the caller's account fresh so enrollment changes
// apply immediately.
func (h *Handler) currentAccount(c *gin.Context) (*user.Account, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil, false
	}
	acct, err := h.users.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return nil, false
		}
		h.fail(c, err)
		return nil, false
	}
	return acct, true
}

func clientInfo(c *gin.Context) device.Info {
	return device.Parse(
		c.GetHeader("User-Agent"),
		c.GetHeader("Accept-Language"),
		c.GetHeader("Accept-Encoding"),
	)
}

func clientDevice(c *gin.Context) string {
	return clientInfo(c).String()
}

var rejections = []struct {
	err     error
	status  int
	message string
}{
	{attendance.ErrEnrollmentInactive, http.StatusBadRequest, "Your enrollment period is not active"},
	{attendance.ErrGeofenceViolation, http.StatusBadRequest, "You must be within the office premises to mark attendance"},
	{attendance.ErrDuplicateCheckIn, http.StatusBadRequest, "You have already marked in for today"},
	{attendance.ErrDuplicateCheckOut, http.StatusBadRequest, "You have already marked out for today"},
	{attendance.ErrNoCheckInFound, http.StatusBadRequest, "You must mark in before marking out"},
	{attendance.ErrNotToday, http.StatusBadRequest, "You can only update notes for today's attendance"},
	{attendance.ErrForbidden, http.StatusForbidden, "You can only update your own attendance notes"},
	{attendance.ErrRecordNotFound, http.StatusNotFound, "Attendance record not found"},
	{shift.ErrNoShift, http.StatusBadRequest, "This role has no shift timing"},
	{user.ErrNotFound, http.StatusNotFound, "User not found"},
	{user.ErrUsernameTaken, http.StatusBadRequest, "A user with that username already exists"},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
}

// fail maps err to a response. Unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	if verr, ok := validation.As(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.FieldErrors})
		return
	}
	var cfgErr *shift.ConfigError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Message, "fields": gin.H{cfgErr.Field: cfgErr.Message}})
		return
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			c.JSON(r.status, gin.H{"error": r.message})
			return
		}
	}
	h.log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
