package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geoattend/internal/auth"
	"geoattend/internal/clock"
	"geoattend/internal/user"
	"geoattend/internal/validation"
)

type registerRequest struct {
	Username  string `json:"username" binding:"required,max=150"`
	Password  string `json:"password" binding:"required"`
	Confirm   string `json:"password_confirm" binding:"required,eqfield=Password"`
	Email     string `json:"email" binding:"omitempty,email"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
	Phone     string `json:"phone" binding:"max=15"`
	Role      string `json:"role" binding:"omitempty,role,ne=admin"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Register creates a non-admin account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in := user.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      user.Role(req.Role),
	}
	verr := &validation.Error{}
	in.StartDate = parseDateField(verr, "start_date", req.StartDate)
	in.EndDate = parseDateField(verr, "end_date", req.EndDate)
	if err := verr.OrNil(); err != nil {
		h.fail(c, err)
		return
	}

	acct, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": acct})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acct, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	tokens, err := h.tokens.Issue(acct.ID, string(acct.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("login",
		zap.String("user_id", acct.ID),
		zap.String("ip", c.ClientIP()),
		zap.String("device", clientInfo(c).DisplayName()))
	c.JSON(http.StatusOK, gin.H{
		"access":  tokens.AccessToken,
		"refresh": tokens.RefreshToken,
		"user": gin.H{
			"id":         acct.ID,
			"username":   acct.Username,
			"first_name": acct.FirstName,
			"last_name":  acct.LastName,
			"role":       acct.Role,
		},
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Refresh issues a new token pair from a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, err := h.tokens.Parse(req.Refresh, auth.TokenRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	acct, err := h.users.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	tokens, err := h.tokens.Issue(acct.ID, string(acct.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": tokens.AccessToken, "refresh": tokens.RefreshToken})
}

// Profile returns the caller's account.
func (h *Handler) Profile(c *gin.Context) {
	acct, ok := h.currentAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, acct)
}

// parseDateField parses an optional YYYY-MM-DD value, recording failures in verr.
func parseDateField(verr *validation.Error, field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		verr.Add(field, "date must be YYYY-MM-DD")
		return nil
	}
	return &d
}
