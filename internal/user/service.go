package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"geoattend/internal/store"
	"geoattend/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrNotFound           = errors.New("user not found")
)

const minPasswordLength = 8

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      Role
	StartDate *time.Time
	EndDate   *time.Time
}

// EnrollmentUpdate is an admin change to a user's enrollment window.
type EnrollmentUpdate struct {
	StartDate    *time.Time
	EndDate      *time.Time
	ActivePeriod *bool
}

// Service manages accounts.
type Service struct {
	repo Repository
	cost int
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and persists a new account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	verr := &validation.Error{}
	if in.Username == "" {
		verr.Add("username", "required")
	}
	if len(in.Password) < minPasswordLength {
		verr.Add("password", "must be at least 8 characters")
	}
	if in.Role == "" {
		in.Role = RoleStudent
	}
	if !in.Role.Valid() {
		verr.Add("role", "unknown role")
	}
	if in.Role.NeedsEnrollmentWindow() {
		if in.StartDate == nil || in.EndDate == nil {
			verr.Add("start_date", "students and interns must have start and end dates")
		} else if !in.StartDate.Before(*in.EndDate) {
			verr.Add("start_date", "start date must be before end date")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	acct := &Account{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         in.Role,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		ActivePeriod: true,
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return acct, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acct, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	acct, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return acct, err
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// UpdateEnrollment applies a partial update to the enrollment window.
// The merged window must keep start before end.
func (s *Service) UpdateEnrollment(ctx context.Context, id string, upd EnrollmentUpdate) (*Account, error) {
	acct, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	start, end, active := acct.StartDate, acct.EndDate, acct.ActivePeriod
	if upd.StartDate != nil {
		start = upd.StartDate
	}
	if upd.EndDate != nil {
		end = upd.EndDate
	}
	if upd.ActivePeriod != nil {
		active = *upd.ActivePeriod
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, validation.New("start_date", "start date must be before end date")
	}
	if err := s.repo.UpdateEnrollment(ctx, id, start, end, active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	acct.StartDate, acct.EndDate, acct.ActivePeriod = start, end, active
	return acct, nil
}
