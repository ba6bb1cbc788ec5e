// Package report assembles admin read models over attendance records.
package report

import (
	"context"
	"sort"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/user"
)

// Users lists accounts.
type Users interface {
	List(ctx context.Context) ([]user.Account, error)
}

// Records lists attendance records.
type Records interface {
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
}

// Query filters a report. Zero values match everything.
type Query struct {
	UserID   string
	Role     user.Role
	From     *time.Time
	To       *time.Time
	LateOnly bool
}

// Row joins a record with its owner.
type Row struct {
	Record  attendance.Record
	Account user.Account
}

// Service builds reports.
type Service struct {
	users   Users
	records Records
}

// NewService creates a report service.
func NewService(users Users, records Records) *Service {
	return &Service{users: users, records: records}
}

// Attendance returns matching rows, newest day first.
func (s *Service) Attendance(ctx context.Context, q Query) ([]Row, error) {
	accounts, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]user.Account, len(accounts))
	var ids []string
	for _, acct := range accounts {
		byID[acct.ID] = acct
		if q.UserID != "" && acct.ID != q.UserID {
			continue
		}
		if q.Role != "" && acct.Role != q.Role {
			continue
		}
		ids = append(ids, acct.ID)
	}
	if (q.UserID != "" || q.Role != "") && len(ids) == 0 {
		return nil, nil
	}

	f := attendance.Filter{From: q.From, To: q.To, LateOnly: q.LateOnly}
	if q.UserID != "" || q.Role != "" {
		f.UserIDs = ids
	}
	records, err := s.records.List(ctx, f)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Record: rec, Account: byID[rec.UserID]})
	}
	return rows, nil
}

// Export returns matching rows ordered by day, then username.
func (s *Service) Export(ctx context.Context, q Query) ([]Row, error) {
	rows, err := s.Attendance(ctx, q)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Record.Day.Equal(b.Record.Day) {
			return a.Record.Day.Before(b.Record.Day)
		}
		return a.Account.Username < b.Account.Username
	})
	return rows, nil
}
