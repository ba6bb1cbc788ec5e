package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, acct *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdateEnrollment(ctx context.Context, id string, start, end *time.Time, active bool) error
}

// PostgresRepository persists accounts in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, username, email, first_name, last_name, phone, password_hash, role,
	start_date, end_date, active_period, created_at, updated_at`

// Create inserts a new account. Duplicate usernames yield store.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, acct *Account) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, phone, password_hash, role,
			start_date, end_date, active_period)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at
	`, acct.ID, acct.Username, acct.Email, acct.FirstName, acct.LastName, acct.Phone, acct.PasswordHash,
		string(acct.Role), acct.StartDate, acct.EndDate, acct.ActivePeriod)
	if err := row.Scan(&acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", acct.Username, store.ErrConflict)
		}
		return err
	}
	return nil
}

// Get returns an account by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsername returns an account by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username))
}

// List returns all accounts ordered by username.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *acct)
	}
	return res, rows.Err()
}

// UpdateEnrollment rewrites the enrollment window and flag.
func (r *PostgresRepository) UpdateEnrollment(ctx context.Context, id string, start, end *time.Time, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET start_date = $2, end_date = $3, active_period = $4, updated_at = NOW()
		WHERE id = $1
	`, id, start, end, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Account, error) {
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return acct, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*Account, error) {
	var (
		acct       Account
		role       string
		start, end sql.NullTime
	)
	if err := s.Scan(&acct.ID, &acct.Username, &acct.Email, &acct.FirstName, &acct.LastName, &acct.Phone,
		&acct.PasswordHash, &role, &start, &end, &acct.ActivePeriod, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	acct.Role = Role(role)
	if start.Valid {
		d := start.Time.UTC()
		acct.StartDate = &d
	}
	if end.Valid {
		d := end.Time.UTC()
		acct.EndDate = &d
	}
	return &acct, nil
}
