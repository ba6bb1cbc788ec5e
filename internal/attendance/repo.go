package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/clock"
	"geoattend/internal/store"
)

const recordColumns = `id, user_id, day,
	check_in_at, check_in_latitude, check_in_longitude, check_in_ip, check_in_device,
	check_out_at, check_out_latitude, check_out_longitude, check_out_ip, check_out_device,
	is_late, expected_start_time::text, notes, created_at, updated_at`

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func lockKey(userID string, day time.Time) string {
	return "attendance:" + userID + ":" + day.Format(clock.DateLayout)
}

// Transition runs fn inside a transaction holding an advisory lock on the
// (user, day) key. The unique (user_id, day) constraint backs the lock.
func (r *Repository) Transition(ctx context.Context, userID string, day time.Time, fn TransitionFunc) (*Record, error) {
	day = clock.Date(day)
	var saved *Record
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey(userID, day)); err != nil {
			return fmt.Errorf("lock record: %w", err)
		}
		cur, err := scanRecord(tx.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM attendance_records WHERE user_id = $1 AND day = $2`, userID, day))
		if errors.Is(err, store.ErrNotFound) {
			cur = nil
		} else if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}
		rec := *next
		rec.UserID = userID
		rec.Day = day
		if cur == nil {
			rec.ID = uuid.NewString()
			err = r.insert(ctx, tx, &rec)
		} else {
			rec.ID = cur.ID
			err = r.update(ctx, tx, &rec)
		}
		if err != nil {
			if store.IsUniqueViolation(err) {
				return fmt.Errorf("record for %s on %s: %w", userID, day.Format(clock.DateLayout), store.ErrConflict)
			}
			return err
		}
		saved = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, rec *Record) error {
	args := append([]any{rec.ID, rec.UserID, rec.Day}, recordValues(rec)...)
	return tx.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, day,
			check_in_at, check_in_latitude, check_in_longitude, check_in_ip, check_in_device,
			check_out_at, check_out_latitude, check_out_longitude, check_out_ip, check_out_device,
			is_late, expected_start_time, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at
	`, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *Repository) update(ctx context.Context, tx *sql.Tx, rec *Record) error {
	args := append([]any{rec.ID}, recordValues(rec)...)
	return tx.QueryRowContext(ctx, `
		UPDATE attendance_records SET
			check_in_at = $2, check_in_latitude = $3, check_in_longitude = $4, check_in_ip = $5, check_in_device = $6,
			check_out_at = $7, check_out_latitude = $8, check_out_longitude = $9, check_out_ip = $10, check_out_device = $11,
			is_late = $12, expected_start_time = $13, notes = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// recordValues flattens the mutable columns in table order.
func recordValues(rec *Record) []any {
	vals := make([]any, 0, 13)
	vals = append(vals, stampValues(rec.CheckIn)...)
	vals = append(vals, stampValues(rec.CheckOut)...)
	var expected any
	if rec.ExpectedStartTime != nil {
		expected = rec.ExpectedStartTime.String()
	}
	return append(vals, rec.IsLate, expected, rec.Notes)
}

func stampValues(s *Stamp) []any {
	if s == nil {
		return []any{nil, nil, nil, nil, nil}
	}
	return []any{s.At, s.Latitude, s.Longitude, s.IP, s.Device}
}

// Get returns a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	return scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id))
}

// SetNotes replaces the notes of a record. No other column is touched.
func (r *Repository) SetNotes(ctx context.Context, id, notes string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_records SET notes = $2, updated_at = NOW() WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns records with basic filters, newest day first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if len(f.UserIDs) > 0 {
		args = append(args, f.UserIDs)
		clauses = append(clauses, fmt.Sprintf("user_id::text = ANY($%d)", len(args)))
	}
	if f.From != nil {
		args = append(args, clock.Date(*f.From))
		clauses = append(clauses, fmt.Sprintf("day >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, clock.Date(*f.To))
		clauses = append(clauses, fmt.Sprintf("day <= $%d", len(args)))
	}
	if f.LateOnly {
		clauses = append(clauses, "is_late")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY day DESC, created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec      Record
		in, out  nullStamp
		expected sql.NullString
	)
	err := s.Scan(&rec.ID, &rec.UserID, &rec.Day,
		&in.at, &in.lat, &in.lon, &in.ip, &in.device,
		&out.at, &out.lat, &out.lon, &out.ip, &out.device,
		&rec.IsLate, &expected, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec.Day = clock.Date(rec.Day)
	rec.CheckIn = in.stamp()
	rec.CheckOut = out.stamp()
	if expected.Valid {
		tod, err := clock.ParseTimeOfDay(expected.String)
		if err != nil {
			return nil, fmt.Errorf("expected_start_time: %w", err)
		}
		rec.ExpectedStartTime = &tod
	}
	return &rec, nil
}

type nullStamp struct {
	at       sql.NullTime
	lat, lon sql.NullFloat64
	ip       sql.NullString
	device   sql.NullString
}

func (n nullStamp) stamp() *Stamp {
	if !n.at.Valid {
		return nil
	}
	return &Stamp{
		At:        n.at.Time,
		Latitude:  n.lat.Float64,
		Longitude: n.lon.Float64,
		IP:        n.ip.String,
		Device:    n.device.String,
	}
}
