package shift

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"geoattend/internal/store"
	"geoattend/internal/user"
)

// Repository persists shift timings. GetOrCreate must be atomic per role.
type Repository interface {
	GetOrCreate(ctx context.Context, def Timing) (Timing, error)
	Update(ctx context.Context, t Timing) error
}

// PostgresRepository stores timings in the shift_timings table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const timingColumns = `role, start_time::text, end_time::text, grace_period_minutes, created_at, updated_at`

// GetOrCreate inserts def unless the role already has a row, then reads the row.
// The role primary key makes concurrent first lookups converge on one row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, def Timing) (Timing, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_timings (role, start_time, end_time, grace_period_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role) DO NOTHING
	`, string(def.Role), def.StartTime, def.EndTime, def.GracePeriodMinutes); err != nil {
		return Timing{}, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+timingColumns+` FROM shift_timings WHERE role = $1`, string(def.Role))
	t, err := scanTiming(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Timing{}, store.ErrNotFound
	}
	return t, err
}

// Update overwrites the timing of an existing role.
func (r *PostgresRepository) Update(ctx context.Context, t Timing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shift_timings
		SET start_time = $2, end_time = $3, grace_period_minutes = $4, updated_at = NOW()
		WHERE role = $1
	`, string(t.Role), t.StartTime, t.EndTime, t.GracePeriodMinutes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTiming(s scanner) (Timing, error) {
	var (
		t    Timing
		role string
	)
	if err := s.Scan(&role, &t.StartTime, &t.EndTime, &t.GracePeriodMinutes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Timing{}, err
	}
	t.Role = user.Role(role)
	return t, nil
}

// MemoryRepository keeps timings in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	timings map[user.Role]Timing
	creates int
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{timings: make(map[user.Role]Timing)}
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, def Timing) (Timing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timings[def.Role]; ok {
		return t, nil
	}
	now := time.Now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	r.timings[def.Role] = def
	r.creates++
	return def, nil
}

func (r *MemoryRepository) Update(_ context.Context, t Timing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.timings[t.Role]
	if !ok {
		return store.ErrNotFound
	}
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	r.timings[t.Role] = t
	return nil
}

// Creates returns how many rows were created lazily.
func (r *MemoryRepository) Creates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}
