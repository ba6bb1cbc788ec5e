package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository appends and lists security events.
type Repository interface {
	Append(ctx context.Context, evt Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
}

// normalize fills id and timestamp.
func normalize(evt Event) Event {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return evt
}

// PostgresRepository persists events in the security_events table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts an event. Re-delivered events with the same id are ignored.
func (r *PostgresRepository) Append(ctx context.Context, evt Event) error {
	evt = normalize(evt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, user_id, kind, description, ip, device, latitude, longitude, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.UserID, string(evt.Kind), evt.Description, evt.IP, evt.Device, evt.Latitude, evt.Longitude, evt.Timestamp)
	return err
}

// List returns events newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Event, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT id, user_id, kind, description, ip, device, latitude, longitude, occurred_at FROM security_events`
	args := []any{}
	where := ""
	if f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			return nil, nil
		}
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if where != "" {
		query += " WHERE " + where[len(" AND "):]
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var (
			evt      Event
			kind     string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&evt.ID, &evt.UserID, &kind, &evt.Description, &evt.IP, &evt.Device, &lat, &lon, &evt.Timestamp); err != nil {
			return nil, err
		}
		evt.Kind = Kind(kind)
		if lat.Valid {
			evt.Latitude = &lat.Float64
		}
		if lon.Valid {
			evt.Longitude = &lon.Float64
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// MemoryRepository keeps events in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, normalize(evt))
	return nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Event
	for _, evt := range r.events {
		if f.UserID != "" && evt.UserID != f.UserID {
			continue
		}
		if f.Kind != "" && evt.Kind != f.Kind {
			continue
		}
		res = append(res, evt)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if f.Offset > 0 {
		if f.Offset >= len(res) {
			return nil, nil
		}
		res = res[f.Offset:]
	}
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}
