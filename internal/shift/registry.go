package shift

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"geoattend/internal/clock"
	"geoattend/internal/user"
)

// lookupTimeout bounds a shared lookup, which outlives any single caller.
const lookupTimeout = 5 * time.Second

// Registry hands out per-role shift timings, creating defaults on first use.
type Registry struct {
	repo  Repository
	group singleflight.Group
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Get returns the timing for role, creating the default one if none exists.
func (r *Registry) Get(ctx context.Context, role user.Role) (Timing, error) {
	if !role.HasShift() {
		return Timing{}, fmt.Errorf("%s: %w", role, ErrNoShift)
	}
	ch := r.group.DoChan(string(role), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return r.repo.GetOrCreate(shared, DefaultTiming(role))
	})
	select {
	case <-ctx.Done():
		return Timing{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Timing{}, res.Err
		}
		return res.Val.(Timing), nil
	}
}

// Update describes an admin change. Nil fields keep their current value.
type Update struct {
	StartTime          *clock.TimeOfDay
	EndTime            *clock.TimeOfDay
	GracePeriodMinutes *int
}

// Update applies upd to the role's timing. Invalid results are rejected with
// a *ConfigError and nothing is written.
func (r *Registry) Update(ctx context.Context, role user.Role, upd Update) (Timing, error) {
	cur, err := r.Get(ctx, role)
	if err != nil {
		return Timing{}, err
	}
	next := cur
	if upd.StartTime != nil {
		next.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		next.EndTime = *upd.EndTime
	}
	if upd.GracePeriodMinutes != nil {
		next.GracePeriodMinutes = *upd.GracePeriodMinutes
	}
	if err := next.Validate(); err != nil {
		return Timing{}, err
	}
	if err := r.repo.Update(ctx, next); err != nil {
		return Timing{}, err
	}
	return r.repo.GetOrCreate(ctx, next)
}

// List returns the timings of every shift role, creating missing defaults.
func (r *Registry) List(ctx context.Context) ([]Timing, error) {
	var res []Timing
	for _, role := range user.Roles {
		if !role.HasShift() {
			continue
		}
		t, err := r.Get(ctx, role)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}
