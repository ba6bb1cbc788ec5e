package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// MemoryRepository keeps accounts in process memory. Used by tests and the
// in-memory dev mode.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byName  map[string]string
	nowFunc func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*Account),
		byName:  make(map[string]string),
		nowFunc: time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[acct.Username]; taken {
		return store.ErrConflict
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := r.nowFunc()
	acct.CreatedAt, acct.UpdatedAt = now, now
	cp := *acct
	r.byID[acct.ID] = &cp
	r.byName[acct.Username] = acct.ID
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	r.mu.RLock()
	id, ok := r.byName[username]
	r.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Account, 0, len(r.byID))
	for _, acct := range r.byID {
		res = append(res, *acct)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Username < res[j].Username })
	return res, nil
}

func (r *MemoryRepository) UpdateEnrollment(_ context.Context, id string, start, end *time.Time, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	acct.StartDate, acct.EndDate, acct.ActivePeriod = start, end, active
	acct.UpdatedAt = r.nowFunc()
	return nil
}
