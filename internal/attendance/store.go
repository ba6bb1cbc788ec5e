package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/clock"
	"geoattend/internal/store"
)

// TransitionFunc receives the current record for a (user, day) key, or nil
// when none exists, and returns the record to persist. Returning an error
// aborts the transition without writing anything.
type TransitionFunc func(cur *Record) (*Record, error)

// Store persists attendance records. Transition serialises read-check-write
// per (user, day) so at most one concurrent caller observes a missing check-in.
type Store interface {
	Transition(ctx context.Context, userID string, day time.Time, fn TransitionFunc) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	SetNotes(ctx context.Context, id, notes string) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

type recordKey struct {
	userID string
	day    time.Time
}

// keyLock is a per-key mutex shared by every caller currently waiting on it.
type keyLock struct {
	sync.Mutex
	refs int
}

// MemoryStore keeps records in process memory, locking per (user, day).
// A key's lock lives only while some transition holds or waits on it.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[recordKey]*keyLock
	byKey map[recordKey]string
	byID  map[string]Record
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[recordKey]*keyLock),
		byKey: make(map[recordKey]string),
		byID:  make(map[string]Record),
		now:   time.Now,
	}
}

func (s *MemoryStore) lock(k recordKey) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[k]
	if !ok {
		l = &keyLock{}
		s.locks[k] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return l
}

func (s *MemoryStore) unlock(k recordKey, l *keyLock) {
	l.Unlock()
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, k)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) Transition(ctx context.Context, userID string, day time.Time, fn TransitionFunc) (*Record, error) {
	k := recordKey{userID: userID, day: clock.Date(day)}
	l := s.lock(k)
	defer s.unlock(k, l)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var cur *Record
	if id, ok := s.byKey[k]; ok {
		rec := s.byID[id]
		cur = &rec
	}
	s.mu.Unlock()

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	saved := *next
	saved.UserID = userID
	saved.Day = k.day
	if cur == nil {
		saved.ID = uuid.NewString()
		saved.CreatedAt = now
	} else {
		saved.ID = cur.ID
		saved.CreatedAt = cur.CreatedAt
	}
	saved.UpdatedAt = now

	s.mu.Lock()
	s.byKey[k] = saved.ID
	s.byID[saved.ID] = saved
	s.mu.Unlock()
	return &saved, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) SetNotes(_ context.Context, id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Notes = notes
	rec.UpdatedAt = s.now().UTC()
	s.byID[id] = rec
	return nil
}

// List returns matching records, newest day first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	var res []Record
	for _, rec := range s.byID {
		if f.matches(rec) {
			res = append(res, rec)
		}
	}
	s.mu.Unlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].Day.Equal(res[j].Day) {
			return res[i].Day.After(res[j].Day)
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
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
