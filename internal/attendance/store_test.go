package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReleasesKeyLocks(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "u1"
			if i%2 == 0 {
				user = "u2"
			}
			_, _ = st.Transition(ctx, user, day, func(cur *Record) (*Record, error) {
				if cur != nil {
					return nil, ErrDuplicateCheckIn
				}
				return &Record{CheckIn: &Stamp{At: day}}, nil
			})
		}(i)
	}
	wg.Wait()

	_, err := st.Transition(ctx, "u3", day, func(*Record) (*Record, error) {
		return nil, errors.New("abort")
	})
	require.Error(t, err)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Empty(t, st.locks)
	assert.Len(t, st.byID, 2)
}
