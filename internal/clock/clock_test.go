package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateIn(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC on the 1st is already the 2nd in India.
	ts := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), DateIn(ts, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), DateIn(ts, kolkata))
}

func TestTimeOfDay(t *testing.T) {
	t.Run("parse both layouts", func(t *testing.T) {
		v, err := ParseTimeOfDay("09:15")
		require.NoError(t, err)
		assert.Equal(t, At(9, 15), v)

		v, err = ParseTimeOfDay("18:00:30")
		require.NoError(t, err)
		assert.Equal(t, At(18, 0).Add(30*time.Second), v)

		_, err = ParseTimeOfDay("25:00")
		assert.Error(t, err)
	})

	t.Run("of keeps sub-second precision", func(t *testing.T) {
		ts := time.Date(2026, 1, 5, 9, 15, 0, 500, time.UTC)
		assert.Greater(t, Of(ts, nil), At(9, 15))
	})

	t.Run("text round trip", func(t *testing.T) {
		b, err := At(9, 0).MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "09:00:00", string(b))

		var v TimeOfDay
		require.NoError(t, v.UnmarshalText(b))
		assert.Equal(t, At(9, 0), v)
	})

	t.Run("scan text column", func(t *testing.T) {
		var v TimeOfDay
		require.NoError(t, v.Scan([]byte("17:45:00")))
		assert.Equal(t, At(17, 45), v)
	})
}
