package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var office = Point{Latitude: 17.4375, Longitude: 78.4483}

func TestDistance(t *testing.T) {
	t.Run("identical points are zero apart", func(t *testing.T) {
		for _, p := range []Point{office, {}, {Latitude: -33.86, Longitude: 151.2}, {Latitude: 90, Longitude: 180}} {
			assert.Equal(t, 0.0, Distance(p, p))
		}
	})

	t.Run("distinct points are positive and symmetric", func(t *testing.T) {
		pairs := [][2]Point{
			{office, {Latitude: 17.4376, Longitude: 78.4484}},
			{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 0.07}},
			{{Latitude: 51.5, Longitude: -0.12}, {Latitude: 40.71, Longitude: -74.0}},
		}
		for _, pair := range pairs {
			d := Distance(pair[0], pair[1])
			assert.Greater(t, d, 0.0)
			assert.InDelta(t, d, Distance(pair[1], pair[0]), 1e-9)
		}
	})

	t.Run("0.07 degrees of longitude at the equator", func(t *testing.T) {
		d := Distance(Point{}, Point{Longitude: 0.07})
		assert.InDelta(t, 7783.6, d, 1.0)
	})

	t.Run("known city pair", func(t *testing.T) {
		london := Point{Latitude: 51.5074, Longitude: -0.1278}
		paris := Point{Latitude: 48.8566, Longitude: 2.3522}
		assert.InDelta(t, 343_500, Distance(london, paris), 1_000)
	})
}

func TestFenceContains(t *testing.T) {
	fence := NewFence(office.Latitude, office.Longitude, 100)

	t.Run("center is inside", func(t *testing.T) {
		assert.True(t, fence.Contains(office))
	})

	t.Run("far point is outside", func(t *testing.T) {
		assert.False(t, fence.Contains(Point{Latitude: 17.5, Longitude: 78.5}))
		assert.False(t, fence.Contains(Point{Latitude: office.Latitude, Longitude: office.Longitude + 0.07}))
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		p := Point{Latitude: office.Latitude + 0.0005, Longitude: office.Longitude}
		d := Distance(p, office)
		require.Greater(t, d, 0.0)

		exact := Fence{Center: office, RadiusMeters: d}
		assert.True(t, exact.Contains(p))

		tighter := Fence{Center: office, RadiusMeters: d - 1e-6}
		assert.False(t, tighter.Contains(p))
	})

	t.Run("agrees with distance", func(t *testing.T) {
		points := []Point{
			{Latitude: 17.4380, Longitude: 78.4483},
			{Latitude: 17.4385, Longitude: 78.4490},
			{Latitude: 17.4400, Longitude: 78.4483},
		}
		for _, p := range points {
			assert.Equal(t, fence.DistanceFrom(p) <= fence.RadiusMeters, fence.Contains(p))
		}
	})
}
