package motion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemap/internal/geo"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestFirstSampleHasZeroSpeed(t *testing.T) {
	a := NewAggregator()
	s, err := a.Add(geo.NewPosition(35.70, 51.40, t0))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.CurrentSpeedMps)
	assert.Equal(t, 0.0, s.AverageSpeedMps)
	assert.False(t, math.IsNaN(s.AverageSpeedMps))
	assert.Equal(t, 0.0, s.TotalDistanceMeters)
	require.NotNil(t, s.Previous)
	assert.Equal(t, 35.70, s.Previous.Lat)
}

func TestSpeedFromTwoSamples(t *testing.T) {
	a := NewAggregator()
	_, err := a.Add(geo.NewPosition(35.70, 51.40, t0))
	require.NoError(t, err)
	s, err := a.Add(geo.NewPosition(35.701, 51.40, t0.Add(10*time.Second)))
	require.NoError(t, err)

	d := geo.Haversine(geo.Coordinate{Lat: 35.70, Lon: 51.40}, geo.Coordinate{Lat: 35.701, Lon: 51.40})
	assert.InDelta(t, d/10, s.CurrentSpeedMps, 1e-9)
	assert.InDelta(t, d/10, s.AverageSpeedMps, 1e-9)
	assert.InDelta(t, d, s.TotalDistanceMeters, 1e-9)
	assert.InDelta(t, 11.1, s.CurrentSpeedMps, 0.05)
}

func TestTotalDistanceIsSumOfLegs(t *testing.T) {
	track := []geo.Position{
		geo.NewPosition(35.7000, 51.4000, t0),
		geo.NewPosition(35.7010, 51.4000, t0.Add(10*time.Second)),
		geo.NewPosition(35.7010, 51.4000, t0.Add(20*time.Second)),
		geo.NewPosition(35.7000, 51.4015, t0.Add(25*time.Second)),
		geo.NewPosition(35.6990, 51.4010, t0.Add(40*time.Second)),
	}

	a := NewAggregator()
	var want, last float64
	for i, p := range track {
		s, err := a.Add(p)
		require.NoError(t, err)
		if i > 0 {
			want += geo.Haversine(track[i-1].Coordinate, p.Coordinate)
		}
		assert.GreaterOrEqual(t, s.TotalDistanceMeters, last, "distance never decreases")
		assert.InDelta(t, want, s.TotalDistanceMeters, 1e-9)
		last = s.TotalDistanceMeters
	}

	s := a.State()
	assert.Equal(t, len(track), s.Samples)
	assert.InDelta(t, want/40, s.AverageSpeedMps, 1e-9)
}

func TestStationarySampleHasZeroSpeed(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Add(geo.NewPosition(35.701, 51.40, t0))
	s, err := a.Add(geo.NewPosition(35.701, 51.40, t0.Add(10*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.CurrentSpeedMps)
	assert.Equal(t, 0.0, s.TotalDistanceMeters)
}

func TestRejectsInvalidPosition(t *testing.T) {
	a := NewAggregator()
	_, err := a.Add(geo.NewPosition(35.70, 51.40, t0))
	require.NoError(t, err)

	s, err := a.Add(geo.NewPosition(math.NaN(), 51.40, t0.Add(time.Second)))
	assert.ErrorIs(t, err, ErrInvalidPosition)
	require.NotNil(t, s.Previous)
	assert.Equal(t, t0, s.Previous.Timestamp, "previous position is not advanced")

	s, err = a.Add(geo.NewPosition(35.701, 51.40, t0.Add(10*time.Second)))
	require.NoError(t, err)
	d := geo.Haversine(geo.Coordinate{Lat: 35.70, Lon: 51.40}, geo.Coordinate{Lat: 35.701, Lon: 51.40})
	assert.InDelta(t, d/10, s.CurrentSpeedMps, 1e-9)
	assert.Equal(t, 2, s.Samples)
}

func TestZeroElapsedDoesNotDivideByZero(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Add(geo.NewPosition(35.70, 51.40, t0))
	s, err := a.Add(geo.NewPosition(35.701, 51.40, t0))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.CurrentSpeedMps)
	assert.Equal(t, 0.0, s.AverageSpeedMps)
	assert.Greater(t, s.TotalDistanceMeters, 0.0)
}

func TestReset(t *testing.T) {
	a := NewAggregator()
	_, _ = a.Add(geo.NewPosition(35.70, 51.40, t0))
	_, _ = a.Add(geo.NewPosition(35.701, 51.40, t0.Add(time.Second)))
	a.Reset()

	assert.Equal(t, State{}, a.State())
}
