package waypoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemap/internal/geo"
	"livemap/internal/mapview"
)

func TestAddUpToTwo(t *testing.T) {
	layer := mapview.NewLayer()
	m := NewManager(layer)

	require.NoError(t, m.Add(35.70, 51.40))
	require.NoError(t, m.Add(35.71, 51.41))

	err := m.Add(35.72, 51.42)
	assert.ErrorIs(t, err, ErrTooManyWaypoints)
	assert.Equal(t, []geo.Coordinate{{Lat: 35.70, Lon: 51.40}, {Lat: 35.71, Lon: 51.41}}, m.Waypoints())
	assert.Equal(t, 2, layer.Count(mapview.KindWaypoint), "rejected add draws nothing")
}

func TestAddRejectsInvalidCoordinate(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.Add(math.NaN(), 51.4), ErrInvalidWaypoint)
	assert.ErrorIs(t, m.Add(95, 51.4), ErrInvalidWaypoint)
	assert.Equal(t, 0, m.Len())
}

func TestClearWipesOverlay(t *testing.T) {
	layer := mapview.NewLayer()
	layer.Add(mapview.NewPoint(mapview.KindDevice, geo.Coordinate{Lat: 1, Lon: 1}))
	m := NewManager(layer)
	require.NoError(t, m.Add(35.70, 51.40))

	m.Clear()
	assert.Empty(t, m.Waypoints())
	assert.Empty(t, layer.Features())

	// clearing an empty manager is fine too
	m.Clear()
	require.NoError(t, m.Add(35.70, 51.40))
	assert.Equal(t, 1, m.Len())
}

func TestObserversSeeEveryChange(t *testing.T) {
	m := NewManager(mapview.NewLayer())
	var seen [][]geo.Coordinate
	m.Subscribe(func(pts []geo.Coordinate) { seen = append(seen, pts) })

	require.NoError(t, m.Add(1, 1))
	require.NoError(t, m.Add(2, 2))
	_ = m.Add(3, 3)
	m.Clear()

	require.Len(t, seen, 3)
	assert.Len(t, seen[0], 1)
	assert.Len(t, seen[1], 2)
	assert.Empty(t, seen[2])

	// observers get copies
	seen[1][0].Lat = 99
	assert.Equal(t, 0, m.Len())
}

func TestWaypointMarkersCarryIndex(t *testing.T) {
	layer := mapview.NewLayer()
	m := NewManager(layer)
	require.NoError(t, m.Add(1, 1))
	require.NoError(t, m.Add(2, 2))

	fs := layer.Features()
	require.Len(t, fs, 2)
	assert.Equal(t, 0, fs[0].Properties["index"])
	assert.Equal(t, 1, fs[1].Properties["index"])
}
