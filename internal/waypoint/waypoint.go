// Package waypoint holds the ordered origin/destination pair the user places
// on the map.
package waypoint

import (
	"errors"
	"fmt"
	"sync"

	"livemap/internal/geo"
	"livemap/internal/mapview"
)

// Max is the number of waypoints a route is drawn between.
const Max = 2

var (
	ErrTooManyWaypoints = errors.New("only two positions can be recorded")
	ErrInvalidWaypoint  = errors.New("invalid waypoint coordinate")
)

// Overlay is the part of the marker layer the manager draws on.
type Overlay interface {
	Add(f mapview.Feature)
	Clear()
}

// Observer is called after every successful change with a copy of the
// waypoints, in order.
type Observer func([]geo.Coordinate)

type Manager struct {
	// op serializes Add/Clear so overlay updates and notifications keep their order.
	op        sync.Mutex
	mu        sync.Mutex
	points    []geo.Coordinate
	overlay   Overlay
	observers []Observer
}

func NewManager(overlay Overlay) *Manager {
	return &Manager{overlay: overlay}
}

// Subscribe registers fn for change notifications.
func (m *Manager) Subscribe(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Add appends a waypoint while fewer than Max are held. A full manager
// rejects the call and keeps its contents.
func (m *Manager) Add(lat, lon float64) error {
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return fmt.Errorf("%w: %v,%v", ErrInvalidWaypoint, lat, lon)
	}

	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if len(m.points) >= Max {
		m.mu.Unlock()
		return ErrTooManyWaypoints
	}
	m.points = append(m.points, c)
	index := len(m.points) - 1
	snapshot, observers := m.snapshotLocked()
	m.mu.Unlock()

	if m.overlay != nil {
		f := mapview.NewPoint(mapview.KindWaypoint, c)
		f.Properties["index"] = index
		m.overlay.Add(f)
	}
	notify(observers, snapshot)
	return nil
}

// Clear removes every waypoint and wipes the overlay.
func (m *Manager) Clear() {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	m.points = nil
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	if m.overlay != nil {
		m.overlay.Clear()
	}
	notify(observers, nil)
}

func (m *Manager) Waypoints() []geo.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]geo.Coordinate(nil), m.points...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func (m *Manager) snapshotLocked() ([]geo.Coordinate, []Observer) {
	return append([]geo.Coordinate(nil), m.points...), append([]Observer(nil), m.observers...)
}

func notify(observers []Observer, points []geo.Coordinate) {
	for _, fn := range observers {
		fn(append([]geo.Coordinate(nil), points...))
	}
}
