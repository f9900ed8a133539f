// Package motion derives speed and travelled distance from consecutive
// position samples.
package motion

import (
	"errors"
	"sync"
	"time"

	"livemap/internal/geo"
)

// ErrInvalidPosition is returned for samples with NaN, infinite or
// out-of-range coordinates.
var ErrInvalidPosition = errors.New("motion: invalid position")

// State is the aggregate after the latest accepted sample.
type State struct {
	Previous            *geo.Position `json:"previous,omitempty"`
	TotalDistanceMeters float64       `json:"totalDistanceMeters"`
	CurrentSpeedMps     float64       `json:"currentSpeedMps"`
	AverageSpeedMps     float64       `json:"averageSpeedMps"`
	Samples             int           `json:"samples"`
}

// Aggregator owns the session's motion state. Positions are consumed by
// value in the order Add is called.
type Aggregator struct {
	mu      sync.Mutex
	first   time.Time
	prev    *geo.Position
	total   float64
	current float64
	average float64
	samples int
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds p into the aggregate. Rejected samples leave the state untouched.
func (a *Aggregator) Add(p geo.Position) (State, error) {
	if !p.Valid() {
		return a.State(), ErrInvalidPosition
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.prev == nil {
		a.first = p.Timestamp
		a.current = 0
		a.average = 0
	} else {
		delta := geo.Haversine(a.prev.Coordinate, p.Coordinate)
		a.total += delta

		a.current = 0
		if elapsed := p.Timestamp.Sub(a.prev.Timestamp).Seconds(); elapsed > 0 {
			a.current = delta / elapsed
		}
		a.average = 0
		if span := p.Timestamp.Sub(a.first).Seconds(); span > 0 {
			a.average = a.total / span
		}
	}
	a.prev = &p
	a.samples++
	return a.stateLocked(), nil
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Aggregator) stateLocked() State {
	s := State{
		TotalDistanceMeters: a.total,
		CurrentSpeedMps:     a.current,
		AverageSpeedMps:     a.average,
		Samples:             a.samples,
	}
	if a.prev != nil {
		prev := *a.prev
		s.Previous = &prev
	}
	return s
}

// Reset starts a new session.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.first = time.Time{}
	a.prev = nil
	a.total, a.current, a.average = 0, 0, 0
	a.samples = 0
}
