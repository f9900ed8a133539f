// Package snap re-centers the map on the nearest addressable road point once
// the viewport has settled.
package snap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"livemap/internal/geo"
	"livemap/internal/mapview"
)

// Geocoder resolves a point to the nearest addressable place.
type Geocoder interface {
	Reverse(ctx context.Context, at geo.Coordinate) (*Place, error)
}

// Viewport is the part of the map view the snapper reads and moves.
type Viewport interface {
	CenterCoordinate() geo.Coordinate
	Animate(target orb.Point, zoom float64, d time.Duration)
}

// Overlay is replaced wholesale by the snap marker.
type Overlay interface {
	Replace(fs ...mapview.Feature)
}

type Snapper struct {
	view      Viewport
	overlay   Overlay
	geocoder  Geocoder
	logger    *slog.Logger
	animation time.Duration

	// apply orders viewport writes between completions.
	apply sync.Mutex

	mu        sync.Mutex
	issued    uint64
	completed uint64
	last      *Place
}

func New(view Viewport, overlay Overlay, geocoder Geocoder, logger *slog.Logger, animation time.Duration) *Snapper {
	if animation <= 0 {
		animation = time.Second
	}
	return &Snapper{
		view:      view,
		overlay:   overlay,
		geocoder:  geocoder,
		logger:    logger,
		animation: animation,
	}
}

// Settled snaps the current viewport center.
func (s *Snapper) Settled(ctx context.Context) bool {
	return s.Snap(ctx, s.view.CenterCoordinate())
}

// Snap reverse-geocodes at and, when the service returns a usable place,
// animates the view there. It reports whether the view moved. A completion
// older than one already applied or rejected is discarded.
func (s *Snapper) Snap(ctx context.Context, at geo.Coordinate) bool {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	place, err := s.geocoder.Reverse(ctx, at)

	s.apply.Lock()
	defer s.apply.Unlock()

	s.mu.Lock()
	if seq <= s.completed {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded snap", "action", "snap", "seq", seq)
		return false
	}
	s.completed = seq
	if place != nil {
		s.last = place
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("error fetching the nearest road", "action", "snap", "error", err)
		return false
	}
	if place == nil {
		s.logger.Info("no addressable place near the viewport center", "action", "snap",
			"lat", at.Lat, "lon", at.Lon)
		return false
	}

	target := geo.ToDisplay(place.Coordinate)
	s.view.Animate(target, 0, s.animation)
	if s.overlay != nil {
		marker := mapview.NewPoint(mapview.KindSnap, place.Coordinate)
		if place.DisplayName != "" {
			marker.Properties["name"] = place.DisplayName
		}
		s.overlay.Replace(marker)
	}
	s.logger.Debug("snapped to road", "action", "snap", "lat", place.Lat, "lon", place.Lon)
	return true
}

// Last is the most recently applied place, if any.
func (s *Snapper) Last() *Place {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
