// Package sampler polls the device location source on a fixed period and
// hands every valid fix to a sink, in order.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"livemap/internal/geo"
	"livemap/internal/location"
)

// Recenterer moves the viewport without animation.
type Recenterer interface {
	SetCenterCoordinate(c geo.Coordinate)
}

// Sink receives accepted positions.
type Sink func(geo.Position)

// Config controls the polling cadence and the per-request options.
type Config struct {
	Interval time.Duration
	Options  location.Options
}

// DefaultConfig samples once a second with a high-accuracy, uncached, 5 s request.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Options: location.Options{
			HighAccuracy: true,
			MaxCachedAge: 0,
			Timeout:      5 * time.Second,
		},
	}
}

type Sampler struct {
	source location.Source
	cfg    Config
	view   Recenterer
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	centered bool
	last     geo.Position
	samples  int
	failures int
}

func New(source location.Source, cfg Config, view Recenterer, sink Sink, logger *slog.Logger) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Sampler{
		source: source,
		cfg:    cfg,
		view:   view,
		sink:   sink,
		logger: logger,
	}
}

// Run samples every interval until ctx is done. A slow fix delays the next
// tick instead of overlapping it.
func (s *Sampler) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick requests one fix. It reports whether a position was emitted.
func (s *Sampler) tick(ctx context.Context) bool {
	cctx := ctx
	if s.cfg.Options.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.cfg.Options.Timeout)
		defer cancel()
	}
	pos, err := s.source.CurrentPosition(cctx, s.cfg.Options)
	if err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		s.logger.Warn("error getting location", "action", "sample", "code", location.CodeOf(err).String(), "error", err)
		return false
	}
	if !pos.Valid() {
		s.logger.Warn("discarding invalid fix", "action", "sample", "lat", pos.Lat, "lon", pos.Lon)
		return false
	}

	s.mu.Lock()
	first := !s.centered
	s.centered = true
	s.last = pos
	s.samples++
	s.mu.Unlock()

	if first && s.view != nil {
		s.logger.Info("centering on device", "action", "sample", "lat", pos.Lat, "lon", pos.Lon)
		s.view.SetCenterCoordinate(pos.Coordinate)
	}
	if s.sink != nil {
		s.sink(pos)
	}
	return true
}

// Reset re-arms the one-shot centering on the next fix.
func (s *Sampler) Reset() {
	s.mu.Lock()
	s.centered = false
	s.mu.Unlock()
}

// Stats is a snapshot of the sampler counters.
type Stats struct {
	Samples  int          `json:"samples"`
	Failures int          `json:"failures"`
	Centered bool         `json:"centered"`
	Last     geo.Position `json:"last"`
}

func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Samples: s.samples, Failures: s.failures, Centered: s.centered, Last: s.last}
}
