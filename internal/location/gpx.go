package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"livemap/internal/geo"
)

// GPXSource replays the track points of a GPX file, one per request. When the
// track ends it keeps reporting the last point with a fresh timestamp.
type GPXSource struct {
	mu     sync.Mutex
	points []gpx.GPXPoint
	next   int
	offset time.Duration
}

// NewGPXSource loads every track point of the file at path.
func NewGPXSource(path string) (*GPXSource, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx %s: %w", path, err)
	}
	return newGPXSource(g)
}

func newGPXSource(g *gpx.GPX) (*GPXSource, error) {
	var points []gpx.GPXPoint
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			points = append(points, seg.Points...)
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("gpx has no track points")
	}
	s := &GPXSource{points: points}
	if first := points[0].Timestamp; !first.IsZero() {
		// shift recorded times so the replay starts now
		s.offset = time.Since(first)
	}
	return s, nil
}

func (s *GPXSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, classify(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pt := s.points[len(s.points)-1]
	ts := time.Now()
	if s.next < len(s.points) {
		pt = s.points[s.next]
		s.next++
		if !pt.Timestamp.IsZero() {
			ts = pt.Timestamp.Add(s.offset)
		}
	}
	return geo.NewPosition(pt.Latitude, pt.Longitude, ts), nil
}
