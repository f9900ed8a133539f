// Package route computes the driving route between the two waypoints.
//
// The Planner is an edge-triggered state machine: it issues one request when
// the waypoint set becomes exactly two and nothing while it stays there.
// Every request carries a sequence number; a completion is applied only if it
// still belongs to the current pair.
package route

import (
	"context"
	"log/slog"
	"sync"

	"github.com/twpayne/go-polyline"

	"livemap/internal/geo"
	"livemap/internal/mapview"
)

// State of the planner.
type State int

const (
	Idle State = iota
	Fetching
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Router computes a route between two points.
type Router interface {
	Route(ctx context.Context, from, to geo.Coordinate) (*Route, error)
}

// Overlay is the part of the marker layer the planner draws on.
type Overlay interface {
	Add(f mapview.Feature)
	RemoveKind(k mapview.Kind)
}

// Status is a snapshot of the planner.
type Status struct {
	State    State  `json:"state"`
	Route    *Route `json:"route,omitempty"`
	Error    string `json:"error,omitempty"`
	Requests int    `json:"requests"`
}

type Planner struct {
	ctx     context.Context
	router  Router
	overlay Overlay
	logger  *slog.Logger

	// draw orders overlay writes against invalidation.
	draw sync.Mutex

	mu       sync.Mutex
	state    State
	seq      uint64
	count    int
	route    *Route
	err      error
	requests int
	onChange func()

	// route of the most recent pair, reused when the same pair comes back.
	// Failures are not kept, so a refilled pair is fetched again.
	last      [2]geo.Coordinate
	lastRoute *Route

	wg sync.WaitGroup
}

// NewPlanner returns an idle planner. ctx bounds every route request.
func NewPlanner(ctx context.Context, router Router, overlay Overlay, logger *slog.Logger) *Planner {
	return &Planner{
		ctx:     ctx,
		router:  router,
		overlay: overlay,
		logger:  logger,
	}
}

func (p *Planner) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// WaypointsChanged is the waypoint manager observer.
func (p *Planner) WaypointsChanged(points []geo.Coordinate) {
	p.draw.Lock()
	defer p.draw.Unlock()

	p.mu.Lock()
	prev := p.count
	p.count = len(points)

	if len(points) != 2 {
		hadRoute := p.route != nil
		changed := p.state != Idle
		p.state = Idle
		p.route = nil
		p.err = nil
		p.seq++
		p.mu.Unlock()

		if hadRoute && p.overlay != nil {
			p.overlay.RemoveKind(mapview.KindRoute)
		}
		if changed {
			p.changed()
		}
		return
	}
	if prev == 2 {
		p.mu.Unlock()
		return
	}

	pair := [2]geo.Coordinate{points[0], points[1]}
	if p.lastRoute != nil && p.last == pair {
		p.state = Ready
		p.route = p.lastRoute
		r := p.route
		p.mu.Unlock()
		p.logger.Info("route restored for unchanged waypoints", "action", "route")
		p.drawRoute(r)
		p.changed()
		return
	}

	p.last = pair
	p.lastRoute = nil
	p.state = Fetching
	p.route = nil
	p.err = nil
	p.seq++
	seq := p.seq
	p.requests++
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Debug("requesting route", "action", "route", "seq", seq,
		"from", pair[0], "to", pair[1])
	p.changed()
	go p.fetch(seq, pair)
}

func (p *Planner) fetch(seq uint64, pair [2]geo.Coordinate) {
	defer p.wg.Done()

	r, err := p.router.Route(p.ctx, pair[0], pair[1])

	p.draw.Lock()
	defer p.draw.Unlock()

	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		p.logger.Debug("discarding superseded route", "action", "route", "seq", seq)
		return
	}
	if err != nil {
		p.state = Failed
		p.err = err
		p.mu.Unlock()
		p.logger.Error("error fetching the route", "action", "route", "error", err)
		p.changed()
		return
	}
	p.state = Ready
	p.route = r
	p.lastRoute = r
	p.mu.Unlock()

	p.drawRoute(r)
	p.logger.Info("streets passed through", "action", "route",
		"streets", r.SegmentNames, "distance_km", r.TotalDistanceKm, "duration_min", r.TotalDurationMin)
	p.changed()
}

func (p *Planner) drawRoute(r *Route) {
	if p.overlay == nil || r == nil {
		return
	}
	f := mapview.NewLine(mapview.KindRoute, r.Display)
	f.Properties["distanceKm"] = r.TotalDistanceKm
	f.Properties["durationMin"] = r.TotalDurationMin
	f.Properties["polyline"] = string(encodePath(r))
	p.overlay.Add(f)
}

// encodePath renders the geographic path as an encoded polyline (lat, lng order).
func encodePath(r *Route) []byte {
	coords := make([][]float64, len(r.Path))
	for i, pt := range r.Path {
		coords[i] = []float64{pt.Lat(), pt.Lon()}
	}
	return polyline.EncodeCoords(coords)
}

func (p *Planner) changed() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Planner) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{State: p.state, Route: p.route, Requests: p.requests}
	if p.err != nil {
		s.Error = p.err.Error()
	}
	return s
}

// Wait blocks until in-flight requests have completed.
func (p *Planner) Wait() {
	p.wg.Wait()
}
