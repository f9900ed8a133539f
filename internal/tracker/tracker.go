// Package tracker wires the sampler, motion aggregator, waypoints, route
// planner and road snapper around one map view and owns the info panel.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"livemap/internal/geo"
	"livemap/internal/location"
	"livemap/internal/mapview"
	"livemap/internal/motion"
	"livemap/internal/route"
	"livemap/internal/sampler"
	"livemap/internal/snap"
	"livemap/internal/telemetry"
	"livemap/internal/waypoint"
)

// DefaultCenter is where the map opens before the first fix.
var DefaultCenter = geo.Coordinate{Lat: 35.69672648316882, Lon: 51.36281969540723}

const DefaultZoom = 12

type Config struct {
	Center    geo.Coordinate
	Zoom      float64
	Animation time.Duration
	Sampler   sampler.Config
}

func DefaultConfig() Config {
	return Config{
		Center:    DefaultCenter,
		Zoom:      DefaultZoom,
		Animation: time.Second,
		Sampler:   sampler.DefaultConfig(),
	}
}

// Panel holds the figures shown in the info panel.
type Panel struct {
	Visible          bool    `json:"visible"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	CurrentSpeedMps  float64 `json:"currentSpeedMps"`
	AverageSpeedMps  float64 `json:"averageSpeedMps"`
	TravelledKm      float64 `json:"travelledKm"`
	RouteDistanceKm  float64 `json:"routeDistanceKm"`
	RouteDurationMin float64 `json:"routeDurationMin"`
}

// Snapshot is everything a client needs to render the map.
type Snapshot struct {
	View      mapview.ViewState `json:"view"`
	Features  []mapview.Feature `json:"features"`
	Panel     Panel             `json:"panel"`
	Waypoints []geo.Coordinate  `json:"waypoints"`
	Route     route.Status      `json:"route"`
	Motion    motion.State      `json:"motion"`
	Sampler   sampler.Stats     `json:"sampler"`
}

type Tracker struct {
	cfg       Config
	logger    *slog.Logger
	publisher telemetry.Publisher

	view      *mapview.View
	layer     *mapview.Layer
	waypoints *waypoint.Manager
	planner   *route.Planner
	motion    *motion.Aggregator
	snapper   *snap.Snapper
	sampler   *sampler.Sampler

	mu       sync.Mutex
	ctx      context.Context
	panel    Panel
	onChange func()

	snaps sync.WaitGroup
}

// New builds the tracker and starts the opening animation. ctx bounds route
// requests and telemetry publishing.
func New(ctx context.Context, cfg Config, source location.Source, router route.Router,
	geocoder snap.Geocoder, publisher telemetry.Publisher, logger *slog.Logger) *Tracker {
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	if !cfg.Center.Valid() {
		cfg.Center = DefaultCenter
	}
	if publisher == nil {
		publisher = telemetry.Nop{}
	}

	t := &Tracker{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		ctx:       ctx,
		view:      mapview.NewView(cfg.Center, cfg.Zoom),
		layer:     mapview.NewLayer(),
		motion:    motion.NewAggregator(),
	}
	t.waypoints = waypoint.NewManager(t.layer)
	t.planner = route.NewPlanner(ctx, router, t.layer, logger)
	t.waypoints.Subscribe(t.planner.WaypointsChanged)
	t.snapper = snap.New(t.view, t.layer, geocoder, logger, cfg.Animation)
	t.sampler = sampler.New(source, cfg.Sampler, t.view, t.accept, logger)

	t.view.OnChange(t.changed)
	t.layer.OnChange(t.changed)
	t.planner.OnChange(t.changed)

	t.view.Animate(geo.ToDisplay(cfg.Center), cfg.Zoom, cfg.Animation)
	return t
}

// OnChange registers fn to run after any visible state changes. fn must not
// block; it may call Snapshot.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) changed() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Run samples the device until ctx is done, then waits for in-flight route
// and snap requests.
func (t *Tracker) Run(ctx context.Context) {
	t.sampler.Run(ctx)
	t.snaps.Wait()
	t.planner.Wait()
}

// accept is the sampler sink.
func (t *Tracker) accept(p geo.Position) {
	st, err := t.motion.Add(p)
	if err != nil {
		t.logger.Warn("discarding position", "action", "motion", "error", err)
		return
	}

	t.mu.Lock()
	t.panel.Latitude = p.Lat
	t.panel.Longitude = p.Lon
	ctx := t.ctx
	t.mu.Unlock()

	t.layer.ReplaceKind(mapview.KindDevice, mapview.NewPoint(mapview.KindDevice, p.Coordinate))

	if err := t.publisher.Publish(ctx, telemetry.NewSample(p, st)); err != nil {
		t.logger.Warn("error publishing motion sample", "action", "telemetry", "error", err)
	}
	t.changed()
}

// RecordPosition adds a waypoint at the viewport center.
func (t *Tracker) RecordPosition() error {
	c := t.view.CenterCoordinate()
	if err := t.waypoints.Add(c.Lat, c.Lon); err != nil {
		t.logger.Info("position not recorded", "action", "record", "error", err)
		return err
	}
	t.mu.Lock()
	t.panel.Latitude = c.Lat
	t.panel.Longitude = c.Lon
	t.mu.Unlock()
	t.logger.Info("position recorded", "action", "record", "lat", c.Lat, "lon", c.Lon)
	t.changed()
	return nil
}

func (t *Tracker) ClearPositions() {
	t.waypoints.Clear()
	t.logger.Info("positions cleared", "action", "clear")
}

// ViewportSettled records the client viewport and snaps its center to the
// nearest road in the background.
func (t *Tracker) ViewportSettled(ctx context.Context, center orb.Point, zoom float64) {
	t.view.Settle(center, zoom)
	t.snaps.Add(1)
	go func() {
		defer t.snaps.Done()
		t.snapper.Settled(ctx)
	}()
}

// TogglePanel flips the info panel and returns the new visibility.
func (t *Tracker) TogglePanel() bool {
	t.mu.Lock()
	t.panel.Visible = !t.panel.Visible
	v := t.panel.Visible
	t.mu.Unlock()
	t.changed()
	return v
}

func (t *Tracker) Panel() Panel {
	t.mu.Lock()
	p := t.panel
	t.mu.Unlock()

	st := t.motion.State()
	p.CurrentSpeedMps = st.CurrentSpeedMps
	p.AverageSpeedMps = st.AverageSpeedMps
	p.TravelledKm = st.TotalDistanceMeters / 1000
	if r := t.planner.Status().Route; r != nil {
		p.RouteDistanceKm = r.TotalDistanceKm
		p.RouteDurationMin = r.TotalDurationMin
	}
	return p
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		View:      t.view.State(),
		Features:  t.layer.Features(),
		Panel:     t.Panel(),
		Waypoints: t.waypoints.Waypoints(),
		Route:     t.planner.Status(),
		Motion:    t.motion.State(),
		Sampler:   t.sampler.Stats(),
	}
}

// Overlay exposes the marker layer for GeoJSON export.
func (t *Tracker) Overlay() *mapview.Layer {
	return t.layer
}

// Wait blocks until background snaps and route requests are done.
func (t *Tracker) Wait() {
	t.snaps.Wait()
	t.planner.Wait()
}
