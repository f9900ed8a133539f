package mapview

import (
	"sync"
	"time"

	"github.com/paulmach/orb"

	"livemap/internal/geo"
)

// Animation is the last animated transition requested for the viewport.
type Animation struct {
	Target   orb.Point     `json:"target"`
	Zoom     float64       `json:"zoom,omitempty"`
	Duration time.Duration `json:"durationNs"`
	Seq      uint64        `json:"seq"`
}

// ViewState is a copy of the viewport for clients.
type ViewState struct {
	Center    orb.Point      `json:"center"`
	Geo       geo.Coordinate `json:"geo"`
	Zoom      float64        `json:"zoom"`
	Marker    orb.Point      `json:"marker"`
	Animation *Animation     `json:"animation,omitempty"`
}

// View is the viewport. The position marker follows the center unless it is
// moved explicitly.
type View struct {
	mu       sync.Mutex
	center   orb.Point
	zoom     float64
	marker   orb.Point
	anim     *Animation
	animSeq  uint64
	onChange func()
}

func NewView(center geo.Coordinate, zoom float64) *View {
	p := geo.ToDisplay(center)
	return &View{center: p, zoom: zoom, marker: p}
}

func (v *View) OnChange(fn func()) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *View) Center() orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

// CenterCoordinate returns the center in geographic degrees.
func (v *View) CenterCoordinate() geo.Coordinate {
	return geo.FromDisplay(v.Center())
}

func (v *View) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

func (v *View) Marker() orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.marker
}

// SetCenter jumps to p without animation.
func (v *View) SetCenter(p orb.Point) {
	v.mutate(func() {
		v.center = p
		v.marker = p
	})
}

func (v *View) SetCenterCoordinate(c geo.Coordinate) {
	v.SetCenter(geo.ToDisplay(c))
}

// Animate moves to target over d. zoom <= 0 keeps the current zoom. The
// server-side state takes the end value immediately; clients play the transition.
func (v *View) Animate(target orb.Point, zoom float64, d time.Duration) {
	v.mutate(func() {
		v.animSeq++
		v.anim = &Animation{Target: target, Zoom: zoom, Duration: d, Seq: v.animSeq}
		v.center = target
		v.marker = target
		if zoom > 0 {
			v.zoom = zoom
		}
	})
}

// Settle records a client-reported viewport after a pan/zoom gesture.
func (v *View) Settle(center orb.Point, zoom float64) {
	v.mutate(func() {
		v.center = center
		v.marker = center
		if zoom > 0 {
			v.zoom = zoom
		}
	})
}

func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := ViewState{
		Center: v.center,
		Geo:    geo.FromDisplay(v.center),
		Zoom:   v.zoom,
		Marker: v.marker,
	}
	if v.anim != nil {
		a := *v.anim
		s.Animation = &a
	}
	return s
}

func (v *View) mutate(fn func()) {
	v.mu.Lock()
	fn()
	notify := v.onChange
	v.mu.Unlock()
	if notify != nil {
		notify()
	}
}
