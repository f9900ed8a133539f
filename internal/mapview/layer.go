package mapview

import (
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Layer is the shared marker overlay. Waypoints, the route line, the device
// marker and snap markers all live here and any producer may clear it.
type Layer struct {
	mu       sync.Mutex
	features []Feature
	onChange func()
}

func NewLayer() *Layer {
	return &Layer{}
}

// OnChange registers the callback invoked after every mutation.
func (l *Layer) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *Layer) Add(f Feature) {
	l.mutate(func() { l.features = append(l.features, f) })
}

// Clear removes every feature.
func (l *Layer) Clear() {
	l.mutate(func() { l.features = nil })
}

func (l *Layer) RemoveKind(k Kind) {
	l.mutate(func() { l.features = without(l.features, k) })
}

// Replace swaps the whole feature set.
func (l *Layer) Replace(fs ...Feature) {
	l.mutate(func() { l.features = append([]Feature(nil), fs...) })
}

// ReplaceKind swaps the features of one kind, leaving the others in place.
func (l *Layer) ReplaceKind(k Kind, fs ...Feature) {
	l.mutate(func() { l.features = append(without(l.features, k), fs...) })
}

func (l *Layer) Features() []Feature {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Feature(nil), l.features...)
}

// Count returns the number of features of kind k.
func (l *Layer) Count(k Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, f := range l.features {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// GeoJSON exports the layer in geographic coordinates.
func (l *Layer) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features() {
		gf := geojson.NewFeature(geographic(f.Geometry))
		gf.ID = f.ID
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		gf.Properties["kind"] = string(f.Kind)
		fc.Append(gf)
	}
	return fc
}

func (l *Layer) mutate(fn func()) {
	l.mu.Lock()
	fn()
	notify := l.onChange
	l.mu.Unlock()
	if notify != nil {
		notify()
	}
}

func without(fs []Feature, k Kind) []Feature {
	out := make([]Feature, 0, len(fs))
	for _, f := range fs {
		if f.Kind != k {
			out = append(out, f)
		}
	}
	return out
}
