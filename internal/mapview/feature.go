// Package mapview models what the browser map widget displays: the viewport
// and the shared marker/overlay layer. Geometries are kept in the display
// projection (EPSG:3857), the same space the widget works in.
package mapview

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"livemap/internal/geo"
)

// Kind tells the renderer how to style a feature.
type Kind string

const (
	KindWaypoint Kind = "waypoint"
	KindRoute    Kind = "route"
	KindDevice   Kind = "device"
	KindSnap     Kind = "snap"
)

// Feature is a single overlay item.
type Feature struct {
	ID         string
	Kind       Kind
	Geometry   orb.Geometry
	Properties map[string]any
}

// NewPoint builds a point feature at c, projected for display.
func NewPoint(kind Kind, c geo.Coordinate) Feature {
	return Feature{
		ID:         uuid.NewString(),
		Kind:       kind,
		Geometry:   geo.ToDisplay(c),
		Properties: map[string]any{},
	}
}

// NewLine builds a line feature from an already projected line.
func NewLine(kind Kind, display orb.LineString) Feature {
	return Feature{
		ID:         uuid.NewString(),
		Kind:       kind,
		Geometry:   display,
		Properties: map[string]any{},
	}
}

func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string            `json:"id"`
		Kind       Kind              `json:"kind"`
		Geometry   *geojson.Geometry `json:"geometry"`
		Properties map[string]any    `json:"properties,omitempty"`
	}{f.ID, f.Kind, geojson.NewGeometry(f.Geometry), f.Properties})
}

// geographic converts a display geometry back to lon/lat.
func geographic(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return geo.FromDisplay(g).Point()
	case orb.LineString:
		out := make(orb.LineString, len(g))
		for i, p := range g {
			out[i] = geo.FromDisplay(p).Point()
		}
		return out
	default:
		return g
	}
}
