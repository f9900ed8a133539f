// Package geo holds the coordinate types shared by the tracking engine and the
// conversions between geographic and display (Web Mercator) coordinates.
package geo

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// EarthRadius is the mean Earth radius in meters used for great-circle distances.
const EarthRadius = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c is a finite, in-range coordinate.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Point returns c as an orb point (lon, lat).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Position is a single device location sample. Values are never mutated; a
// newer sample supersedes an older one.
type Position struct {
	Coordinate
	Timestamp time.Time `json:"timestamp"`
}

// NewPosition builds a Position from raw degrees.
func NewPosition(lat, lon float64, ts time.Time) Position {
	return Position{Coordinate: Coordinate{Lat: lat, Lon: lon}, Timestamp: ts}
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Coordinate) float64 {
	φ1 := toRadians(a.Lat)
	φ2 := toRadians(b.Lat)
	Δφ := toRadians(b.Lat - a.Lat)
	Δλ := toRadians(b.Lon - a.Lon)

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	// rounding can push h past 1 for antipodal points
	h = math.Min(1, h)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ToDisplay projects c into the map's display projection (EPSG:3857).
func ToDisplay(c Coordinate) orb.Point {
	return project.WGS84.ToMercator(c.Point())
}

// FromDisplay converts a display-projection point back to geographic degrees.
func FromDisplay(p orb.Point) Coordinate {
	g := project.Mercator.ToWGS84(p)
	return Coordinate{Lat: g.Lat(), Lon: g.Lon()}
}

// LineToDisplay projects every vertex of a geographic (lon, lat) line.
func LineToDisplay(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = project.WGS84.ToMercator(p)
	}
	return out
}
