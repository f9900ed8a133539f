package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"livemap/internal/geo"
)

// ErrNoRoute is returned when the service answers without a usable route.
var ErrNoRoute = errors.New("no route found")

// Route is a computed driving route between two waypoints.
type Route struct {
	// Path is the route geometry as (lon, lat) pairs.
	Path orb.LineString `json:"-"`
	// Display is Path projected for the map.
	Display          orb.LineString `json:"display"`
	TotalDistanceKm  float64        `json:"totalDistanceKm"`
	TotalDurationMin float64        `json:"totalDurationMin"`
	SegmentNames     []string       `json:"segmentNames"`
}

// Client talks to an OSRM-compatible routing service.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

func NewClient(baseURL, profile string, timeout time.Duration) *Client {
	if profile == "" {
		profile = "driving"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Steps []struct {
				Name string `json:"name"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// URL builds the route request for the pair.
func (c *Client) URL(from, to geo.Coordinate) string {
	return fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?geometries=geojson&overview=full&steps=true",
		c.baseURL, c.profile, formatDegrees(from.Lon), formatDegrees(from.Lat), formatDegrees(to.Lon), formatDegrees(to.Lat))
}

// formatDegrees prints the shortest form that round-trips exactly.
func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Route requests a driving route from -> to.
func (c *Client) Route(ctx context.Context, from, to geo.Coordinate) (*Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(from, to), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("osrm read: %w", err)
	}
	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("osrm returned %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("osrm decode: %w", err)
	}
	// OSRM answers NoRoute and friends with a 400 and a JSON body.
	if parsed.Code != "" && parsed.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRoute, parsed.Code, parsed.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm returned %d", resp.StatusCode)
	}
	return parse(&parsed)
}

func parse(r *osrmResponse) (*Route, error) {
	if len(r.Routes) == 0 {
		return nil, ErrNoRoute
	}
	best := r.Routes[0]

	path := make(orb.LineString, 0, len(best.Geometry.Coordinates))
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			return nil, fmt.Errorf("osrm decode: malformed coordinate %v", pair)
		}
		path = append(path, orb.Point{pair[0], pair[1]})
	}

	names := []string{}
	for _, leg := range best.Legs {
		for _, step := range leg.Steps {
			names = append(names, step.Name)
		}
	}

	return &Route{
		Path:             path,
		Display:          geo.LineToDisplay(path),
		TotalDistanceKm:  best.Distance / 1000,
		TotalDurationMin: best.Duration / 60,
		SegmentNames:     names,
	}, nil
}
