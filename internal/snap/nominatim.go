package snap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"livemap/internal/geo"
)

const defaultUserAgent = "livemap/1.0 (road snapping)"

// Place is a reverse-geocoding hit.
type Place struct {
	geo.Coordinate
	DisplayName string `json:"displayName,omitempty"`
}

// Client talks to a Nominatim-compatible reverse geocoder.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       any    `json:"error"`
}

func (c *Client) URL(at geo.Coordinate) string {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	return c.baseURL + "/reverse?" + params.Encode()
}

// Reverse returns the nearest addressable place. A nil place with a nil
// error means the service had nothing usable for the point.
func (c *Client) Reverse(ctx context.Context, at geo.Coordinate) (*Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(at), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode read: %w", err)
	}
	return parseReverse(body)
}

func parseReverse(body []byte) (*Place, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" || trimmed == "[]" {
		return nil, nil
	}
	var r reverseResponse
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return nil, fmt.Errorf("reverse geocode decode: %w", err)
	}
	if r.Error != nil {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, nil
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, nil
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return nil, nil
	}
	return &Place{Coordinate: c, DisplayName: r.DisplayName}, nil
}
