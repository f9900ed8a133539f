package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"livemap/internal/geo"
)

// HTTPSource polls a device endpoint that reports its own fix as
// {"latitude": .., "longitude": .., "timestamp": <epoch ms>}.
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type deviceFix struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
}

func (s *HTTPSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return geo.Position{}, &Error{Code: Unavailable, Err: err}
	}
	q := u.Query()
	q.Set("enableHighAccuracy", strconv.FormatBool(opts.HighAccuracy))
	q.Set("maximumAge", strconv.FormatInt(opts.MaxCachedAge.Milliseconds(), 10))
	u.RawQuery = q.Encode()

	body, err := fetch(ctx, s.httpClient, u.String(), "device")
	if err != nil {
		return geo.Position{}, err
	}
	var fix deviceFix
	if err := json.Unmarshal(body, &fix); err != nil {
		return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("decode device fix: %w", err)}
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return geo.Position{}, &Error{Code: Unavailable, Err: errNoFix}
	}
	ts := time.Now()
	if fix.Timestamp > 0 {
		ts = time.UnixMilli(fix.Timestamp)
	}
	return geo.NewPosition(*fix.Latitude, *fix.Longitude, ts), nil
}
