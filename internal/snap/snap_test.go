package snap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemap/internal/geo"
	"livemap/internal/logging"
	"livemap/internal/mapview"
)

var start = geo.Coordinate{Lat: 35.69672648316882, Lon: 51.36281969540723}

func nominatim(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseReverse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *geo.Coordinate
	}{
		{"place", `{"lat":"35.7","lon":"51.4","display_name":"Azadi Street"}`, &geo.Coordinate{Lat: 35.7, Lon: 51.4}},
		{"empty body", ``, nil},
		{"null", `null`, nil},
		{"empty object", `{}`, nil},
		{"error field", `{"error":"Unable to geocode"}`, nil},
		{"missing lon", `{"lat":"35.7"}`, nil},
		{"not a number", `{"lat":"north","lon":"51.4"}`, nil},
		{"out of range", `{"lat":"135.7","lon":"51.4"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseReverse([]byte(tt.body))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, *tt.want, p.Coordinate)
		})
	}

	_, err := parseReverse([]byte(`{"lat":`))
	assert.Error(t, err)
}

func TestSnapRecentersOnPlace(t *testing.T) {
	srv := nominatim(t, `{"lat":"35.7","lon":"51.4"}`)
	view := mapview.NewView(start, 12)
	layer := mapview.NewLayer()
	layer.Add(mapview.NewPoint(mapview.KindWaypoint, start))
	s := New(view, layer, NewClient(srv.URL, "", time.Second), logging.Discard(), time.Second)

	require.True(t, s.Settled(context.Background()))

	want := geo.ToDisplay(geo.Coordinate{Lat: 35.7, Lon: 51.4})
	st := view.State()
	require.NotNil(t, st.Animation)
	assert.Equal(t, want, st.Animation.Target)
	assert.Equal(t, time.Second, st.Animation.Duration)
	assert.Equal(t, want, st.Center)
	assert.Equal(t, want, st.Marker)
	assert.Equal(t, 12.0, st.Zoom)

	fs := layer.Features()
	require.Len(t, fs, 1)
	assert.Equal(t, mapview.KindSnap, fs[0].Kind)
}

func TestSnapEmptyLeavesViewUntouched(t *testing.T) {
	srv := nominatim(t, ``)
	view := mapview.NewView(start, 12)
	before := view.Center()
	s := New(view, mapview.NewLayer(), NewClient(srv.URL, "", time.Second), logging.Discard(), time.Second)

	assert.False(t, s.Settled(context.Background()))
	assert.Equal(t, before, view.Center())
	assert.Nil(t, view.State().Animation)
}

func TestSnapServerErrorIsNotApplied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	view := mapview.NewView(start, 12)
	before := view.Center()
	s := New(view, nil, NewClient(srv.URL, "", time.Second), logging.Discard(), time.Second)

	assert.False(t, s.Settled(context.Background()))
	assert.Equal(t, before, view.Center())
}

// gatedGeocoder holds each request until its own release channel is closed.
type gatedGeocoder struct {
	mu      sync.Mutex
	started chan geo.Coordinate
	release map[geo.Coordinate]chan struct{}
}

func (g *gatedGeocoder) Reverse(ctx context.Context, at geo.Coordinate) (*Place, error) {
	g.mu.Lock()
	ch := g.release[at]
	g.mu.Unlock()
	g.started <- at
	<-ch
	if at.Lat < 0 {
		return nil, errors.New("boom")
	}
	return &Place{Coordinate: at}, nil
}

func TestSnapDiscardsOlderCompletion(t *testing.T) {
	first := geo.Coordinate{Lat: 35.70, Lon: 51.40}
	second := geo.Coordinate{Lat: 35.80, Lon: 51.50}
	g := &gatedGeocoder{
		started: make(chan geo.Coordinate, 2),
		release: map[geo.Coordinate]chan struct{}{
			first:  make(chan struct{}),
			second: make(chan struct{}),
		},
	}
	view := mapview.NewView(start, 12)
	s := New(view, nil, g, logging.Discard(), time.Second)

	results := make(chan bool, 2)
	go func() { results <- s.Snap(context.Background(), first) }()
	<-g.started
	go func() { results <- s.Snap(context.Background(), second) }()
	<-g.started

	close(g.release[second])
	assert.True(t, <-results)
	close(g.release[first])
	assert.False(t, <-results, "older request completing late is superseded")

	assert.Equal(t, geo.ToDisplay(second), view.Center())
	require.NotNil(t, s.Last())
	assert.Equal(t, second, s.Last().Coordinate)
}
