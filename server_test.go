package main

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemap/internal/config"
	"livemap/internal/geo"
	"livemap/internal/location"
	"livemap/internal/logging"
	"livemap/internal/route"
	"livemap/internal/snap"
	"livemap/internal/tracker"
)

type stubRouter struct{}

func (stubRouter) Route(_ context.Context, from, to geo.Coordinate) (*route.Route, error) {
	path := orb.LineString{from.Point(), to.Point()}
	return &route.Route{Path: path, Display: geo.LineToDisplay(path), TotalDistanceKm: 5, TotalDurationMin: 10}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Reverse(context.Context, geo.Coordinate) (*snap.Place, error) { return nil, nil }

func newTestServer(t *testing.T, push *location.PushSource) (*httptest.Server, *tracker.Tracker) {
	t.Helper()
	logger := logging.Discard()
	var src location.Source = location.NewPushSource()
	if push != nil {
		src = push
	}
	tr := tracker.New(context.Background(), tracker.DefaultConfig(), src, stubRouter{}, stubGeocoder{}, nil, logger)
	hub := newHub(tr, logger)
	tr.OnChange(hub.notify)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.run(ctx)

	mux := http.NewServeMux()
	registerRoutes(mux, &api{tracker: tr, push: push, hub: hub, logger: logger})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		tr.Wait()
	})
	return srv, tr
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordAndClearWaypoints(t *testing.T) {
	srv, tr := newTestServer(t, nil)

	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/waypoints", "").StatusCode)
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/waypoints", "").StatusCode)

	resp := do(t, http.MethodPost, srv.URL+"/api/waypoints", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var m Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, msgNotice, m.Type)
	assert.Equal(t, "only two positions can be recorded", m.Notice)

	tr.Wait()
	resp = do(t, http.MethodGet, srv.URL+"/api/state", "")
	var st tracker.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Len(t, st.Waypoints, 2)
	assert.Equal(t, route.Ready, tr.Snapshot().Route.State)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/waypoints", "").StatusCode)
	assert.Empty(t, tr.Snapshot().Waypoints)
}

func TestOverlayGeoJSON(t *testing.T) {
	srv, tr := newTestServer(t, nil)
	require.NoError(t, tr.RecordPosition())

	resp := do(t, http.MethodGet, srv.URL+"/api/overlay.geojson", "")
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.InDelta(t, tracker.DefaultCenter.Lon, fc.Features[0].Geometry.Coordinates[0], 1e-6)
	assert.InDelta(t, tracker.DefaultCenter.Lat, fc.Features[0].Geometry.Coordinates[1], 1e-6)
}

func TestViewportValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	c := geo.ToDisplay(geo.Coordinate{Lat: 35.7, Lon: 51.4})
	body, _ := json.Marshal(ViewportReport{Center: []float64{c[0], c[1]}, Zoom: 13})
	assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, srv.URL+"/api/viewport", string(body)).StatusCode)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/viewport", `{"center":[1]}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/viewport", `nope`).StatusCode)
}

func TestLocationReports(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := do(t, http.MethodPost, srv.URL+"/api/location", `{"latitude":35.7,"longitude":51.4}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no push source configured")

	push := location.NewPushSource()
	srv, _ = newTestServer(t, push)

	got := make(chan geo.Position, 1)
	go func() {
		p, err := push.CurrentPosition(context.Background(), location.Options{Timeout: 2 * time.Second})
		if err == nil {
			got <- p
		}
		close(got)
	}()
	require.Eventually(t, func() bool {
		return do(t, http.MethodPost, srv.URL+"/api/location",
			`{"latitude":35.7,"longitude":51.4,"timestamp":1714564800000}`).StatusCode == http.StatusAccepted && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	p := <-got
	assert.Equal(t, 35.7, p.Lat)
	assert.Equal(t, time.UnixMilli(1714564800000), p.Timestamp)

	assert.Equal(t, http.StatusBadRequest,
		do(t, http.MethodPost, srv.URL+"/api/location", `{"latitude":135.7,"longitude":51.4}`).StatusCode)
}

func TestWebSocketCommands(t *testing.T) {
	srv, tr := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, msgState, first.Type)
	require.NotNil(t, first.State)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(Message{Type: msgRecord}))
	}
	// the third record is refused with a notice addressed to this client
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == msgNotice {
			assert.Equal(t, "only two positions can be recorded", m.Notice)
			break
		}
	}

	require.NoError(t, conn.WriteJSON(Message{Type: msgTogglePanel}))
	require.Eventually(t, func() bool { return tr.Panel().Visible }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == msgNotice {
			assert.Equal(t, "unknown command dance", m.Notice)
			break
		}
	}
}

func TestSelectSource(t *testing.T) {
	src, push, err := selectSource(config.LocationConfig{Source: "push"})
	require.NoError(t, err)
	assert.NotNil(t, push)
	assert.Same(t, push, src)

	src, push, err = selectSource(config.LocationConfig{Source: "gtfsrt", URL: "http://feed.example/vp", TimeoutMS: 1000})
	require.NoError(t, err)
	assert.Nil(t, push)
	assert.IsType(t, &location.GtfsRtSource{}, src)

	_, _, err = selectSource(config.LocationConfig{Source: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestEncodeReportsUnencodableState(t *testing.T) {
	st := tracker.Snapshot{}
	st.Motion.TotalDistanceMeters = math.NaN()

	data, err := encode(Message{Type: msgState, State: &st})
	assert.Error(t, err)
	assert.Nil(t, data)

	data, err = encode(Message{Type: msgNotice, Notice: "only two positions can be recorded"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"notice","notice":"only two positions can be recorded"}`, string(data))
}
