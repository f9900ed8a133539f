package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/paulmach/orb"

	"livemap/internal/geo"
	"livemap/internal/location"
	"livemap/internal/tracker"
	"livemap/internal/waypoint"
)

var errNoPushSource = errors.New("location reports are not accepted by the configured source")

type api struct {
	tracker *tracker.Tracker
	push    *location.PushSource
	hub     *wsHub
	logger  *slog.Logger
}

func registerRoutes(mux *http.ServeMux, a *api) {
	a.hub.api = a

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/state", a.handleState)
	mux.HandleFunc("GET /api/overlay.geojson", a.handleOverlay)
	mux.HandleFunc("POST /api/waypoints", a.handleRecord)
	mux.HandleFunc("DELETE /api/waypoints", a.handleClear)
	mux.HandleFunc("POST /api/viewport", a.handleViewport)
	mux.HandleFunc("POST /api/location", a.handleLocation)
	mux.HandleFunc("POST /api/panel", a.handlePanel)

	mux.HandleFunc("/ws", a.hub.handleWebSocket)

	fs := http.FileServer(http.Dir("./static"))
	mux.Handle("/", withLogging(a.logger, fs))
}

func withLogging(logger *slog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("static request", "method", r.Method, "path", r.URL.Path)
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotice(w http.ResponseWriter, status int, notice string) {
	writeJSON(w, status, Message{Type: msgNotice, Notice: notice})
}

func (a *api) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.tracker.Snapshot())
}

func (a *api) handleOverlay(w http.ResponseWriter, r *http.Request) {
	data, err := a.tracker.Overlay().GeoJSON().MarshalJSON()
	if err != nil {
		a.logger.Error("error encoding overlay", "action", "overlay", "error", err)
		http.Error(w, "cannot encode overlay", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (a *api) handleRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.tracker.RecordPosition(); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, waypoint.ErrTooManyWaypoints) {
			status = http.StatusConflict
		}
		writeNotice(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a.tracker.Snapshot())
}

func (a *api) handleClear(w http.ResponseWriter, r *http.Request) {
	a.tracker.ClearPositions()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleViewport(w http.ResponseWriter, r *http.Request) {
	var v ViewportReport
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeNotice(w, http.StatusBadRequest, "invalid viewport payload")
		return
	}
	if err := a.settle(context.WithoutCancel(r.Context()), v.Center, v.Zoom); err != nil {
		writeNotice(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) handleLocation(w http.ResponseWriter, r *http.Request) {
	var l LocationReport
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeNotice(w, http.StatusBadRequest, "invalid location payload")
		return
	}
	if err := a.report(l); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errNoPushSource) {
			status = http.StatusConflict
		}
		writeNotice(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) handlePanel(w http.ResponseWriter, r *http.Request) {
	a.tracker.TogglePanel()
	writeJSON(w, http.StatusOK, a.tracker.Panel())
}

// settle validates a display-projection center and hands it to the tracker.
// ctx must outlive the request since the snap runs in the background.
func (a *api) settle(ctx context.Context, center []float64, zoom float64) error {
	if len(center) != 2 {
		return errors.New("center must be [x, y]")
	}
	p := orb.Point{center[0], center[1]}
	if !geo.FromDisplay(p).Valid() {
		return fmt.Errorf("center %v is outside the map", center)
	}
	a.tracker.ViewportSettled(ctx, p, zoom)
	return nil
}

func (a *api) report(l LocationReport) error {
	if a.push == nil {
		return errNoPushSource
	}
	p := geo.NewPosition(l.Latitude, l.Longitude, l.time())
	if !p.Valid() {
		return fmt.Errorf("invalid location %v,%v", l.Latitude, l.Longitude)
	}
	a.push.Report(p)
	return nil
}
