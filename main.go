package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livemap/internal/config"
	"livemap/internal/geo"
	"livemap/internal/location"
	"livemap/internal/logging"
	"livemap/internal/route"
	"livemap/internal/sampler"
	"livemap/internal/snap"
	"livemap/internal/telemetry"
	"livemap/internal/tracker"
)

var (
	httpPort        = flag.Int("port", 0, "HTTP port (overrides server.port)")
	configPath      = flag.String("config", "", "path to config.yml")
	shutdownTimeout = flag.Duration("shutdown_timeout", 0, "HTTP server shutdown timeout (overrides server.shutdownTimeoutMS)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *shutdownTimeout > 0 {
		cfg.Server.ShutdownTimeoutMS = int(shutdownTimeout.Milliseconds())
	}

	logger := logging.New("livemap", cfg.Logging.Level)

	source, push, err := selectSource(cfg.Location)
	if err != nil {
		logger.Error("cannot open location source", "action", "startup", "error", err)
		os.Exit(1)
	}

	publisher, err := telemetry.New(cfg.Telemetry.AMQPURL, cfg.Telemetry.Exchange, logger)
	if err != nil {
		logger.Error("cannot connect telemetry broker", "action", "startup", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	rctx, rcancel := context.WithCancel(context.Background())
	t := tracker.New(rctx, trackerConfig(cfg),
		source,
		route.NewClient(cfg.Routing.BaseURL, cfg.Routing.Profile, cfg.Routing.Timeout()),
		snap.NewClient(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent, cfg.Geocoding.Timeout()),
		publisher, logger)

	hub := newHub(t, logger)
	t.OnChange(hub.notify)

	mux := http.NewServeMux()
	registerRoutes(mux, &api{tracker: t, push: push, hub: hub, logger: logger})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(fmt.Sprintf("server starting on http://localhost:%d/", cfg.Server.Port), "action", "startup",
			"source", cfg.Location.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	go hub.run(rctx)
	done := make(chan struct{})
	go func() {
		t.Run(rctx)
		close(done)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("shutdown initiated...", "action", "shutdown")

	rcancel()
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "action", "shutdown", "error", err)
	} else {
		logger.Info("HTTP server shut down successfully", "action", "shutdown")
	}
}

func trackerConfig(cfg config.AppConfig) tracker.Config {
	return tracker.Config{
		Center:    geo.Coordinate{Lat: cfg.Map.InitialCenter.Lat, Lon: cfg.Map.InitialCenter.Lon},
		Zoom:      cfg.Map.InitialZoom,
		Animation: cfg.Map.Animation(),
		Sampler: sampler.Config{
			Interval: cfg.Sampler.Interval(),
			Options: location.Options{
				HighAccuracy: cfg.Sampler.HighAccuracy,
				MaxCachedAge: cfg.Sampler.MaxCachedAge(),
				Timeout:      cfg.Sampler.Timeout(),
			},
		},
	}
}

// selectSource opens the configured device location source. The push source
// is also returned so the HTTP and websocket surfaces can feed it.
func selectSource(cfg config.LocationConfig) (location.Source, *location.PushSource, error) {
	switch cfg.Source {
	case "", "push":
		p := location.NewPushSource()
		return p, p, nil
	case "http":
		return location.NewHTTPSource(cfg.URL, cfg.Timeout()), nil, nil
	case "gtfsrt":
		return location.NewGtfsRtSource(cfg.URL, cfg.VehicleID, cfg.Timeout()), nil, nil
	case "siri-json":
		return location.NewSiriJSONSource(cfg.URL, cfg.VehicleID, cfg.Timeout()), nil, nil
	case "siri-xml":
		return location.NewSiriXMLSource(cfg.URL, cfg.VehicleID, cfg.Timeout()), nil, nil
	case "gpx":
		s, err := location.NewGPXSource(cfg.GPXPath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown location source %q", cfg.Source)
}
