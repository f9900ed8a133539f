// Package config loads and validates the service configuration.
//
// The file is YAML. Before parsing, ${VAR} and ${VAR:-default} references are
// substituted from the environment (optionally seeded from a .env file), and
// the result is decoded on top of Default() so omitted keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/drone/envsubst"
	"github.com/go-playground/validator/v10"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no explicit path is given.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

// Default returns the configuration used for keys the file leaves out.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 8080, ShutdownTimeoutMS: 10000},
		Map: MapConfig{
			InitialCenter: CenterConfig{Lat: 35.69672648316882, Lon: 51.36281969540723},
			InitialZoom:   12,
			AnimationMS:   1000,
		},
		Sampler: SamplerConfig{
			IntervalMS:     1000,
			TimeoutMS:      5000,
			MaxCachedAgeMS: 0,
			HighAccuracy:   true,
		},
		Location:  LocationConfig{Source: "push", TimeoutMS: 10000},
		Routing:   RoutingConfig{BaseURL: "https://router.project-osrm.org", Profile: "driving", TimeoutMS: 10000},
		Geocoding: GeocodingConfig{BaseURL: "https://nominatim.openstreetmap.org", UserAgent: "livemap/1.0", TimeoutMS: 10000},
		Telemetry: TelemetryConfig{Exchange: "livemap.motion"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration from path, or from the first of DefaultPaths
// that exists when path is empty. A missing default file yields Default().
func Load(path string) (AppConfig, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	data, err := readConfig(path)
	if err != nil {
		return AppConfig{}, err
	}

	cfg := Default()
	if data != nil {
		if cfg, err = Parse(data); err != nil {
			return AppConfig{}, err
		}
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func readConfig(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return data, nil
	}
	for _, p := range DefaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	return nil, nil
}

// Parse substitutes environment references in data and decodes it over Default().
func Parse(data []byte) (AppConfig, error) {
	replaced, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return AppConfig{}, fmt.Errorf("substitute env: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal([]byte(replaced), &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags and the source-specific requirements.
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc := cfg.Location
	switch loc.Source {
	case "http", "gtfsrt", "siri-json", "siri-xml":
		if loc.URL == "" {
			return fmt.Errorf("invalid config: location.url is required for source %q", loc.Source)
		}
	case "gpx":
		if loc.GPXPath == "" {
			return errors.New("invalid config: location.gpxPath is required for source \"gpx\"")
		}
	}
	switch loc.Source {
	case "gtfsrt", "siri-json", "siri-xml":
		if loc.VehicleID == "" {
			return fmt.Errorf("invalid config: location.vehicleID is required for source %q", loc.Source)
		}
	}
	return nil
}
