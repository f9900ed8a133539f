package config

import "time"

// ServerConfig contains the HTTP/websocket listener settings.
type ServerConfig struct {
	Port              int `yaml:"port" validate:"gt=0,lte=65535"`
	ShutdownTimeoutMS int `yaml:"shutdownTimeoutMS" validate:"gte=0"`
}

// CenterConfig is a geographic point in degrees.
type CenterConfig struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

// MapConfig describes the initial view.
type MapConfig struct {
	InitialCenter CenterConfig `yaml:"initialCenter"`
	InitialZoom   float64      `yaml:"initialZoom" validate:"gte=0"`
	AnimationMS   int          `yaml:"animationMS" validate:"gte=0"`
}

// SamplerConfig contains the geolocation polling settings.
type SamplerConfig struct {
	IntervalMS     int  `yaml:"intervalMS" validate:"gt=0"`
	TimeoutMS      int  `yaml:"timeoutMS" validate:"gt=0"`
	MaxCachedAgeMS int  `yaml:"maxCachedAgeMS" validate:"gte=0"`
	HighAccuracy   bool `yaml:"highAccuracy"`
}

// LocationConfig selects the device location source.
type LocationConfig struct {
	Source    string `yaml:"source" validate:"oneof=push http gtfsrt siri-json siri-xml gpx"`
	URL       string `yaml:"url" validate:"omitempty,url"`
	VehicleID string `yaml:"vehicleID"`
	GPXPath   string `yaml:"gpxPath"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// RoutingConfig points at an OSRM-compatible routing service.
type RoutingConfig struct {
	BaseURL   string `yaml:"baseURL" validate:"required,url"`
	Profile   string `yaml:"profile" validate:"required"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// GeocodingConfig points at a Nominatim-compatible reverse geocoder.
type GeocodingConfig struct {
	BaseURL   string `yaml:"baseURL" validate:"required,url"`
	UserAgent string `yaml:"userAgent"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// TelemetryConfig enables the optional AMQP motion publisher.
type TelemetryConfig struct {
	AMQPURL  string `yaml:"amqpURL" validate:"omitempty,url"`
	Exchange string `yaml:"exchange"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Map       MapConfig       `yaml:"map"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Location  LocationConfig  `yaml:"location"`
	Routing   RoutingConfig   `yaml:"routing"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// ShutdownTimeout is the HTTP server shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration { return ms(c.ShutdownTimeoutMS) }

// Animation is the duration of animated re-centering.
func (c MapConfig) Animation() time.Duration { return ms(c.AnimationMS) }

// Interval is the sampling period.
func (c SamplerConfig) Interval() time.Duration { return ms(c.IntervalMS) }

// Timeout is the per-fix geolocation budget.
func (c SamplerConfig) Timeout() time.Duration { return ms(c.TimeoutMS) }

// MaxCachedAge is the oldest cached fix the source may return.
func (c SamplerConfig) MaxCachedAge() time.Duration { return ms(c.MaxCachedAgeMS) }

// Timeout is the HTTP client timeout for feed-backed sources.
func (c LocationConfig) Timeout() time.Duration { return ms(c.TimeoutMS) }

// Timeout is the HTTP client timeout for route requests.
func (c RoutingConfig) Timeout() time.Duration { return ms(c.TimeoutMS) }

// Timeout is the HTTP client timeout for reverse-geocoding requests.
func (c GeocodingConfig) Timeout() time.Duration { return ms(c.TimeoutMS) }
