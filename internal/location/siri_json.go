package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"livemap/internal/geo"
)

// SiriJSONSource follows one VehicleRef in a SIRI VehicleMonitoring JSON document.
type SiriJSONSource struct {
	url        string
	vehicleRef string
	httpClient *http.Client
}

func NewSiriJSONSource(url, vehicleRef string, timeout time.Duration) *SiriJSONSource {
	return &SiriJSONSource{
		url:        url,
		vehicleRef: vehicleRef,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SiriJSONSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	b, err := fetch(ctx, s.httpClient, s.url, "siri json")
	if err != nil {
		return geo.Position{}, err
	}

	// Siri?.ServiceDelivery.VehicleMonitoringDelivery[].VehicleActivity[]
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("decode siri json: %w", err)}
	}
	if siri, ok := root["Siri"].(map[string]any); ok && siri != nil {
		root = siri
	}
	sd, _ := root["ServiceDelivery"].(map[string]any)
	vmdArr, _ := sd["VehicleMonitoringDelivery"].([]any)
	for _, vmdAny := range vmdArr {
		vmd, _ := vmdAny.(map[string]any)
		vaArr, _ := vmd["VehicleActivity"].([]any)
		for _, vaAny := range vaArr {
			va, _ := vaAny.(map[string]any)
			mvj, _ := va["MonitoredVehicleJourney"].(map[string]any)
			if mvj == nil || stringFrom(mvj["VehicleRef"]) != s.vehicleRef {
				continue
			}
			vl, _ := mvj["VehicleLocation"].(map[string]any)
			lat, okLat := floatFrom(vl["Latitude"])
			lon, okLon := floatFrom(vl["Longitude"])
			if !okLat || !okLon {
				continue
			}
			return geo.NewPosition(lat, lon, recordedAt(stringFrom(va["RecordedAtTime"]))), nil
		}
	}
	return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("vehicle %s: %w", s.vehicleRef, errNoFix)}
}

func stringFrom(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func floatFrom(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// recordedAt parses a SIRI RecordedAtTime, falling back to now.
func recordedAt(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}
