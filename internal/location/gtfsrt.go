package location

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"livemap/internal/geo"
)

// GtfsRtSource follows one vehicle in a GTFS-Realtime VehiclePositions feed.
type GtfsRtSource struct {
	url        string
	vehicleID  string
	httpClient *http.Client
}

func NewGtfsRtSource(url, vehicleID string, timeout time.Duration) *GtfsRtSource {
	return &GtfsRtSource{
		url:        url,
		vehicleID:  vehicleID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *GtfsRtSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	body, err := fetch(ctx, s.httpClient, s.url, "gtfs-rt")
	if err != nil {
		return geo.Position{}, err
	}
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("decode gtfs-rt: %w", err)}
	}
	headerTS := feed.GetHeader().GetTimestamp()
	for _, ent := range feed.Entity {
		if ent == nil || ent.Vehicle == nil {
			continue
		}
		vp := ent.Vehicle
		if vp.Vehicle == nil || vp.Position == nil {
			continue
		}
		if vp.Vehicle.GetId() != s.vehicleID {
			continue
		}
		lat := vp.Position.Latitude
		lon := vp.Position.Longitude
		if lat == nil || lon == nil {
			continue
		}
		ts := time.Now()
		if t := vp.GetTimestamp(); t > 0 {
			ts = time.Unix(int64(t), 0)
		} else if headerTS > 0 {
			ts = time.Unix(int64(headerTS), 0)
		}
		return geo.NewPosition(float64(*lat), float64(*lon), ts), nil
	}
	return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("vehicle %s: %w", s.vehicleID, errNoFix)}
}
