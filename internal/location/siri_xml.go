package location

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"livemap/internal/geo"
)

// SiriXMLSource follows one VehicleRef in a SIRI VehicleMonitoring XML document.
type SiriXMLSource struct {
	url        string
	vehicleRef string
	httpClient *http.Client
}

func NewSiriXMLSource(url, vehicleRef string, timeout time.Duration) *SiriXMLSource {
	return &SiriXMLSource{
		url:        url,
		vehicleRef: vehicleRef,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CurrentPosition walks the document token by token (namespace tolerant via
// Name.Local) and stops at the first VehicleActivity for the tracked vehicle.
func (s *SiriXMLSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	body, err := fetch(ctx, s.httpClient, s.url, "siri xml")
	if err != nil {
		return geo.Position{}, err
	}
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		inVA, inVL     bool
		curID, curTS   string
		curLat, curLon string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("decode siri xml: %w", err)}
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "VehicleActivity":
				inVA = true
				curID, curTS, curLat, curLon = "", "", "", ""
			case "VehicleLocation":
				if inVA {
					inVL = true
				}
			case "RecordedAtTime", "VehicleRef", "Latitude", "Longitude":
				if !inVA {
					continue
				}
				var v string
				if err := dec.DecodeElement(&v, &se); err != nil {
					continue
				}
				switch se.Name.Local {
				case "RecordedAtTime":
					curTS = v
				case "VehicleRef":
					curID = v
				case "Latitude":
					if inVL {
						curLat = v
					}
				case "Longitude":
					if inVL {
						curLon = v
					}
				}
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "VehicleLocation":
				inVL = false
			case "VehicleActivity":
				inVA = false
				if curID != s.vehicleRef {
					continue
				}
				if lat, lon, ok := parseLatLon(curLat, curLon); ok {
					return geo.NewPosition(lat, lon, recordedAt(curTS)), nil
				}
			}
		}
	}
	return geo.Position{}, &Error{Code: Unavailable, Err: fmt.Errorf("vehicle %s: %w", s.vehicleRef, errNoFix)}
}

func parseLatLon(lat, lon string) (float64, float64, bool) {
	lf, err1 := strconv.ParseFloat(lat, 64)
	if err1 != nil {
		return 0, 0, false
	}
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err2 != nil {
		return 0, 0, false
	}
	return lf, lo, true
}
