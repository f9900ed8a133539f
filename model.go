package main

import (
	"encoding/json"
	"fmt"
	"time"

	"livemap/internal/tracker"
)

// Message is a websocket frame. Server frames carry State or Notice;
// client frames carry a command Type and its arguments.
type Message struct {
	Type   string            `json:"type"`
	State  *tracker.Snapshot `json:"state,omitempty"`
	Notice string            `json:"notice,omitempty"`

	Center []float64 `json:"center,omitempty"`
	Zoom   float64   `json:"zoom,omitempty"`

	Location *LocationReport `json:"location,omitempty"`
}

const (
	msgState       = "state"
	msgNotice      = "notice"
	msgRecord      = "record"
	msgClear       = "clear"
	msgSettle      = "settle"
	msgTogglePanel = "toggle_panel"
	msgLocation    = "location"
)

// LocationReport is a browser geolocation fix. Timestamp is epoch milliseconds.
type LocationReport struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

func (l LocationReport) time() time.Time {
	if l.Timestamp <= 0 {
		return time.Now()
	}
	return time.UnixMilli(l.Timestamp)
}

// ViewportReport is the client viewport after a pan or zoom.
type ViewportReport struct {
	Center []float64 `json:"center"`
	Zoom   float64   `json:"zoom"`
}

func encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return data, nil
}
