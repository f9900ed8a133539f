// Package location provides the device location sources the sampler polls.
//
// Every source answers a single "where is the device now" request. Push
// sources (browser geolocation reports) and pull sources (device endpoints,
// GTFS-RT and SIRI vehicle feeds, GPX replays) share the same contract.
package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"livemap/internal/geo"
)

// Source answers current-position requests.
type Source interface {
	CurrentPosition(ctx context.Context, opts Options) (geo.Position, error)
}

// Options mirror the browser geolocation request options.
type Options struct {
	HighAccuracy bool
	MaxCachedAge time.Duration
	Timeout      time.Duration
}

// ErrorCode classifies a failed fix.
type ErrorCode int

const (
	Unavailable ErrorCode = iota
	PermissionDenied
	Timeout
)

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission-denied"
	case Timeout:
		return "timeout"
	default:
		return "unavailable"
	}
}

// Error is returned by sources when no fix could be obtained.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "location " + e.Code.String()
	}
	return fmt.Sprintf("location %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the error code, defaulting to Unavailable.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unavailable
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: Timeout, Err: err}
	}
	return &Error{Code: Unavailable, Err: err}
}

var errNoFix = errors.New("no fix for tracked vehicle")

// fetch GETs url and returns the body, mapping auth failures to PermissionDenied.
func fetch(ctx context.Context, client *http.Client, url, kind string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Code: PermissionDenied, Err: fmt.Errorf("%s http status: %d", kind, resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Code: Unavailable, Err: fmt.Errorf("%s http status: %d", kind, resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	return body, nil
}
