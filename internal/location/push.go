package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livemap/internal/geo"
)

// PushSource adapts pushed fixes (browser geolocation reports) to the polling
// contract. With MaxCachedAge == 0 a request waits for the next report.
type PushSource struct {
	mu      sync.Mutex
	latest  geo.Position
	have    bool
	arrived time.Time
	waiters []chan geo.Position
	now     func() time.Time
}

func NewPushSource() *PushSource {
	return &PushSource{now: time.Now}
}

// Report records a fix and wakes pending requests.
func (s *PushSource) Report(p geo.Position) {
	s.mu.Lock()
	s.latest = p
	s.have = true
	s.arrived = s.now()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w <- p
	}
}

func (s *PushSource) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	s.mu.Lock()
	if s.have && opts.MaxCachedAge > 0 && s.now().Sub(s.arrived) <= opts.MaxCachedAge {
		p := s.latest
		s.mu.Unlock()
		return p, nil
	}
	w := make(chan geo.Position, 1)
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	select {
	case p := <-w:
		return p, nil
	case <-ctx.Done():
		s.drop(w)
		return geo.Position{}, classify(fmt.Errorf("waiting for pushed fix: %w", ctx.Err()))
	}
}

func (s *PushSource) drop(w chan geo.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.waiters {
		if c == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
