package weather

import (
	"context"
	"math"
	"sync"

	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/pkg/logger"
)

// flight is the handle of a launched fetch. done is closed when it finishes.
type flight struct {
	done chan struct{}
}

func (f *flight) ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// inFlight holds at most one fetch handle for the lifetime of the process
type inFlight struct {
	mu      sync.Mutex
	current *flight
}

// ready reports, without blocking, that no fetch is running
func (s *inFlight) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == nil || s.current.ready()
}

// claim stores f as the running fetch if, and only if, the previous one has
// completed. Check and store happen under one lock.
func (s *inFlight) claim(f *flight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.ready() {
		return false
	}
	s.current = f
	return true
}

// Fetcher runs a fetch to completion
type Fetcher interface {
	Run(ctx context.Context, req FetchRequest) Outcome
}

// Coordinator launches fetches in the background, never more than one at a time
type Coordinator struct {
	fetcher  Fetcher
	inFlight inFlight
	wg       sync.WaitGroup
	logger   *logger.Logger
}

// NewCoordinator creates a coordinator around a fetcher
func NewCoordinator(fetcher Fetcher, log *logger.Logger) *Coordinator {
	return &Coordinator{
		fetcher: fetcher,
		logger:  log.Named("weather-coordinator"),
	}
}

// Update starts an asynchronous fetch of the weather around pos. It returns
// true if a fetch was started, which says nothing about its success. It
// returns false for positions at or beyond MaxValidLatitude and while the
// previous fetch is still running.
func (c *Coordinator) Update(pos physics.Position, radiusNM float64) bool {
	if math.IsNaN(pos.Latitude) || math.Abs(pos.Latitude) >= MaxValidLatitude {
		metrics.ObserveUpdateRejected("latitude")
		c.logger.Debug("Ignoring weather update for invalid latitude",
			logger.Float64("lat", pos.Latitude))
		return false
	}

	f := &flight{done: make(chan struct{})}
	if !c.inFlight.claim(f) {
		metrics.ObserveUpdateRejected("in_flight")
		return false
	}

	req := FetchRequest{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		RadiusNM:  radiusNM,
	}
	c.logger.Debug("Starting weather fetch",
		logger.Float64("lat", req.Latitude),
		logger.Float64("lon", req.Longitude),
		logger.Float64("radius_nm", req.RadiusNM))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(f.done)
		c.fetcher.Run(context.Background(), req)
	}()
	return true
}

// Busy reports, without blocking, whether a fetch is running
func (c *Coordinator) Busy() bool {
	return !c.inFlight.ready()
}

// Wait blocks until the running fetch, if any, has finished.
// Fetches cannot be aborted; this is only for shutdown.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
