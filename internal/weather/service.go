package weather

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/co-wx/pkg/logger"
)

// Service decides when the weather needs refreshing and asks the coordinator
// for it
type Service struct {
	config      Config
	coordinator *Coordinator
	state       *State
	positions   PositionSource
	logger      *logger.Logger
	now         func() time.Time

	checkMu     sync.Mutex
	lastAttempt time.Time

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

// NewService creates a new weather service
func NewService(config Config, coordinator *Coordinator, state *State, positions PositionSource, log *logger.Logger) *Service {
	return &Service{
		config:      config,
		coordinator: coordinator,
		state:       state,
		positions:   positions,
		logger:      log.Named("weather-service"),
		now:         time.Now,
	}
}

// Start begins the periodic weather check
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	s.logger.Info("Starting weather service",
		logger.Duration("check_interval", s.config.CheckInterval),
		logger.Float64("search_radius_nm", s.config.SearchRadiusNM))

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.checkLoop(s.ctx)
	}()

	s.started = true
	return nil
}

// Stop ends the periodic check. A fetch already running is not aborted.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping weather service")
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// IsStarted returns whether the service is currently running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) checkLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.Check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check()
		}
	}
}

// Check requests new weather if none was tried within the try period and
// either there is no weather yet, the view moved far from where the last
// weather was taken, or the last weather is too old. It returns true if a
// fetch was started.
func (s *Service) Check() bool {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	now := s.now()
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.config.TryPeriod {
		return false
	}

	pos := s.positions.ViewPosition()
	snap, ok := s.state.Snapshot()
	switch {
	case !ok:
	case pos.DistanceNM(snap.ViewPosition) > s.config.UpdateDistanceNM:
	case now.Sub(snap.UpdatedAt) > s.config.UpdatePeriod:
	default:
		return false
	}

	s.lastAttempt = now
	return s.coordinator.Update(pos, s.config.SearchRadiusNM)
}

// RefreshNow requests new weather for the current view position regardless
// of the refresh policy. It still won't start a second concurrent fetch.
func (s *Service) RefreshNow() bool {
	s.checkMu.Lock()
	s.lastAttempt = s.now()
	s.checkMu.Unlock()

	s.logger.Info("Manual weather refresh triggered")
	return s.coordinator.Update(s.positions.ViewPosition(), s.config.SearchRadiusNM)
}

// Busy reports whether a fetch is running
func (s *Service) Busy() bool {
	return s.coordinator.Busy()
}

// State returns the weather state the service feeds
func (s *Service) State() *State {
	return s.state
}
