package weather

import (
	"math"
	"sync"
	"time"

	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/pkg/logger"
)

// Snapshot is the weather currently applied to the simulation
type Snapshot struct {
	QNHHPa               float64          `json:"qnh_hpa"`
	StationID            string           `json:"station_id"`
	METAR                string           `json:"metar"`
	StationLatitude      *float64         `json:"station_latitude,omitempty"`
	StationLongitude     *float64         `json:"station_longitude,omitempty"`
	AltitudeCorrectionFt float64          `json:"altitude_correction_ft"`
	MagneticVariationDeg *float64         `json:"magnetic_variation_deg,omitempty"`
	ViewPosition         physics.Position `json:"view_position"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// PositionSource supplies the current simulated view position
type PositionSource interface {
	ViewPosition() physics.Position
}

// NearestAirportFunc returns the ident of the airport closest to a point
type NearestAirportFunc func(lat, lon float64) (string, bool)

// State is the shared weather sink. It is written by fetch workers and read
// by everything else.
type State struct {
	mu          sync.RWMutex
	current     *Snapshot
	positions   PositionSource
	nearest     NearestAirportFunc
	subscribers []func(Snapshot)
	now         func() time.Time
	logger      *logger.Logger
}

// NewState creates an empty weather state. nearest may be nil.
func NewState(positions PositionSource, nearest NearestAirportFunc, log *logger.Logger) *State {
	return &State{
		positions: positions,
		nearest:   nearest,
		now:       time.Now,
		logger:    log.Named("weather-state"),
	}
}

// Subscribe registers fn to be called after every update.
// Subscribers run on the updating goroutine and must not block for long.
func (s *State) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SetWeather implements Sink
func (s *State) SetWeather(obs Observation) {
	now := s.now()
	var view physics.Position
	if s.positions != nil {
		view = s.positions.ViewPosition()
	}

	snap := Snapshot{
		QNHHPa:               obs.PressureHPa,
		StationID:            obs.StationID,
		METAR:                obs.RawText,
		StationLatitude:      obs.Latitude,
		StationLongitude:     obs.Longitude,
		AltitudeCorrectionFt: physics.PressureCorrectionFt(obs.PressureHPa),
		ViewPosition:         view,
		UpdatedAt:            now,
	}

	if obs.HasPosition() {
		if snap.StationID == "" && s.nearest != nil {
			if ident, ok := s.nearest(*obs.Latitude, *obs.Longitude); ok {
				snap.StationID = ident
			}
		}
		magVar := physics.CalculateMagneticVariation(*obs.Latitude, *obs.Longitude, 0, now)
		snap.MagneticVariationDeg = &magVar
	}

	s.mu.Lock()
	changed := s.current == nil || math.Abs(s.current.QNHHPa-snap.QNHHPa) > 1e-6
	s.current = &snap
	subscribers := append([]func(Snapshot){}, s.subscribers...)
	s.mu.Unlock()

	metrics.SetQNH(snap.QNHHPa)
	if changed {
		s.logger.Info("Weather updated",
			logger.Float64("qnh_hpa", snap.QNHHPa),
			logger.String("station", snap.StationID),
			logger.Float64("lat", view.Latitude),
			logger.Float64("lon", view.Longitude))
	}

	for _, fn := range subscribers {
		fn(snap)
	}
}

// Snapshot returns a copy of the current weather, if any
func (s *State) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

// QNH returns the current QNH, or standard pressure if no weather is known
func (s *State) QNH() float64 {
	if snap, ok := s.Snapshot(); ok {
		return snap.QNHHPa
	}
	return physics.P0
}

// Clear drops the current weather
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.logger.Info("Weather state cleared")
}
