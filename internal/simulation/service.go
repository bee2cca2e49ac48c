package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/pkg/logger"
)

const (
	MaxSimulatedAircraft = 10 // Hardcoded maximum number of simulated aircraft
)

// ErrNotFound is returned for operations on an unknown hex code
var ErrNotFound = errors.New("simulated aircraft not found")

// SimulatedAircraft represents a single simulated aircraft with its current state
type SimulatedAircraft struct {
	Hex                string    `json:"hex"`
	Flight             string    `json:"flight"`
	AircraftType       string    `json:"aircraft_type"`
	CurrentLat         float64   `json:"current_lat"`
	CurrentLon         float64   `json:"current_lon"`
	CurrentAltitude    float64   `json:"current_altitude"`
	TargetHeading      float64   `json:"target_heading"`
	TargetSpeed        float64   `json:"target_speed"`
	TargetVerticalRate float64   `json:"target_vertical_rate"`
	Focused            bool      `json:"focused"`
	LastUpdate         time.Time `json:"last_update"`
	CreatedAt          time.Time `json:"created_at"`
}

// Position returns the aircraft's current position
func (a SimulatedAircraft) Position() physics.Position {
	return physics.Position{Latitude: a.CurrentLat, Longitude: a.CurrentLon, AltitudeFt: a.CurrentAltitude}
}

// Service manages simulated aircraft and the position the simulation is viewed from
type Service struct {
	aircraft map[string]*SimulatedAircraft
	focus    string
	station  physics.Position
	mutex    sync.RWMutex
	now      func() time.Time
	logger   *logger.Logger
}

// NewService creates a new simulation service. station is the view position
// while no aircraft is focused.
func NewService(station physics.Position, logger *logger.Logger) *Service {
	return &Service{
		aircraft: make(map[string]*SimulatedAircraft),
		station:  station,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("simulation"),
	}
}

// CreateAircraft creates a new simulated aircraft
func (s *Service) CreateAircraft(lat, lon, altitude, heading, speed, verticalRate float64) (SimulatedAircraft, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return SimulatedAircraft{}, fmt.Errorf("invalid position lat=%.6f lon=%.6f", lat, lon)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Check if we've reached the maximum
	if len(s.aircraft) >= MaxSimulatedAircraft {
		return SimulatedAircraft{}, fmt.Errorf("maximum number of simulated aircraft (%d) reached", MaxSimulatedAircraft)
	}

	// Generate unique identifiers
	hex := s.generateUniqueHex()
	flight := s.generateFlightNumber()

	now := s.now()
	aircraft := &SimulatedAircraft{
		Hex:                hex,
		Flight:             flight,
		AircraftType:       "SIM",
		CurrentLat:         lat,
		CurrentLon:         lon,
		CurrentAltitude:    altitude,
		TargetHeading:      heading,
		TargetSpeed:        speed,
		TargetVerticalRate: verticalRate,
		LastUpdate:         now,
		CreatedAt:          now,
	}

	s.aircraft[hex] = aircraft
	metrics.SetSimulationAircraft(len(s.aircraft))
	s.logger.Info("Created simulated aircraft",
		logger.String("hex", hex),
		logger.String("flight", flight),
		logger.Float64("lat", lat),
		logger.Float64("lon", lon))

	return *aircraft, nil
}

// UpdateControls updates the control parameters for a simulated aircraft
func (s *Service) UpdateControls(hex string, heading, speed, verticalRate float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	aircraft, exists := s.aircraft[hex]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, hex)
	}

	aircraft.TargetHeading = heading
	aircraft.TargetSpeed = speed
	aircraft.TargetVerticalRate = verticalRate

	s.logger.Debug("Updated simulation controls",
		logger.String("hex", hex),
		logger.Float64("heading", heading),
		logger.Float64("speed", speed),
		logger.Float64("vs", verticalRate))
	return nil
}

// RemoveAircraft removes a simulated aircraft. Removing the focused aircraft
// returns the view to the station.
func (s *Service) RemoveAircraft(hex string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.aircraft[hex]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, hex)
	}

	delete(s.aircraft, hex)
	if s.focus == hex {
		s.focus = ""
	}
	metrics.SetSimulationAircraft(len(s.aircraft))
	s.logger.Info("Removed simulated aircraft", logger.String("hex", hex))
	return nil
}

// Focus makes hex the aircraft the simulation is viewed from.
// An empty hex returns the view to the station.
func (s *Service) Focus(hex string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if hex != "" {
		if _, exists := s.aircraft[hex]; !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, hex)
		}
	}
	s.focus = hex
	s.logger.Info("View focus changed", logger.String("hex", hex))
	return nil
}

// ViewPosition returns the position of the focused aircraft, or the station
func (s *Service) ViewPosition() physics.Position {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if aircraft, ok := s.aircraft[s.focus]; ok {
		return aircraft.Position()
	}
	return s.station
}

// SetStation changes the fallback view position
func (s *Service) SetStation(pos physics.Position) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.station = pos
}

// GetAircraft returns a simulated aircraft by hex code
func (s *Service) GetAircraft(hex string) (SimulatedAircraft, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	aircraft, exists := s.aircraft[hex]
	if !exists {
		return SimulatedAircraft{}, false
	}
	return s.snapshot(aircraft), true
}

// GetAllAircraft returns all simulated aircraft ordered by creation time
func (s *Service) GetAllAircraft() []SimulatedAircraft {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]SimulatedAircraft, 0, len(s.aircraft))
	for _, aircraft := range s.aircraft {
		result = append(result, s.snapshot(aircraft))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Hex < result[j].Hex
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// snapshot copies an aircraft; the caller holds the lock
func (s *Service) snapshot(aircraft *SimulatedAircraft) SimulatedAircraft {
	out := *aircraft
	out.Focused = aircraft.Hex == s.focus
	return out
}

// UpdatePositions updates the positions of all simulated aircraft based on their control parameters
func (s *Service) UpdatePositions() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for _, aircraft := range s.aircraft {
		deltaTime := now.Sub(aircraft.LastUpdate).Seconds()
		if deltaTime > 0 {
			updateAircraftPosition(aircraft, deltaTime)
			aircraft.LastUpdate = now
		}
	}
}

// Run advances the simulation every interval until ctx is cancelled
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.UpdatePositions()
		}
	}
}

// updateAircraftPosition updates a single aircraft's position using dead reckoning
func updateAircraftPosition(aircraft *SimulatedAircraft, deltaTime float64) {
	// Aviation: 0°=North, 90°=East; math: 0°=East, 90°=North
	headingRad := (90 - aircraft.TargetHeading) * math.Pi / 180

	// speed in knots, time in seconds
	distanceNM := aircraft.TargetSpeed * deltaTime / 3600

	// 1 degree latitude ≈ 60 nautical miles
	latChange := distanceNM * math.Sin(headingRad) / 60
	lonChange := distanceNM * math.Cos(headingRad) / (60 * math.Cos(aircraft.CurrentLat*math.Pi/180))

	aircraft.CurrentLat = math.Max(-90, math.Min(90, aircraft.CurrentLat+latChange))
	aircraft.CurrentLon = normalizeLongitude(aircraft.CurrentLon + lonChange)

	// vertical rate in feet per minute
	aircraft.CurrentAltitude += aircraft.TargetVerticalRate * deltaTime / 60

	// Ensure altitude doesn't go below ground level
	if aircraft.CurrentAltitude < 0 {
		aircraft.CurrentAltitude = 0
		aircraft.TargetVerticalRate = 0
	}
}

func normalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// generateUniqueHex generates a unique 6-character hex code
func (s *Service) generateUniqueHex() string {
	for {
		hex := fmt.Sprintf("%06X", rand.Intn(0xFFFFFF))
		// Ensure it doesn't conflict with existing aircraft
		if _, exists := s.aircraft[hex]; !exists {
			return hex
		}
	}
}

// generateFlightNumber generates a flight number in format SIM001-SIM999
func (s *Service) generateFlightNumber() string {
	return fmt.Sprintf("SIM%03d", rand.Intn(999)+1)
}

// IsSimulated checks if a hex code belongs to a simulated aircraft
func (s *Service) IsSimulated(hex string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, exists := s.aircraft[hex]
	return exists
}
