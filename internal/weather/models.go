package weather

import (
	"fmt"
	"time"
)

// DefaultURLTemplate queries the most recent METAR within a radius around a point.
// Parameters, in order: radius in statute miles, longitude, latitude.
const DefaultURLTemplate = "https://aviationweather.gov/adds/dataserver_current/httpparam?dataSource=metars&requestType=retrieve&format=xml&radialDistance=%.0f;%.2f,%.2f&hoursBeforeNow=2&mostRecent=true&fields=raw_text,station_id,latitude,longitude,altim_in_hg"

// MaxValidLatitude rejects positions at or beyond this absolute latitude.
// The simulator reports such values while still bootstrapping.
const MaxValidLatitude = 80.0

// Observation is a single barometric report from a weather station
type Observation struct {
	PressureHPa float64  `json:"pressure_hpa"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	StationID   string   `json:"station_id"`
	RawText     string   `json:"raw_text"`
}

// HasPosition reports whether the station's location came with the report
func (o Observation) HasPosition() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// FetchRequest is the search around a point. RadiusNM is widened in place
// by the worker, but never beyond the configured maximum.
type FetchRequest struct {
	Latitude  float64
	Longitude float64
	RadiusNM  float64
}

// OutcomeKind classifies how a fetch ended
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotFound
	OutcomeProtocolError
	OutcomeTransportError
	OutcomeParseError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeProtocolError:
		return "protocol_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the tagged result of interpreting a response or running a fetch.
// Observation is set only for OutcomeSuccess. StatusCode is set for HTTP-level
// protocol errors.
type Outcome struct {
	Kind        OutcomeKind
	Observation *Observation
	Message     string
	StatusCode  int
	RadiusNM    float64
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success (%.1f hPa at %q)", o.Observation.PressureHPa, o.Observation.StationID)
	case OutcomeNotFound:
		return "not found"
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Message)
	}
}

// Sink receives the observation of every successful fetch
type Sink interface {
	SetWeather(obs Observation)
}

// TimeoutSource supplies the network timeout for a fetch
type TimeoutSource interface {
	NetworkTimeout() time.Duration
}

// TimeoutFunc adapts a function to TimeoutSource
type TimeoutFunc func() time.Duration

// NetworkTimeout implements TimeoutSource
func (f TimeoutFunc) NetworkTimeout() time.Duration { return f() }

// Config represents the weather subsystem configuration
type Config struct {
	URLTemplate          string
	UserAgent            string
	RequestTimeout       time.Duration
	SearchRadiusNM       float64
	MaxRadiusNM          float64
	CheckInterval        time.Duration
	TryPeriod            time.Duration
	UpdatePeriod         time.Duration
	UpdateDistanceNM     float64
	CheckRevocation      bool
	MaxResponseBodyBytes int64
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		URLTemplate:          DefaultURLTemplate,
		UserAgent:            "co-wx/1.0",
		RequestTimeout:       90 * time.Second,
		SearchRadiusNM:       25,
		MaxRadiusNM:          100,
		CheckInterval:        5 * time.Second,
		TryPeriod:            120 * time.Second,
		UpdatePeriod:         600 * time.Second,
		UpdateDistanceNM:     25,
		CheckRevocation:      true,
		MaxResponseBodyBytes: 1 << 20,
	}
}

// NetworkTimeout implements TimeoutSource with the static configured timeout
func (c Config) NetworkTimeout() time.Duration {
	return c.RequestTimeout
}

// ValidateConfig validates the weather configuration
func ValidateConfig(config Config) error {
	if config.URLTemplate == "" {
		return fmt.Errorf("url_template cannot be empty")
	}
	if config.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if config.SearchRadiusNM <= 0 {
		return fmt.Errorf("search_radius_nm must be greater than 0")
	}
	if config.MaxRadiusNM < config.SearchRadiusNM {
		return fmt.Errorf("max_radius_nm (%.0f) must not be smaller than search_radius_nm (%.0f)", config.MaxRadiusNM, config.SearchRadiusNM)
	}
	if config.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be greater than 0")
	}
	if config.TryPeriod < 0 || config.UpdatePeriod <= 0 {
		return fmt.Errorf("try and update periods must be positive")
	}
	if config.UpdateDistanceNM <= 0 {
		return fmt.Errorf("update_distance_nm must be greater than 0")
	}
	return nil
}
