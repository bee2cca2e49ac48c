package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/yegors/co-wx/internal/airports"
	"github.com/yegors/co-wx/internal/weather"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Observation history settings
	Station    StationConfig    `toml:"station"`    // Home airport settings
	Weather    WeatherConfig    `toml:"wx"`         // Weather fetching settings
	Simulation SimulationConfig `toml:"simulation"` // Traffic simulation settings

	// Airports is the database the station was resolved from
	Airports *airports.Database `toml:"-"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for websocket connections (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type            string `toml:"type"`               // Storage backend type (currently only "sqlite" is supported)
	SQLitePath      string `toml:"sqlite_path"`        // Path of the SQLite database holding the observation history
	MaxHistoryInAPI int    `toml:"max_history_in_api"` // Maximum number of observations returned by the history endpoint
}

// StationConfig contains the home airport. It is the view position while no
// simulated aircraft is focused.
type StationConfig struct {
	Latitude       float64 // Latitude of the station in decimal degrees (derived from airports.csv)
	Longitude      float64 // Longitude of the station in decimal degrees (derived from airports.csv)
	ElevationFeet  int     // Elevation of the station above sea level in feet (derived from airports.csv)
	Name           string  // Airport name (derived from airports.csv)
	AirportCode    string  `toml:"airport_code"`     // ICAO code of the airport (e.g., "CYYZ")
	AirportsDBPath string  `toml:"airports_db_path"` // Path to airport database CSV file (OurAirports format)
}

// WeatherConfig contains weather fetching configuration
type WeatherConfig struct {
	URLTemplate           string  `toml:"url_template"`            // Request URL with placeholders for radius (sm), longitude and latitude
	UserAgent             string  `toml:"user_agent"`              // User-Agent header sent to the data server
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"` // HTTP timeout for one request in seconds
	SearchRadiusNM        float64 `toml:"search_radius_nm"`        // Initial search radius in nautical miles
	MaxRadiusNM           float64 `toml:"max_radius_nm"`           // Radius used for the single widened retry
	CheckIntervalSeconds  int     `toml:"check_interval_seconds"`  // How often to evaluate whether new weather is needed
	TryPeriodSeconds      int     `toml:"try_period_seconds"`      // Minimum time between two fetch attempts
	UpdatePeriodSeconds   int     `toml:"update_period_seconds"`   // Age after which weather is refreshed
	UpdateDistanceNM      float64 `toml:"update_distance_nm"`      // Distance from the last weather position that triggers a refresh
	CheckRevocation       *bool   `toml:"check_revocation"`        // Validate stapled OCSP responses (default true)
	MaxResponseBodyKB     int     `toml:"max_response_body_kb"`    // Upper bound for a response body
}

// SimulationConfig contains traffic simulation settings
type SimulationConfig struct {
	UpdateIntervalMs int `toml:"update_interval_ms"` // Dead reckoning tick in milliseconds
}

// Load loads the configuration from a TOML file
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Load station details from airports.csv
	if err := config.loadStation(); err != nil {
		return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
	}

	return &config, nil
}

func (c *Config) loadStation() error {
	if c.Station.AirportCode == "" {
		return fmt.Errorf("airport_code is required")
	}

	db, err := airports.Load(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	return c.ResolveStation(db)
}

// ResolveStation fills in the station position from db
func (c *Config) ResolveStation(db *airports.Database) error {
	c.Station.AirportCode = strings.ToUpper(strings.TrimSpace(c.Station.AirportCode))
	airport, ok := db.Lookup(c.Station.AirportCode)
	if !ok {
		return fmt.Errorf("airport code %s not found in %s", c.Station.AirportCode, c.Station.AirportsDBPath)
	}

	c.Station.Latitude = airport.Latitude
	c.Station.Longitude = airport.Longitude
	c.Station.ElevationFeet = airport.ElevationFeet
	c.Station.Name = airport.Name
	c.Airports = db
	return nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyDefaults fills every unset value
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/co-wx.db"
	}
	if c.Storage.MaxHistoryInAPI == 0 {
		c.Storage.MaxHistoryInAPI = 500
	}

	if c.Station.AirportsDBPath == "" {
		c.Station.AirportsDBPath = "assets/airports.csv"
	}

	def := weather.DefaultConfig()
	w := &c.Weather
	if w.URLTemplate == "" {
		w.URLTemplate = def.URLTemplate
	}
	if w.UserAgent == "" {
		w.UserAgent = def.UserAgent
	}
	if w.RequestTimeoutSeconds == 0 {
		w.RequestTimeoutSeconds = int(def.RequestTimeout / time.Second)
	}
	if w.SearchRadiusNM == 0 {
		w.SearchRadiusNM = def.SearchRadiusNM
	}
	if w.MaxRadiusNM == 0 {
		w.MaxRadiusNM = def.MaxRadiusNM
	}
	if w.CheckIntervalSeconds == 0 {
		w.CheckIntervalSeconds = int(def.CheckInterval / time.Second)
	}
	if w.TryPeriodSeconds == 0 {
		w.TryPeriodSeconds = int(def.TryPeriod / time.Second)
	}
	if w.UpdatePeriodSeconds == 0 {
		w.UpdatePeriodSeconds = int(def.UpdatePeriod / time.Second)
	}
	if w.UpdateDistanceNM == 0 {
		w.UpdateDistanceNM = def.UpdateDistanceNM
	}
	if w.CheckRevocation == nil {
		enabled := def.CheckRevocation
		w.CheckRevocation = &enabled
	}
	if w.MaxResponseBodyKB == 0 {
		w.MaxResponseBodyKB = int(def.MaxResponseBodyBytes / 1024)
	}

	if c.Simulation.UpdateIntervalMs == 0 {
		c.Simulation.UpdateIntervalMs = 1000
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.MaxHistoryInAPI < 0 {
		return fmt.Errorf("invalid max_history_in_api value: %d (must be >= 0)", c.Storage.MaxHistoryInAPI)
	}

	if c.Simulation.UpdateIntervalMs <= 0 {
		return fmt.Errorf("simulation update_interval_ms must be greater than 0: %d", c.Simulation.UpdateIntervalMs)
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}
	return c.ValidateWeather()
}

// ValidateStation validates the station configuration
func (c *Config) ValidateStation() error {
	// Validate Latitude
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}

	// Validate Longitude
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}

	// Elevation can be negative, so we'll just check if it's within a reasonable range, e.g. -2000 to 30000 feet.
	if c.Station.ElevationFeet < -2000 || c.Station.ElevationFeet > 30000 {
		return fmt.Errorf("station elevation out of typical range: %d ft", c.Station.ElevationFeet)
	}

	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if c.Weather.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("weather check_interval_seconds must be greater than 0: %d", c.Weather.CheckIntervalSeconds)
	}
	if c.Weather.TryPeriodSeconds < 0 || c.Weather.UpdatePeriodSeconds < 0 {
		return fmt.Errorf("weather try_period_seconds and update_period_seconds must not be negative")
	}
	if c.Weather.UpdateDistanceNM < 0 {
		return fmt.Errorf("weather update_distance_nm must not be negative: %.1f", c.Weather.UpdateDistanceNM)
	}
	if c.Weather.MaxResponseBodyKB <= 0 {
		return fmt.Errorf("weather max_response_body_kb must be greater than 0: %d", c.Weather.MaxResponseBodyKB)
	}
	return weather.ValidateConfig(c.Weather.ToWeather())
}

// ToWeather converts the TOML section into the weather package configuration
func (w WeatherConfig) ToWeather() weather.Config {
	checkRevocation := true
	if w.CheckRevocation != nil {
		checkRevocation = *w.CheckRevocation
	}
	return weather.Config{
		URLTemplate:          w.URLTemplate,
		UserAgent:            w.UserAgent,
		RequestTimeout:       time.Duration(w.RequestTimeoutSeconds) * time.Second,
		SearchRadiusNM:       w.SearchRadiusNM,
		MaxRadiusNM:          w.MaxRadiusNM,
		CheckInterval:        time.Duration(w.CheckIntervalSeconds) * time.Second,
		TryPeriod:            time.Duration(w.TryPeriodSeconds) * time.Second,
		UpdatePeriod:         time.Duration(w.UpdatePeriodSeconds) * time.Second,
		UpdateDistanceNM:     w.UpdateDistanceNM,
		CheckRevocation:      checkRevocation,
		MaxResponseBodyBytes: int64(w.MaxResponseBodyKB) * 1024,
	}
}
