package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
	_ "modernc.org/sqlite"
)

// timestampLayout sorts lexically in time order. Rows are read back with
// time.RFC3339Nano because the driver may hand the column over as a time.Time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrClosed is returned by Save after Close
var ErrClosed = errors.New("observation storage is closed")

// ObservationRecord represents an applied weather observation in the database
type ObservationRecord struct {
	ID                   int64     `json:"id"`
	CreatedAt            time.Time `json:"timestamp"`
	StationID            string    `json:"station_id"`
	QNHHPa               float64   `json:"qnh_hpa"`
	METAR                string    `json:"metar"`
	StationLatitude      *float64  `json:"station_latitude,omitempty"`
	StationLongitude     *float64  `json:"station_longitude,omitempty"`
	ViewLatitude         float64   `json:"view_latitude"`
	ViewLongitude        float64   `json:"view_longitude"`
	AltitudeCorrectionFt float64   `json:"altitude_correction_ft"`
	MagneticVariationDeg *float64  `json:"magnetic_variation_deg,omitempty"`
}

// ObservationStorage keeps the history of applied weather
type ObservationStorage struct {
	db     *sql.DB
	logger *logger.Logger

	// mu lets a late weather update finish before Close
	mu     sync.RWMutex
	closed bool
}

// NewObservationStorage opens or creates the SQLite database at dbPath
func NewObservationStorage(dbPath string, log *logger.Logger) (*ObservationStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "journal mode"},
		{"PRAGMA synchronous=NORMAL", "synchronous mode"},
		{"PRAGMA busy_timeout=5000", "busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.what, err)
		}
	}

	storage := &ObservationStorage{
		db:     db,
		logger: storageLogger,
	}
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *ObservationStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP NOT NULL,
			station_id TEXT NOT NULL,
			qnh_hpa REAL NOT NULL,
			metar TEXT,
			station_lat REAL,
			station_lon REAL,
			view_lat REAL NOT NULL,
			view_lon REAL NOT NULL,
			altitude_correction_ft REAL NOT NULL,
			magnetic_variation_deg REAL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_created_at ON observations(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// Save stores a weather snapshot and returns its ID
func (s *ObservationStorage) Save(snap weather.Snapshot) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	result, err := s.db.Exec(
		`INSERT INTO observations
		(created_at, station_id, qnh_hpa, metar, station_lat, station_lon, view_lat, view_lon, altitude_correction_ft, magnetic_variation_deg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.UpdatedAt.UTC().Format(timestampLayout),
		snap.StationID,
		snap.QNHHPa,
		snap.METAR,
		nullFloat(snap.StationLatitude),
		nullFloat(snap.StationLongitude),
		snap.ViewPosition.Latitude,
		snap.ViewPosition.Longitude,
		snap.AltitudeCorrectionFt,
		nullFloat(snap.MagneticVariationDeg),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// Recent returns up to limit observations, newest first
func (s *ObservationStorage) Recent(limit int) ([]*ObservationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, station_id, qnh_hpa, metar, station_lat, station_lon, view_lat, view_lon, altitude_correction_ft, magnetic_variation_deg
		FROM observations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	records := make([]*ObservationRecord, 0, limit)
	for rows.Next() {
		var record ObservationRecord
		var createdAt string
		var metar sql.NullString
		var stationLat, stationLon, magVar sql.NullFloat64

		if err := rows.Scan(
			&record.ID,
			&createdAt,
			&record.StationID,
			&record.QNHHPa,
			&metar,
			&stationLat,
			&stationLon,
			&record.ViewLatitude,
			&record.ViewLongitude,
			&record.AltitudeCorrectionFt,
			&magVar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		// Handle nullable fields
		record.METAR = metar.String
		record.StationLatitude = floatPtr(stationLat)
		record.StationLongitude = floatPtr(stationLon)
		record.MagneticVariationDeg = floatPtr(magVar)

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}

	return records, nil
}

// Subscriber returns a weather state subscriber that persists every update
func (s *ObservationStorage) Subscriber() func(weather.Snapshot) {
	return func(snap weather.Snapshot) {
		if _, err := s.Save(snap); errors.Is(err, ErrClosed) {
			s.logger.Warn("Dropped observation after storage was closed",
				logger.Float64("qnh_hpa", snap.QNHHPa))
		} else if err != nil {
			s.logger.Error("Failed to store observation", logger.Error(err))
		}
	}
}

// Close closes the database connection. It waits for a running Save, and
// every later Save returns ErrClosed.
func (s *ObservationStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
