// Package airports loads the OurAirports airports.csv database.
package airports

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/yegors/co-wx/internal/physics"
)

// Airport is a single row of airports.csv
type Airport struct {
	Ident         string
	Type          string
	Name          string
	Latitude      float64
	Longitude     float64
	ElevationFeet int
}

// Position returns the airport reference point
func (a Airport) Position() physics.Position {
	return physics.Position{Latitude: a.Latitude, Longitude: a.Longitude, AltitudeFt: float64(a.ElevationFeet)}
}

// Database is an in-memory, read-only airport list
type Database struct {
	airports []Airport
	byIdent  map[string]int
}

// Load reads an OurAirports formatted CSV file
func Load(path string) (*Database, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	db, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return db, nil
}

// Parse reads OurAirports CSV records from r.
// Columns used: ident (1), type (2), name (3), latitude_deg (4), longitude_deg (5), elevation_ft (6).
func Parse(r io.Reader) (*Database, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, err
	}

	db := &Database{byIdent: make(map[string]int)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 7 {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude for %s: %w", record[1], err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude for %s: %w", record[1], err)
		}

		a := Airport{
			Ident:     record[1],
			Type:      record[2],
			Name:      record[3],
			Latitude:  lat,
			Longitude: lon,
		}
		// Elevation might be empty
		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				a.ElevationFeet = int(elev)
			}
		}

		db.byIdent[a.Ident] = len(db.airports)
		db.airports = append(db.airports, a)
	}

	return db, nil
}

// Len returns the number of airports loaded
func (db *Database) Len() int {
	return len(db.airports)
}

// Lookup finds an airport by its ident (usually the ICAO code)
func (db *Database) Lookup(ident string) (Airport, bool) {
	i, ok := db.byIdent[ident]
	if !ok {
		return Airport{}, false
	}
	return db.airports[i], true
}

// Nearest returns the open, non-heliport airport closest to the given point
func (db *Database) Nearest(lat, lon float64) (Airport, bool) {
	best := -1
	bestDist := 0.0
	for i, a := range db.airports {
		if a.Type == "closed" || a.Type == "heliport" {
			continue
		}
		d := physics.Haversine(lat, lon, a.Latitude, a.Longitude)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Airport{}, false
	}
	return db.airports[best], true
}
