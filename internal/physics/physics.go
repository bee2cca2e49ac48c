package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	P0           = 1013.25  // Standard Sea Level Pressure (hPa)
	InHgStandard = 29.92126 // Standard Sea Level Pressure (inHg)
	HPaPerInHg   = P0 / InHgStandard

	// The pressure drops approximately by 11.3 Pa per meter in the first 1000 m above sea level.
	PaPerMeter  = 11.3
	MetersPerFt = 0.3048
	FtPerHPa    = (100 / PaPerMeter) / MetersPerFt

	MetersPerNM       = 1852.0
	StatuteMilesPerNM = 1.15078
	EarthRadiusM      = 6371000.0
)

// Position is a geodetic point in decimal degrees
type Position struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeFt float64 `json:"altitude_ft"`
}

// Valid reports whether both coordinates are numbers within their ranges
func (p Position) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// DistanceNM returns the great-circle distance to other in nautical miles
func (p Position) DistanceNM(other Position) float64 {
	return Haversine(p.Latitude, p.Longitude, other.Latitude, other.Longitude) / MetersPerNM
}

// Haversine returns the great-circle distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// InHgToHPa converts an altimeter setting in inches of mercury to hectopascal
func InHgToHPa(inHg float64) float64 {
	return inHg * HPaPerInHg
}

// NMToStatuteMiles converts nautical miles to statute miles
func NMToStatuteMiles(nm float64) float64 {
	return nm * StatuteMilesPerNM
}

// PressureCorrectionFt returns the altitude offset in feet between a QNH and
// the standard pressure, using the linear lapse of the lowest 1000 m.
func PressureCorrectionFt(qnhHPa float64) float64 {
	return (qnhHPa - P0) * FtPerHPa
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * MetersPerFt

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D() // Declination
}
