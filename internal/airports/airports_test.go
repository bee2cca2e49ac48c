package airports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent"
1,"CYYZ","large_airport","Toronto Pearson","43.6772","-79.6306","569","NA"
2,"CYTZ","medium_airport","Billy Bishop","43.6275","-79.3962","252","NA"
3,"CNY3","heliport","Some Helipad","43.6500","-79.3800","","NA"
4,"KL18","small_airport","Fallbrook","33.3536","-117.2509","708","NA"
`

func TestParseAndLookup(t *testing.T) {
	db, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, db.Len())

	a, ok := db.Lookup("CYYZ")
	require.True(t, ok)
	assert.Equal(t, "Toronto Pearson", a.Name)
	assert.InDelta(t, 43.6772, a.Latitude, 1e-9)
	assert.Equal(t, 569, a.ElevationFeet)

	h, ok := db.Lookup("CNY3")
	require.True(t, ok)
	assert.Zero(t, h.ElevationFeet)

	_, ok = db.Lookup("XXXX")
	assert.False(t, ok)
}

func TestNearestSkipsHeliports(t *testing.T) {
	db, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// right on top of the helipad, the closest airport is Billy Bishop
	a, ok := db.Nearest(43.65, -79.38)
	require.True(t, ok)
	assert.Equal(t, "CYTZ", a.Ident)

	a, ok = db.Nearest(33.35, -117.25)
	require.True(t, ok)
	assert.Equal(t, "KL18", a.Ident)
}

func TestNearestEmpty(t *testing.T) {
	db, err := Parse(strings.NewReader(`"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft"` + "\n"))
	require.NoError(t, err)
	_, ok := db.Nearest(0, 0)
	assert.False(t, ok)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	db, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, db.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseRejectsBadCoordinates(t *testing.T) {
	_, err := Parse(strings.NewReader(`"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft"
1,"BAD","small_airport","Bad","north","1","0"
`))
	assert.Error(t, err)
}
