package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/pkg/logger"
)

var cyyz = physics.Position{Latitude: 43.6772, Longitude: -79.6306, AltitudeFt: 569}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService() (*Service, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewService(cyyz, logger.NewNop())
	s.now = c.now
	return s, c
}

func TestViewPositionDefaultsToStation(t *testing.T) {
	s, _ := newTestService()
	assert.Equal(t, cyyz, s.ViewPosition())

	moved := physics.Position{Latitude: 33.35, Longitude: -117.25}
	s.SetStation(moved)
	assert.Equal(t, moved, s.ViewPosition())
}

func TestFocusMovesViewPosition(t *testing.T) {
	s, _ := newTestService()
	a, err := s.CreateAircraft(45, -75, 5000, 90, 240, 0)
	require.NoError(t, err)

	require.NoError(t, s.Focus(a.Hex))
	assert.Equal(t, physics.Position{Latitude: 45, Longitude: -75, AltitudeFt: 5000}, s.ViewPosition())

	got, ok := s.GetAircraft(a.Hex)
	require.True(t, ok)
	assert.True(t, got.Focused)

	require.NoError(t, s.Focus(""))
	assert.Equal(t, cyyz, s.ViewPosition())
}

func TestFocusUnknownAircraft(t *testing.T) {
	s, _ := newTestService()
	err := s.Focus("ABCDEF")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRemoveFocusedAircraftFallsBackToStation(t *testing.T) {
	s, _ := newTestService()
	a, err := s.CreateAircraft(45, -75, 5000, 90, 240, 0)
	require.NoError(t, err)
	require.NoError(t, s.Focus(a.Hex))

	require.NoError(t, s.RemoveAircraft(a.Hex))

	assert.Equal(t, cyyz, s.ViewPosition())
	assert.False(t, s.IsSimulated(a.Hex))
	assert.ErrorIs(t, s.RemoveAircraft(a.Hex), ErrNotFound)
}

func TestDeadReckoning(t *testing.T) {
	s, c := newTestService()
	a, err := s.CreateAircraft(45, -75, 5000, 0, 360, -600)
	require.NoError(t, err)

	// 360 kt due north for ten minutes is 60 nm, one degree of latitude
	c.t = c.t.Add(10 * time.Minute)
	s.UpdatePositions()

	got, _ := s.GetAircraft(a.Hex)
	assert.InDelta(t, 46, got.CurrentLat, 1e-9)
	assert.InDelta(t, -75, got.CurrentLon, 1e-9)
	assert.InDelta(t, 0, got.CurrentAltitude, 1e-9)
}

func TestDeadReckoningStopsAtGround(t *testing.T) {
	s, c := newTestService()
	a, err := s.CreateAircraft(45, -75, 500, 90, 120, -1000)
	require.NoError(t, err)

	c.t = c.t.Add(time.Minute)
	s.UpdatePositions()

	got, _ := s.GetAircraft(a.Hex)
	assert.Zero(t, got.CurrentAltitude)
	assert.Zero(t, got.TargetVerticalRate)
	assert.Greater(t, got.CurrentLon, -75.0)
}

func TestUpdateControls(t *testing.T) {
	s, _ := newTestService()
	a, err := s.CreateAircraft(45, -75, 5000, 90, 240, 0)
	require.NoError(t, err)

	require.NoError(t, s.UpdateControls(a.Hex, 180, 200, 500))
	got, _ := s.GetAircraft(a.Hex)
	assert.Equal(t, 180.0, got.TargetHeading)
	assert.Equal(t, 200.0, got.TargetSpeed)
	assert.Equal(t, 500.0, got.TargetVerticalRate)

	assert.ErrorIs(t, s.UpdateControls("000000", 0, 0, 0), ErrNotFound)
}

func TestCreateAircraftLimits(t *testing.T) {
	s, _ := newTestService()

	_, err := s.CreateAircraft(95, 0, 0, 0, 0, 0)
	assert.Error(t, err)

	for i := 0; i < MaxSimulatedAircraft; i++ {
		_, err := s.CreateAircraft(45, -75, 1000, 0, 100, 0)
		require.NoError(t, err)
	}
	_, err = s.CreateAircraft(45, -75, 1000, 0, 100, 0)
	assert.ErrorContains(t, err, "maximum number")
	assert.Len(t, s.GetAllAircraft(), MaxSimulatedAircraft)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestService()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
