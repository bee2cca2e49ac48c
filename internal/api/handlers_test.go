package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/internal/simulation"
	"github.com/yegors/co-wx/internal/storage/sqlite"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

var cyyz = physics.Position{Latitude: 43.6772, Longitude: -79.6306, AltitudeFt: 569}

// stubFetcher publishes a fixed observation, optionally after release is closed
type stubFetcher struct {
	sink    weather.Sink
	release chan struct{}
}

func (f *stubFetcher) Run(_ context.Context, req weather.FetchRequest) weather.Outcome {
	if f.release != nil {
		<-f.release
	}
	lat, lon := req.Latitude, req.Longitude
	obs := weather.Observation{PressureHPa: 1009.1, StationID: "CYYZ", Latitude: &lat, Longitude: &lon}
	f.sink.SetWeather(obs)
	return weather.Outcome{Kind: weather.OutcomeSuccess, Observation: &obs}
}

type fixture struct {
	server     *httptest.Server
	state      *weather.State
	service    *weather.Service
	simulation *simulation.Service
	storage    *sqlite.ObservationStorage
	fetcher    *stubFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()

	cfg := &config.Config{}
	cfg.Station.AirportCode = "CYYZ"
	cfg.Storage.MaxHistoryInAPI = 3

	sim := simulation.NewService(cyyz, log)
	state := weather.NewState(sim, nil, log)
	fetcher := &stubFetcher{sink: state}
	coordinator := weather.NewCoordinator(fetcher, log)
	service := weather.NewService(weather.DefaultConfig(), coordinator, state, sim, log)

	storage, err := sqlite.NewObservationStorage(filepath.Join(t.TempDir(), "co-wx.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	state.Subscribe(storage.Subscriber())

	h := NewHandler(service, sim, storage, nil, cfg, log)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	t.Cleanup(coordinator.Wait)

	return &fixture{server: srv, state: state, service: service, simulation: sim, storage: storage, fetcher: fetcher}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestGetHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["weather_available"])
}

func TestGetWeatherPending(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/weather", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, physics.P0, body["qnh_hpa"])
	assert.Equal(t, "CYYZ", body["station"])
	assert.NotContains(t, body, "weather")
}

func TestRefreshThenGetWeather(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/weather/refresh", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "started", body["status"])

	require.Eventually(t, func() bool {
		_, ok := f.state.Snapshot()
		return ok
	}, time.Second, 5*time.Millisecond)

	resp, body = f.do(t, http.MethodGet, "/api/v1/weather", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, 1009.1, body["qnh_hpa"])
	wx, ok := body["weather"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CYYZ", wx["station_id"])
	assert.Contains(t, wx, "magnetic_variation_deg")
}

func TestRefreshRejectedWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.fetcher.release = make(chan struct{})
	defer close(f.fetcher.release)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/weather/refresh", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/weather/refresh", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["reason"], "in progress")
}

func TestRefreshRejectedNearPole(t *testing.T) {
	f := newFixture(t)
	f.simulation.SetStation(physics.Position{Latitude: 82.5, Longitude: -62.3})

	resp, body := f.do(t, http.MethodPost, "/api/v1/weather/refresh", "")

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["reason"], "80 degrees")
}

func TestWeatherHistory(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.state.SetWeather(weather.Observation{PressureHPa: 1000 + float64(i)})
	}

	resp, body := f.do(t, http.MethodGet, "/api/v1/weather/history?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["count"], "limit is capped by max_history_in_api")

	resp, body = f.do(t, http.MethodGet, "/api/v1/weather/history?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	observations := body["observations"].([]any)
	require.Len(t, observations, 2)
	assert.Equal(t, 1004.0, observations[0].(map[string]any)["qnh_hpa"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/weather/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSimulationLifecycle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/simulation/aircraft",
		`{"lat":45,"lon":-75,"altitude":5000,"heading":90,"speed":240,"vertical_rate":0,"focus":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	aircraft := body["aircraft"].(map[string]any)
	hex := aircraft["hex"].(string)
	assert.Equal(t, true, aircraft["focused"])

	resp, body = f.do(t, http.MethodGet, "/api/v1/simulation/position", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 45.0, body["latitude"])

	resp, _ = f.do(t, http.MethodPut, "/api/v1/simulation/aircraft/"+hex+"/controls",
		`{"heading":180,"speed":200,"vertical_rate":-500}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/v1/simulation/aircraft/"+hex+"/controls",
		`{"heading":400,"speed":200,"vertical_rate":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/simulation/aircraft/"+hex, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/simulation/aircraft/"+hex, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/v1/simulation/position", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, cyyz.Latitude, body["latitude"])
}

func TestFocusUnknownAircraft(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/simulation/aircraft/ABCDEF/focus", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAircraftValidation(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`not json`,
		`{"lat":95,"lon":0}`,
		`{"lat":45,"lon":-75,"altitude":70000}`,
		`{"lat":45,"lon":-75,"speed":900}`,
	} {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/simulation/aircraft", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/health", "")

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
