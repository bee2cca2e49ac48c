package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/internal/simulation"
	"github.com/yegors/co-wx/internal/storage/sqlite"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

const defaultHistoryLimit = 50

// HistoryStore reads the observation history
type HistoryStore interface {
	Recent(limit int) ([]*sqlite.ObservationRecord, error)
}

// Handler contains all the HTTP handlers
type Handler struct {
	weatherService    *weather.Service
	simulationService *simulation.Service
	history           HistoryStore
	wsServer          *websocket.Server
	config            *config.Config
	logger            *logger.Logger
	startedAt         time.Time
}

// NewHandler creates a new API handler
func NewHandler(weatherService *weather.Service, simulationService *simulation.Service, history HistoryStore, wsServer *websocket.Server, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		weatherService:    weatherService,
		simulationService: simulationService,
		history:           history,
		wsServer:          wsServer,
		config:            config,
		logger:            logger.Named("api"),
		startedAt:         time.Now(),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	_, hasWeather := h.weatherService.State().Snapshot()

	response := map[string]any{
		"status":            "ok",
		"uptime_seconds":    int(time.Since(h.startedAt).Seconds()),
		"weather_available": hasWeather,
		"fetch_in_progress": h.weatherService.Busy(),
		"aircraft_count":    len(h.simulationService.GetAllAircraft()),
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// weatherResponse is the body of GET /weather. While no weather has been
// applied QNH is standard pressure.
type weatherResponse struct {
	Status          string            `json:"status"`
	QNHHPa          float64           `json:"qnh_hpa"`
	Weather         *weather.Snapshot `json:"weather,omitempty"`
	FetchInProgress bool              `json:"fetch_in_progress"`
	ViewPosition    physics.Position  `json:"view_position"`
	Station         string            `json:"station"`
}

// GetWeather returns the weather currently applied to the simulation
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	state := h.weatherService.State()
	response := weatherResponse{
		Status:          "pending",
		QNHHPa:          state.QNH(),
		FetchInProgress: h.weatherService.Busy(),
		ViewPosition:    h.simulationService.ViewPosition(),
		Station:         h.config.Station.AirportCode,
	}
	if snap, ok := state.Snapshot(); ok {
		response.Status = "available"
		response.Weather = &snap
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetWeatherHistory returns the most recent applied observations
func (h *Handler) GetWeatherHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if maxLimit := h.config.Storage.MaxHistoryInAPI; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		h.logger.Error("Failed to read weather history", logger.Error(err))
		http.Error(w, "Failed to read weather history", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"observations": records,
		"count":        len(records),
	})
}

// RefreshWeather starts a fetch for the current view position right away
func (h *Handler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	pos := h.simulationService.ViewPosition()

	if h.weatherService.RefreshNow() {
		WriteJSON(w, http.StatusAccepted, map[string]any{
			"status":        "started",
			"view_position": pos,
		})
		return
	}

	reason := "a weather fetch is already in progress"
	if math.Abs(pos.Latitude) >= weather.MaxValidLatitude {
		reason = "no weather is fetched at or beyond 80 degrees latitude"
	}
	WriteJSON(w, http.StatusConflict, map[string]any{
		"status": "rejected",
		"reason": reason,
	})
}

// CreateSimulatedAircraft creates a new simulated aircraft
func (h *Handler) CreateSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat          float64 `json:"lat"`
		Lon          float64 `json:"lon"`
		Altitude     float64 `json:"altitude"`
		Heading      float64 `json:"heading"`
		Speed        float64 `json:"speed"`
		VerticalRate float64 `json:"vertical_rate"`
		Focus        bool    `json:"focus"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Validate input
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}
	if req.Altitude < 0 || req.Altitude > 60000 {
		http.Error(w, "Invalid altitude (0-60000 ft)", http.StatusBadRequest)
		return
	}
	if msg := validateControls(req.Heading, req.Speed, req.VerticalRate); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	aircraft, err := h.simulationService.CreateAircraft(
		req.Lat, req.Lon, req.Altitude,
		req.Heading, req.Speed, req.VerticalRate,
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Focus {
		if err := h.simulationService.Focus(aircraft.Hex); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		aircraft.Focused = true
	}

	h.logger.Info("Created simulated aircraft via API",
		logger.String("hex", aircraft.Hex),
		logger.String("flight", aircraft.Flight),
		logger.Bool("focus", req.Focus))

	WriteJSON(w, http.StatusCreated, map[string]any{
		"status":   "success",
		"aircraft": aircraft,
	})
}

// UpdateSimulationControls updates the control parameters for a simulated aircraft
func (h *Handler) UpdateSimulationControls(w http.ResponseWriter, r *http.Request) {
	hex := chi.URLParam(r, "hex")

	var req struct {
		Heading      float64 `json:"heading"`
		Speed        float64 `json:"speed"`
		VerticalRate float64 `json:"vertical_rate"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateControls(req.Heading, req.Speed, req.VerticalRate); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.simulationService.UpdateControls(hex, req.Heading, req.Speed, req.VerticalRate); err != nil {
		h.writeSimulationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// RemoveSimulatedAircraft removes a simulated aircraft
func (h *Handler) RemoveSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	hex := chi.URLParam(r, "hex")

	if err := h.simulationService.RemoveAircraft(hex); err != nil {
		h.writeSimulationError(w, err)
		return
	}

	h.logger.Info("Removed simulated aircraft via API", logger.String("hex", hex))
	WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// FocusSimulatedAircraft makes an aircraft the view position
func (h *Handler) FocusSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	hex := chi.URLParam(r, "hex")

	if err := h.simulationService.Focus(hex); err != nil {
		h.writeSimulationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"view_position": h.simulationService.ViewPosition(),
	})
}

// ClearFocus returns the view position to the station
func (h *Handler) ClearFocus(w http.ResponseWriter, r *http.Request) {
	if err := h.simulationService.Focus(""); err != nil {
		h.writeSimulationError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"view_position": h.simulationService.ViewPosition(),
	})
}

// GetSimulatedAircraft returns all simulated aircraft
func (h *Handler) GetSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.simulationService.GetAllAircraft())
}

// GetViewPosition returns the position weather is fetched for
func (h *Handler) GetViewPosition(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.simulationService.ViewPosition())
}

func (h *Handler) writeSimulationError(w http.ResponseWriter, err error) {
	if errors.Is(err, simulation.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger.Error("Simulation request failed", logger.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func validateControls(heading, speed, verticalRate float64) string {
	if heading < 0 || heading >= 360 {
		return "Invalid heading (0-359 degrees)"
	}
	if speed < 0 || speed > 500 {
		return "Invalid speed (0-500 knots)"
	}
	if verticalRate < -3000 || verticalRate > 3000 {
		return "Invalid vertical rate (-3000 to +3000 fpm)"
	}
	return ""
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
