package api

import (
	"fmt"

	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
)

// WeatherMessageHandler answers websocket requests for the current weather
type WeatherMessageHandler struct {
	state *weather.State
}

// NewWeatherMessageHandler creates a handler reading from state
func NewWeatherMessageHandler(state *weather.State) *WeatherMessageHandler {
	return &WeatherMessageHandler{state: state}
}

// HandleMessage implements websocket.MessageHandler
func (m *WeatherMessageHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	if messageType != websocket.MessageTypeWeatherRequest {
		return fmt.Errorf("unsupported message type: %s", messageType)
	}

	resp := map[string]any{"qnh_hpa": m.state.QNH()}
	if snap, ok := m.state.Snapshot(); ok {
		resp["weather"] = snap
	}
	if !client.SendMessage(&websocket.Message{Type: websocket.MessageTypeWeatherResponse, Data: resp}) {
		return fmt.Errorf("client send buffer full")
	}
	return nil
}
