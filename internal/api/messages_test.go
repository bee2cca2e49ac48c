package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/simulation"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

func TestWeatherRequestOverWebSocket(t *testing.T) {
	log := logger.NewNop()
	sim := simulation.NewService(cyyz, log)
	state := weather.NewState(sim, nil, log)
	state.SetWeather(weather.Observation{PressureHPa: 1021.3, StationID: "CYYZ"})

	hub := websocket.NewServer(nil, log)
	hub.SetMessageHandler(NewWeatherMessageHandler(state))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(&Handler{}, hub))
	defer srv.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.Message{Type: websocket.MessageTypeWeatherRequest}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.MessageTypeWeatherResponse, msg.Type)
	assert.Equal(t, 1021.3, msg.Data["qnh_hpa"])
	wx, ok := msg.Data["weather"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CYYZ", wx["station_id"])
}
