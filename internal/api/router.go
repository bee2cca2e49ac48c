package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/websocket"
)

// NewRouter wires the API routes, the websocket endpoint and /metrics
func NewRouter(h *Handler, wsServer *websocket.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	if wsServer != nil {
		r.Get("/ws", wsServer.HandleConnection)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)

		r.Route("/weather", func(r chi.Router) {
			r.Get("/", h.GetWeather)
			r.Get("/history", h.GetWeatherHistory)
			r.Post("/refresh", h.RefreshWeather)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Get("/position", h.GetViewPosition)
			r.Delete("/focus", h.ClearFocus)
			r.Route("/aircraft", func(r chi.Router) {
				r.Get("/", h.GetSimulatedAircraft)
				r.Post("/", h.CreateSimulatedAircraft)
				r.Route("/{hex}", func(r chi.Router) {
					r.Put("/controls", h.UpdateSimulationControls)
					r.Delete("/", h.RemoveSimulatedAircraft)
					r.Post("/focus", h.FocusSimulatedAircraft)
				})
			})
		})
	})

	return r
}
