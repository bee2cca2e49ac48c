package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/co-wx/internal/api"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/internal/simulation"
	"github.com/yegors/co-wx/internal/storage/sqlite"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Co-WX server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("station", cfg.Station.AirportCode),
		logger.Float64("station_lat", cfg.Station.Latitude),
		logger.Float64("station_lon", cfg.Station.Longitude),
	)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	observationStorage, err := sqlite.NewObservationStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to initialize observation storage", logger.Error(err))
		os.Exit(1)
	}
	defer observationStorage.Close()

	// WebSocket hub
	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	var hubWG sync.WaitGroup
	hubWG.Add(1)
	go func() {
		defer hubWG.Done()
		wsServer.Run(ctx)
	}()

	// Simulation, viewed from the station until an aircraft is focused
	station := physics.Position{
		Latitude:   cfg.Station.Latitude,
		Longitude:  cfg.Station.Longitude,
		AltitudeFt: float64(cfg.Station.ElevationFeet),
	}
	simulationService := simulation.NewService(station, log)
	var simWG sync.WaitGroup
	simWG.Add(1)
	go func() {
		defer simWG.Done()
		simulationService.Run(ctx, time.Duration(cfg.Simulation.UpdateIntervalMs)*time.Millisecond)
	}()

	// Weather: state (sink) <- worker <- coordinator <- service
	nearest := func(lat, lon float64) (string, bool) {
		airport, ok := cfg.Airports.Nearest(lat, lon)
		return airport.Ident, ok
	}
	weatherState := weather.NewState(simulationService, nearest, log)
	weatherState.Subscribe(observationStorage.Subscriber())
	weatherState.Subscribe(wsServer.WeatherSubscriber())
	wsServer.SetMessageHandler(api.NewWeatherMessageHandler(weatherState))

	wxConfig := cfg.Weather.ToWeather()
	weatherClient := weather.NewClient(wxConfig, wxConfig, log)
	weatherWorker := weather.NewWorker(wxConfig, weatherClient, weatherState, log)
	weatherCoordinator := weather.NewCoordinator(weatherWorker, log)
	weatherService := weather.NewService(wxConfig, weatherCoordinator, weatherState, simulationService, log)
	if err := weatherService.Start(); err != nil {
		log.Error("Failed to start weather service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	handler := api.NewHandler(weatherService, simulationService, observationStorage, wsServer, cfg, log)
	router := api.NewRouter(handler, wsServer)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}       // Start with the primary port
	if len(cfg.Server.AdditionalPorts) > 0 { // Only append if there are additional ports
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	// Start a server for each configured port
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router, // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping weather service...")
	weatherService.Stop()
	waitForFetch(weatherCoordinator, wxConfig.RequestTimeout, log)
	log.Info("Weather service stopped.")

	// Cancel the main context
	cancel()
	simWG.Wait()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			log.Info("Attempting to shutdown HTTP server", logger.String("addr", srv.Addr))
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait() // Wait for all server shutdowns to complete
	hubWG.Wait()

	log.Info("All HTTP servers shutdown.")

	log.Info("Server fully stopped")
}

// waitForFetch gives a running fetch up to one request timeout per attempt to
// finish. Fetches cannot be cancelled; if it is still running afterwards the
// process exits without its result.
func waitForFetch(coordinator *weather.Coordinator, requestTimeout time.Duration, log *logger.Logger) {
	if !coordinator.Busy() {
		return
	}
	log.Info("Waiting for running weather fetch to finish")

	done := make(chan struct{})
	go func() {
		coordinator.Wait()
		close(done)
	}()

	// widening and the revocation retry can add up to four requests
	select {
	case <-done:
	case <-time.After(4 * requestTimeout):
		// storage.Close waits for a late Save and rejects later ones
		log.Warn("Weather fetch still running, not waiting any longer")
	}
}
