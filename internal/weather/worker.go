package weather

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yegors/co-wx/internal/metrics"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/pkg/logger"
)

// Worker runs one fetch to completion: request, interpret, widen the search
// once if nothing was found, and publish a successful observation to the sink.
type Worker struct {
	config            Config
	requester         Requester
	sink              Sink
	isRevocationError func(string) bool
	logger            *logger.Logger
}

// NewWorker creates a fetch worker
func NewWorker(config Config, requester Requester, sink Sink, log *logger.Logger) *Worker {
	return &Worker{
		config:            config,
		requester:         requester,
		sink:              sink,
		isRevocationError: IsRevocationError,
		logger:            log.Named("weather-worker"),
	}
}

// SetRevocationClassifier replaces the function deciding whether a transport
// error was caused by a failed revocation check
func (w *Worker) SetRevocationClassifier(f func(string) bool) {
	w.isRevocationError = f
}

// URL builds the request URL for the given search
func (w *Worker) URL(req FetchRequest) string {
	return fmt.Sprintf(w.config.URLTemplate, physics.NMToStatuteMiles(req.RadiusNM), req.Longitude, req.Latitude)
}

// Run blocks until the fetch is done. It never panics; the returned outcome
// is informational only, the sink has already been updated on success.
func (w *Worker) Run(ctx context.Context, req FetchRequest) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: OutcomeTransportError, Message: fmt.Sprintf("fetching weather failed with panic: %v", r), RadiusNM: req.RadiusNM}
			w.logger.Error("Fetching weather failed with panic", logger.Any("panic", r))
		}
		metrics.ObserveWeatherFetch(out.Kind.String(), time.Since(start))
	}()

	if req.RadiusNM > w.config.MaxRadiusNM {
		req.RadiusNM = w.config.MaxRadiusNM
	}

	session := w.requester.NewSession()
	defer session.Close()

	mitigated := false
	widened := false
	for {
		out = w.attempt(ctx, session, req, &mitigated)
		out.RadiusNM = req.RadiusNM

		if out.Kind != OutcomeNotFound {
			break
		}
		w.logger.Warn("Found no weather in radius",
			logger.Float64("radius_nm", req.RadiusNM),
			logger.Float64("lat", req.Latitude),
			logger.Float64("lon", req.Longitude))
		if widened || req.RadiusNM >= w.config.MaxRadiusNM {
			break
		}
		req.RadiusNM = w.config.MaxRadiusNM
		widened = true
		metrics.ObserveWeatherWidening()
	}

	w.finish(out)
	return out
}

// attempt performs one request, including the single revocation retry, and
// classifies the result
func (w *Worker) attempt(ctx context.Context, session Session, req FetchRequest, mitigated *bool) Outcome {
	url := w.URL(req)
	w.logger.Debug("Requesting weather", logger.String("url", url))

	resp, err := session.Get(ctx, url)
	if err != nil && !*mitigated && w.isRevocationError(err.Error()) {
		metrics.ObserveWeatherRequest(0)
		w.logger.Warn("Querying revocation status failed, disabling the revocation check and trying again",
			logger.Error(err))
		session.DisableRevocationCheck()
		*mitigated = true
		metrics.ObserveRevocationMitigation()
		resp, err = session.Get(ctx, url)
	}
	if err != nil {
		metrics.ObserveWeatherRequest(0)
		return Outcome{Kind: OutcomeTransportError, Message: err.Error()}
	}
	metrics.ObserveWeatherRequest(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return Outcome{
			Kind:       OutcomeProtocolError,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP return code %d", resp.StatusCode),
		}
	}

	return Interpret(resp.Body)
}

// finish publishes a success and logs every other outcome
func (w *Worker) finish(out Outcome) {
	switch out.Kind {
	case OutcomeSuccess:
		obs := *out.Observation
		w.logger.Info("Weather fetched",
			logger.String("station", obs.StationID),
			logger.Float64("qnh_hpa", obs.PressureHPa),
			logger.Float64("radius_nm", out.RadiusNM))
		w.sink.SetWeather(obs)
	case OutcomeNotFound:
		// already logged per attempt
	case OutcomeProtocolError:
		if out.StatusCode != 0 {
			w.logger.Error("Could not request weather from the data server",
				logger.Int("status_code", out.StatusCode))
		} else {
			w.logger.Error("Weather request returned with error",
				logger.String("message", out.Message))
		}
	case OutcomeParseError:
		w.logger.Error("Weather response could not be parsed",
			logger.String("message", out.Message))
	default:
		w.logger.Error("Weather request failed",
			logger.String("kind", out.Kind.String()),
			logger.String("error", out.Message))
	}
}
