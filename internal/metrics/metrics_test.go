package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, weatherFetchesTotal)
	require.NotNil(t, weatherRequestsTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestObserveWeatherFetch(t *testing.T) {
	Init()
	before := testutil.ToFloat64(weatherFetchesTotal.WithLabelValues("not_found"))
	ObserveWeatherFetch("not_found", 250*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(weatherFetchesTotal.WithLabelValues("not_found")))
}

func TestObserveWeatherRequestLabels(t *testing.T) {
	ObserveWeatherRequest(0)
	ObserveWeatherRequest(200)

	assert.GreaterOrEqual(t, testutil.ToFloat64(weatherRequestsTotal.WithLabelValues("error")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(weatherRequestsTotal.WithLabelValues("200")), 1.0)
}

func TestSetQNH(t *testing.T) {
	SetQNH(1012.5)
	assert.Equal(t, 1012.5, testutil.ToFloat64(weatherQNHHPa))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveWeatherWidening()
	ObserveRevocationMitigation()
	ObserveUpdateRejected("in_flight")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"wx_search_widenings_total", "wx_revocation_mitigations_total", "wx_updates_rejected_total"} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
