package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsSafe(t *testing.T) {
	t.Parallel()

	var r *Registry
	assert.NotPanics(t, func() {
		r.Tick("EUR_USD")
		r.CandleEvent("EUR_USD")
		r.Signal("EUR_USD", "Buy")
		r.Order("filled")
		r.TrailingUpdate("moved")
		r.ConfirmFailure()
		r.TrailingTracked(1)
		r.Backtest("ok", time.Second)
	})
}

func TestCountersIncrement(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Tick("EUR_USD")
	r.Tick("EUR_USD")
	r.Order("filled")
	r.ConfirmFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ticks.WithLabelValues("EUR_USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.confirmFailures))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Backtest("ok", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "fxsignal_backtests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
