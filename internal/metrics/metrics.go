// Package metrics holds the Prometheus collectors for live trading and
// backtest batches. A nil *Registry is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	ticks           *prometheus.CounterVec
	candleEvents    *prometheus.CounterVec
	signals         *prometheus.CounterVec
	orders          *prometheus.CounterVec
	trailingUpdates *prometheus.CounterVec
	confirmFailures prometheus.Counter
	trailingQueue   prometheus.Gauge

	backtests        *prometheus.CounterVec
	backtestDuration prometheus.Histogram
}

// NewRegistry creates a registry with every collector registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_ticks_total",
			Help: "Live ticks received",
		}, []string{"instrument"}),
		candleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_candle_events_total",
			Help: "New-candle events emitted by the boundary detector",
		}, []string{"instrument"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_signals_total",
			Help: "Signals produced on live evaluation",
		}, []string{"instrument", "signal"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_orders_total",
			Help: "Order submissions by outcome",
		}, []string{"status"}),
		trailingUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_trailing_updates_total",
			Help: "Trailing-stop loop outcomes",
		}, []string{"result"}),
		confirmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxsignal_confirm_failures_total",
			Help: "Candle closes that were never confirmed by the broker",
		}),
		trailingQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignal_trailing_tracked",
			Help: "Trades currently tracked by the trailing-stop manager",
		}),
		backtests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_backtests_total",
			Help: "Backtest jobs by status",
		}, []string{"status"}),
		backtestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxsignal_backtest_duration_seconds",
			Help:    "Backtest job duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}),
	}

	reg.MustRegister(
		r.ticks,
		r.candleEvents,
		r.signals,
		r.orders,
		r.trailingUpdates,
		r.confirmFailures,
		r.trailingQueue,
		r.backtests,
		r.backtestDuration,
	)
	return r
}

func (r *Registry) Tick(instrument string) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(instrument).Inc()
}

func (r *Registry) CandleEvent(instrument string) {
	if r == nil {
		return
	}
	r.candleEvents.WithLabelValues(instrument).Inc()
}

func (r *Registry) Signal(instrument, signal string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(instrument, signal).Inc()
}

func (r *Registry) Order(status string) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(status).Inc()
}

func (r *Registry) TrailingUpdate(result string) {
	if r == nil {
		return
	}
	r.trailingUpdates.WithLabelValues(result).Inc()
}

func (r *Registry) ConfirmFailure() {
	if r == nil {
		return
	}
	r.confirmFailures.Inc()
}

// TrailingTracked adjusts the tracked-trades gauge by delta.
func (r *Registry) TrailingTracked(delta float64) {
	if r == nil {
		return
	}
	r.trailingQueue.Add(delta)
}

// Backtest records one finished batch job.
func (r *Registry) Backtest(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.backtests.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
